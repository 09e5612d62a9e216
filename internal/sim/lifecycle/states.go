package lifecycle

import "fmt"

// State is a lifecycle state of the simulation.
type State int

const (
	Idle State = iota
	Init
	Start
	Step
	Pause
	Stop
)

var stateNames = map[State]string{
	Idle:  "Idle",
	Init:  "Init",
	Start: "Start",
	Step:  "Step",
	Pause: "Pause",
	Stop:  "Stop",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ParseState returns the State named s.
func ParseState(s string) (State, bool) {
	for state, name := range stateNames {
		if name == s {
			return state, true
		}
	}
	return Idle, false
}

// Event is an external request applied to the machine.
type Event int

const (
	StartRequest Event = iota + 1
	StopRequest
	PauseRequest
)

func (e Event) String() string {
	switch e {
	case StartRequest:
		return "start"
	case StopRequest:
		return "stop"
	case PauseRequest:
		return "pause"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

type transition struct {
	from  State
	event Event
}

// requested maps (State, Event) to the next State.
var requested = map[transition]State{
	{Idle, StartRequest}:  Init,
	{Step, StopRequest}:   Stop,
	{Step, PauseRequest}:  Pause,
	{Pause, StartRequest}: Step,
	{Pause, StopRequest}:  Stop,
}

// automatic lists the transitions taken unconditionally after entering a state.
var automatic = map[State]State{
	Init:  Start,
	Start: Step,
	Stop:  Idle,
}

// Next returns the state event leads to from s.
func Next(s State, event Event) (State, bool) {
	to, ok := requested[transition{s, event}]
	return to, ok
}

// allowed is the edge set enforced by the underlying fsm. Init may fall back to
// Idle when initialization fails.
var allowed = map[string][]string{
	Idle.String():  {Init.String()},
	Init.String():  {Start.String(), Idle.String()},
	Start.String(): {Step.String()},
	Step.String():  {Stop.String(), Pause.String()},
	Pause.String(): {Step.String(), Stop.String()},
	Stop.String():  {Idle.String()},
}
