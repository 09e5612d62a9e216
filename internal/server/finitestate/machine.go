// Package finitestate is the run state machine shared by the supervised
// runnables: New, Booting, Running, Reloading, Stopping, Stopped and Error.
package finitestate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robbyt/go-fsm/v2"
	"github.com/robbyt/go-fsm/v2/hooks"
	"github.com/robbyt/go-fsm/v2/hooks/broadcast"
	"github.com/robbyt/go-fsm/v2/transitions"
)

const (
	StatusNew       = "New"
	StatusBooting   = "Booting"
	StatusRunning   = "Running"
	StatusReloading = "Reloading"
	StatusStopping  = "Stopping"
	StatusStopped   = "Stopped"
	StatusError     = "Error"
)

// TypicalTransitions is the edge set of a runnable that boots, runs, reloads
// and stops, and may be restarted once stopped.
var TypicalTransitions = map[string][]string{
	StatusNew:       {StatusBooting, StatusError},
	StatusBooting:   {StatusRunning, StatusStopping, StatusError},
	StatusRunning:   {StatusReloading, StatusStopping, StatusError},
	StatusReloading: {StatusRunning, StatusStopping, StatusError},
	StatusStopping:  {StatusStopped, StatusError},
	StatusStopped:   {StatusNew, StatusBooting, StatusError},
	StatusError:     {StatusNew, StatusStopping, StatusStopped},
}

// Machine tracks the run state of a supervised runnable.
type Machine interface {
	// Transition moves to state if the edge is allowed.
	Transition(state string) error
	// TransitionIfCurrentState moves to newState only when the machine is in currentState.
	TransitionIfCurrentState(currentState, newState string) error
	// GetState returns the current state.
	GetState() string
	// GetStateChan returns a channel that receives the current state and then
	// every state entered. It is closed when ctx is done.
	GetStateChan(ctx context.Context) <-chan string
}

// ServerFSM wraps a go-fsm machine with a broadcast hook for state channels.
type ServerFSM struct {
	mu    sync.Mutex
	fsm   *fsm.Machine
	bcast *broadcast.Manager
}

// New creates a machine in StatusNew using TypicalTransitions.
func New(handler slog.Handler) (Machine, error) {
	trans, err := transitions.New(TypicalTransitions)
	if err != nil {
		return nil, fmt.Errorf("failed to build transitions: %w", err)
	}

	registry, err := hooks.NewRegistry(
		hooks.WithLogHandler(handler),
		hooks.WithTransitions(trans),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create hook registry: %w", err)
	}

	bcast := broadcast.NewManager(handler)
	if err := registry.RegisterPostTransitionHook(hooks.PostTransitionHookConfig{
		Name:   "broadcast",
		From:   []string{"*"},
		To:     []string{"*"},
		Action: bcast.BroadcastHook,
	}); err != nil {
		return nil, fmt.Errorf("failed to register broadcast hook: %w", err)
	}

	machine, err := fsm.New(
		StatusNew,
		trans,
		fsm.WithLogHandler(handler),
		fsm.WithCallbackRegistry(registry),
	)
	if err != nil {
		return nil, err
	}
	return &ServerFSM{fsm: machine, bcast: bcast}, nil
}

// Transition moves to state if the edge is allowed.
func (m *ServerFSM) Transition(state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fsm.TransitionWithContext(context.Background(), state)
}

// TransitionIfCurrentState moves to newState only when the machine is in currentState.
func (m *ServerFSM) TransitionIfCurrentState(currentState, newState string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current := m.fsm.GetState(); current != currentState {
		return fmt.Errorf("%w: in %s, expected %s", ErrUnexpectedState, current, currentState)
	}
	return m.fsm.TransitionWithContext(context.Background(), newState)
}

// GetState returns the current state.
func (m *ServerFSM) GetState() string {
	return m.fsm.GetState()
}

// GetStateChan delivers state updates synchronously with a 5-second timeout so
// they still arrive during shutdown.
func (m *ServerFSM) GetStateChan(ctx context.Context) <-chan string {
	out := make(chan string, 1)

	states, err := m.bcast.GetStateChan(ctx, broadcast.WithBufferSize(16), broadcast.WithTimeout(5*time.Second))
	if err != nil {
		close(out)
		return out
	}

	out <- m.fsm.GetState()
	go func() {
		defer close(out)
		for s := range states {
			select {
			case out <- s:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
