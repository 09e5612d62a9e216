package simulator

import (
	"context"
	"slices"
	"time"

	"github.com/atlanticdynamic/simkernel/internal/sim/lifecycle"
	"github.com/atlanticdynamic/simkernel/internal/sim/module"
)

// Status is a snapshot of the current or last run.
type Status struct {
	State      lifecycle.State
	Mode       Mode
	Time       float64
	Steps      uint64
	TotalSteps uint64
	Runners    int
	StartedAt  time.Time
}

// Progress is the completed fraction of an offline run, or 0 in real time.
func (s Status) Progress() float64 {
	if s.TotalSteps == 0 {
		return 0
	}
	return float64(s.Steps) / float64(s.TotalSteps)
}

// RunnerInfo describes one loaded module.
type RunnerInfo struct {
	Name     string
	File     string
	Bindings []module.Binding
	Failures int
	Messages []module.Message
}

// Status returns a snapshot of the run.
func (s *Simulator) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.status
	st.State = s.machine.State()
	st.Runners = len(s.runners)
	return st
}

// Runners returns the runners of the active run.
func (s *Simulator) Runners() []*module.Runner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.runners)
}

// RunnerInfos describes the runners of the active run.
func (s *Simulator) RunnerInfos() []RunnerInfo {
	return describe(s.Runners())
}

// LastRunnerInfos describes the runners of the last run as they were when the
// run released them, messages included.
func (s *Simulator) LastRunnerInfos() []RunnerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.lastRunners)
}

func describe(runners []*module.Runner) []RunnerInfo {
	out := make([]RunnerInfo, 0, len(runners))
	for _, r := range runners {
		out = append(out, RunnerInfo{
			Name:     r.Name(),
			File:     r.Declaration().File,
			Bindings: r.Bindings(),
			Failures: r.Failures(),
			Messages: r.Messages(),
		})
	}
	return out
}

// GetState implements the supervisor.Stateable interface
func (s *Simulator) GetState() string {
	return s.machine.State().String()
}

// GetStateChan implements the supervisor.Stateable interface
func (s *Simulator) GetStateChan(ctx context.Context) <-chan string {
	return s.machine.GetStateChan(ctx)
}

// IsRunning reports whether the worker goroutine is accepting requests.
func (s *Simulator) IsRunning() bool {
	return s.running.Load()
}
