// Package simulator runs the simulation on a single worker goroutine.
//
// The worker owns every module Runner and is the only caller of the lifecycle
// Machine. Host requests are queued to it and observed between steps: at each
// real-time tick, or at the boundary of an offline batch.
package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robbyt/go-supervisor/supervisor"

	"github.com/atlanticdynamic/simkernel/internal/sim/lifecycle"
	"github.com/atlanticdynamic/simkernel/internal/sim/module"
	"github.com/atlanticdynamic/simkernel/internal/sim/store"
	"github.com/atlanticdynamic/simkernel/internal/sim/variable"
)

// DefaultBatchSize is the number of offline steps between request checks.
const DefaultBatchSize = 100

var (
	_ supervisor.Runnable  = (*Simulator)(nil)
	_ supervisor.Stateable = (*Simulator)(nil)
)

// Modules lists the module declarations to load when a run starts.
type Modules interface {
	ActiveModules() []variable.Module
}

// Recorder samples the logged variables at logical time t.
type Recorder interface {
	SyncLog(t float64)
}

// request is either a lifecycle event or a function to run on the worker.
type request struct {
	event lifecycle.Event
	fn    func() error
	reply chan error
}

// Simulator drives the lifecycle and steps the module runners.
type Simulator struct {
	machine  *lifecycle.Machine
	store    *store.Store
	modules  Modules
	recorder Recorder
	loader   module.Loader

	batchSize          int
	shutdownOnComplete bool
	parentCtx          context.Context

	requests chan request
	shutdown chan struct{}
	done     chan struct{}

	runMu     sync.Mutex
	started   bool
	runCancel context.CancelFunc
	running   atomic.Bool

	// owned by the worker goroutine
	active    Settings
	ticker    *time.Ticker
	batching  bool
	steps     uint64
	completed bool

	mu       sync.RWMutex
	settings Settings
	runners  []*module.Runner
	status   Status

	lastRunners []RunnerInfo

	logger *slog.Logger
}

// New creates a Simulator and registers it as a listener on machine.
func New(
	machine *lifecycle.Machine,
	st *store.Store,
	modules Modules,
	recorder Recorder,
	loader module.Loader,
	opts ...Option,
) (*Simulator, error) {
	if machine == nil || st == nil || modules == nil || recorder == nil || loader == nil {
		return nil, fmt.Errorf("simulator needs a machine, a store, modules, a recorder and a loader")
	}

	s := &Simulator{
		machine:   machine,
		store:     st,
		modules:   modules,
		recorder:  recorder,
		loader:    loader,
		batchSize: DefaultBatchSize,
		parentCtx: context.Background(),
		settings:  DefaultSettings(),
		requests:  make(chan request),
		shutdown:  make(chan struct{}, 1),
		done:      make(chan struct{}),
		logger:    slog.Default().WithGroup("simulator.Simulator"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.settings.Validate(); err != nil {
		return nil, err
	}

	machine.AddListener(s.onLifecycle)
	return s, nil
}

// String implements the supervisor.Runnable interface
func (s *Simulator) String() string {
	return "simulator.Simulator"
}

// Run implements the supervisor.Runnable interface. It blocks until ctx or the
// parent context is done, stopping an active run on the way out.
func (s *Simulator) Run(ctx context.Context) error {
	s.runMu.Lock()
	if s.started {
		s.runMu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel
	s.runMu.Unlock()

	defer close(s.done)
	defer cancel()

	s.running.Store(true)
	defer s.running.Store(false)
	s.logger.Debug("Simulator worker started")

	for {
		if s.batching {
			select {
			case <-runCtx.Done():
				s.halt()
				return nil
			case <-s.parentCtx.Done():
				s.halt()
				return nil
			case req := <-s.requests:
				s.handle(runCtx, req)
			default:
				s.batch(runCtx)
			}
			continue
		}

		select {
		case <-runCtx.Done():
			s.halt()
			return nil
		case <-s.parentCtx.Done():
			s.halt()
			return nil
		case req := <-s.requests:
			s.handle(runCtx, req)
		case <-s.tick():
			s.step(runCtx)
		}
	}
}

// Stop implements the supervisor.Runnable interface
func (s *Simulator) Stop() {
	s.logger.Debug("Stopping Simulator")
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.runCancel != nil {
		s.runCancel()
	}
}

// halt stops an active run before the worker exits.
func (s *Simulator) halt() {
	s.logger.Info("Simulator shutting down")
	switch s.machine.State() {
	case lifecycle.Step, lifecycle.Pause:
		if err := s.machine.Apply(context.Background(), lifecycle.StopRequest); err != nil {
			s.logger.Error("Failed to stop run", "error", err)
		}
	}
}

func (s *Simulator) tick() <-chan time.Time {
	if s.ticker == nil {
		return nil
	}
	return s.ticker.C
}

func (s *Simulator) handle(ctx context.Context, req request) {
	if req.fn != nil {
		req.reply <- req.fn()
		return
	}
	req.reply <- s.machine.Apply(ctx, req.event)
}

// submit hands req to the worker and waits for the reply. Functions run inline
// when no worker was ever started; lifecycle events need the worker.
func (s *Simulator) submit(ctx context.Context, req request) error {
	req.reply = make(chan error, 1)

	s.runMu.Lock()
	if !s.started {
		defer s.runMu.Unlock()
		if req.fn != nil {
			return req.fn()
		}
		return ErrNotRunning
	}
	s.runMu.Unlock()

	select {
	case s.requests <- req:
	case <-s.done:
		if req.fn != nil {
			return req.fn()
		}
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Request applies a lifecycle event on the worker.
func (s *Simulator) Request(ctx context.Context, event lifecycle.Event) error {
	return s.submit(ctx, request{event: event})
}

// StartRun requests a start, or a resume from Pause.
func (s *Simulator) StartRun(ctx context.Context) error {
	return s.Request(ctx, lifecycle.StartRequest)
}

// StopRun requests the active run to stop.
func (s *Simulator) StopRun(ctx context.Context) error {
	return s.Request(ctx, lifecycle.StopRequest)
}

// PauseRun requests the active run to pause.
func (s *Simulator) PauseRun(ctx context.Context) error {
	return s.Request(ctx, lifecycle.PauseRequest)
}

// Do runs fn on the worker between steps, so fn never overlaps a lifecycle
// transition.
func (s *Simulator) Do(ctx context.Context, fn func() error) error {
	return s.submit(ctx, request{fn: fn})
}

// Configure replaces the run settings. Only allowed in Idle.
func (s *Simulator) Configure(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if state := s.machine.State(); state != lifecycle.Idle {
		return fmt.Errorf("%w: cannot change settings in %s", ErrBusy, state)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

// Settings returns the configured run settings.
func (s *Simulator) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// GetShutdownTrigger fires once when an offline run completes, if enabled
// with WithShutdownOnComplete.
func (s *Simulator) GetShutdownTrigger() <-chan struct{} {
	return s.shutdown
}

// Done is closed when the worker has exited.
func (s *Simulator) Done() <-chan struct{} {
	return s.done
}

func (s *Simulator) onLifecycle(ctx context.Context, n lifecycle.Notification) error {
	switch n {
	case lifecycle.Notification{Kind: lifecycle.Enter, State: lifecycle.Init}:
		return s.enterInit(ctx)
	case lifecycle.Notification{Kind: lifecycle.Enter, State: lifecycle.Start}:
		s.enterStart(ctx)
	case lifecycle.Notification{Kind: lifecycle.Enter, State: lifecycle.Step}:
		s.arm()
	case lifecycle.Notification{Kind: lifecycle.Exit, State: lifecycle.Step}:
		s.disarm()
	case lifecycle.Notification{Kind: lifecycle.Enter, State: lifecycle.Stop}:
		s.enterStop(ctx)
	case lifecycle.Notification{Kind: lifecycle.Enter, State: lifecycle.Idle}:
		s.enterIdle(ctx)
	}
	return nil
}

func (s *Simulator) enterInit(ctx context.Context) error {
	settings := s.Settings()
	if err := settings.Validate(); err != nil {
		return err
	}
	s.active = settings
	s.steps = 0
	s.completed = false

	s.store.Reset()

	var runners []*module.Runner
	for _, decl := range s.modules.ActiveModules() {
		r, err := module.New(ctx, decl, s.loader, s.store, s.machine,
			module.WithLogger(s.logger.WithGroup("runner")))
		if err != nil {
			s.logger.Error("Module skipped", "file", decl.File, "error", err)
			continue
		}
		if err := r.Init(ctx, decl.Arguments); err != nil {
			s.logger.Error("Module skipped after failed init", "module", r.Name(), "error", err)
			if err := r.Close(ctx); err != nil {
				s.logger.Warn("Failed to release module", "module", r.Name(), "error", err)
			}
			continue
		}
		runners = append(runners, r)
	}

	s.mu.Lock()
	s.runners = runners
	s.status = Status{
		Mode:       settings.Mode,
		TotalSteps: settings.TotalSteps(),
		StartedAt:  time.Now(),
	}
	s.mu.Unlock()

	s.logger.Info("Simulation initialized",
		"mode", settings.Mode, "step", settings.Step, "modules", len(runners),
		"total_steps", settings.TotalSteps())
	return nil
}

func (s *Simulator) enterStart(ctx context.Context) {
	runners := s.Runners()

	s.sync("init", runners, (*module.Runner).SyncInits)
	for _, r := range runners {
		r.Start(ctx)
	}
	s.sync("output", runners, (*module.Runner).SyncOutputs)

	s.steps = 0
	s.recorder.SyncLog(0)
	s.publish(0)
}

// step runs one step: inputs, every plugin, outputs, then a log sample.
func (s *Simulator) step(ctx context.Context) {
	runners := s.Runners()
	dt := s.active.TimeAt(1)

	s.sync("input", runners, (*module.Runner).SyncInputs)
	for _, r := range runners {
		r.Step(ctx, dt)
	}
	s.sync("output", runners, (*module.Runner).SyncOutputs)

	s.steps++
	t := s.active.TimeAt(s.steps)
	s.recorder.SyncLog(t)
	s.publish(t)
}

// batch runs up to batchSize offline steps and stops the run once every step
// has been taken.
func (s *Simulator) batch(ctx context.Context) {
	total := s.active.TotalSteps()
	for i := 0; i < s.batchSize && s.steps < total; i++ {
		s.step(ctx)
	}
	if s.steps < total {
		return
	}

	s.completed = true
	s.logger.Info("Offline run complete", "steps", s.steps)
	if err := s.machine.Apply(ctx, lifecycle.StopRequest); err != nil {
		s.logger.Error("Failed to stop completed run", "error", err)
	}
}

func (s *Simulator) arm() {
	if s.active.Mode == Offline {
		s.batching = true
		return
	}
	s.ticker = time.NewTicker(s.active.Interval())
}

func (s *Simulator) disarm() {
	s.batching = false
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

func (s *Simulator) enterStop(ctx context.Context) {
	runners := s.Runners()

	s.sync("input", runners, (*module.Runner).SyncInputs)
	for _, r := range runners {
		r.Stop(ctx)
	}
	s.sync("output", runners, (*module.Runner).SyncOutputs)

	s.release(ctx)
	s.logger.Info("Simulation stopped", "steps", s.steps, "time", s.active.TimeAt(s.steps))
}

func (s *Simulator) enterIdle(ctx context.Context) {
	s.release(ctx)
	if s.completed && s.shutdownOnComplete {
		select {
		case s.shutdown <- struct{}{}:
		default:
		}
	}
}

// release closes every runner, unloading its plugin.
func (s *Simulator) release(ctx context.Context) {
	s.mu.Lock()
	runners := s.runners
	s.runners = nil
	if len(runners) > 0 {
		s.lastRunners = describe(runners)
	}
	s.mu.Unlock()

	for _, r := range runners {
		if err := r.Close(ctx); err != nil {
			s.logger.Warn("Failed to release module", "module", r.Name(), "error", err)
		}
	}
}

// sync runs one sync pass over all runners under a single store lock.
func (s *Simulator) sync(kind string, runners []*module.Runner, fn func(*module.Runner) error) {
	s.store.Lock()
	defer s.store.Unlock()

	for _, r := range runners {
		if err := fn(r); err != nil {
			s.logger.Warn("Transfer sync failed", "sync", kind, "module", r.Name(), "error", err)
		}
	}
}

func (s *Simulator) publish(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Time = t
	s.status.Steps = s.steps
}
