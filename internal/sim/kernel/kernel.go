// Package kernel owns one simulation: the declaration registry, the variable
// store, the data logger, the lifecycle machine and the simulator. It is the
// host-facing command and query surface.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/atlanticdynamic/simkernel/internal/config"
	"github.com/atlanticdynamic/simkernel/internal/sim/datalog"
	"github.com/atlanticdynamic/simkernel/internal/sim/lifecycle"
	"github.com/atlanticdynamic/simkernel/internal/sim/module"
	"github.com/atlanticdynamic/simkernel/internal/sim/module/builtin"
	"github.com/atlanticdynamic/simkernel/internal/sim/module/wasm"
	"github.com/atlanticdynamic/simkernel/internal/sim/registry"
	"github.com/atlanticdynamic/simkernel/internal/sim/simulator"
	"github.com/atlanticdynamic/simkernel/internal/sim/store"
	"github.com/atlanticdynamic/simkernel/internal/sim/timeseries"
	"github.com/atlanticdynamic/simkernel/internal/sim/variable"
)

// Context is one simulation kernel instance.
type Context struct {
	registry *registry.Registry
	store    *store.Store
	datalog  *datalog.Logger
	machine  *lifecycle.Machine
	sim      *simulator.Simulator

	loader    module.Loader
	wasm      *wasm.Loader
	wasmPages uint32

	parentCtx          context.Context
	maxSamples         int
	batchSize          int
	shutdownOnComplete bool

	mu          sync.RWMutex
	doc         *config.Config
	unsubscribe func()
	closeOnce   sync.Once

	handler slog.Handler
	logger  *slog.Logger
}

// New builds a kernel and wires its components together: registry changes
// drive the store and the logger, and leaving Idle applies pending log
// settings.
func New(ctx context.Context, opts ...Option) (*Context, error) {
	k := &Context{
		parentCtx: context.Background(),
		logger:    slog.Default().WithGroup("kernel.Context"),
	}
	for _, opt := range opts {
		opt(k)
	}
	handler := k.handler
	if handler == nil {
		handler = k.logger.Handler()
	}

	k.registry = registry.New(registry.WithLogHandler(handler))
	k.store = store.New(store.WithLogHandler(handler))
	k.datalog = datalog.New(k.store, k.registry,
		datalog.WithLogHandler(handler),
		datalog.WithMaxSamples(k.maxSamples))
	k.unsubscribe = k.registry.Subscribe(k.onChange)

	machine, err := lifecycle.New(lifecycle.WithLogHandler(handler))
	if err != nil {
		return nil, err
	}
	k.machine = machine
	k.machine.AddListener(k.onLifecycle)

	if k.loader == nil {
		var wasmOpts []wasm.Option
		wasmOpts = append(wasmOpts, wasm.WithLogHandler(handler))
		if k.wasmPages > 0 {
			wasmOpts = append(wasmOpts, wasm.WithMemoryLimitPages(k.wasmPages))
		}
		k.wasm, err = wasm.NewLoader(ctx, wasmOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create wasm loader: %w", err)
		}
		mux := module.NewMux()
		mux.HandleScheme(builtin.Scheme, builtin.NewLoader())
		mux.HandleExt(wasm.Extension, k.wasm)
		k.loader = mux
	}

	simOpts := []simulator.Option{
		simulator.WithLogHandler(handler),
		simulator.WithContext(k.parentCtx),
	}
	if k.batchSize > 0 {
		simOpts = append(simOpts, simulator.WithBatchSize(k.batchSize))
	}
	if k.shutdownOnComplete {
		simOpts = append(simOpts, simulator.WithShutdownOnComplete())
	}
	k.sim, err = simulator.New(k.machine, k.store, k.registry, k.datalog, k.loader, simOpts...)
	if err != nil {
		return nil, errors.Join(err, k.Close(ctx))
	}
	return k, nil
}

// onChange keeps the store slots and the log set in step with the registry.
func (k *Context) onChange(c registry.Change) {
	switch c.Kind {
	case registry.VariableInserted:
		if err := k.store.Insert(c.Variable); err != nil {
			k.logger.Error("Failed to create store slot", "variable", c.Variable.Name, "error", err)
		}
	case registry.VariableRemoved:
		k.datalog.RemoveLog(c.Variable.Name)
		k.store.Remove(c.Variable.Name)
	}
}

func (k *Context) onLifecycle(_ context.Context, n lifecycle.Notification) error {
	if n == (lifecycle.Notification{Kind: lifecycle.Exit, State: lifecycle.Idle}) {
		k.datalog.Reconfigure()
	}
	return nil
}

// Declare replaces every declaration with the contents of cfg: the run
// settings, the log depth, the variables, the modules and the log set. It is
// only allowed in Idle. cfg is checked in full before anything is cleared, so
// a rejected document leaves the previous declarations in place.
func (k *Context) Declare(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return ErrNilConfig
	}
	cfg = cfg.Clone()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", config.ErrFailedToValidateConfig, err)
	}
	settings, err := cfg.Simulation.Settings()
	if err != nil {
		return err
	}
	vars, mods, err := cfg.Declarations()
	if err != nil {
		return err
	}
	if err := k.datalog.Fits(cfg.Simulation.Depth, len(cfg.Logs)); err != nil {
		return err
	}

	return k.sim.Do(ctx, func() error {
		if state := k.machine.State(); state != lifecycle.Idle {
			return fmt.Errorf("%w: cannot declare in %s", ErrBusy, state)
		}
		if err := k.sim.Configure(settings); err != nil {
			return err
		}

		k.datalog.Clear()
		k.registry.Clear()
		k.store.Clear()
		k.datalog.Configure(cfg.Simulation.Depth, settings.Step)
		k.datalog.Reconfigure()

		var errs []error
		for _, v := range vars {
			errs = append(errs, k.registry.InsertVariable(v))
		}
		for _, m := range mods {
			errs = append(errs, k.registry.InsertModule(m))
		}
		for _, name := range cfg.Logs {
			errs = append(errs, k.datalog.AddLog(name))
		}

		k.mu.Lock()
		k.doc = cfg
		k.mu.Unlock()

		k.logger.Info("Declarations loaded",
			"variables", len(vars), "modules", len(mods), "logs", len(cfg.Logs),
			"mode", settings.Mode, "step", settings.Step)
		return errors.Join(errs...)
	})
}

// Document rebuilds a declaration document from the live registry, settings
// and log set. Logging options come from the last declared document.
func (k *Context) Document() *config.Config {
	settings := k.sim.Settings()
	doc := &config.Config{
		Version: config.VersionLatest,
		Simulation: config.Simulation{
			Mode:     settings.Mode.String(),
			Step:     settings.Step,
			Duration: settings.Duration,
			Depth:    k.datalog.Depth(),
		},
		Logs: k.datalog.Names(),
	}

	k.mu.RLock()
	if k.doc != nil {
		doc.Logging = k.doc.Logging
	}
	k.mu.RUnlock()

	for _, v := range k.registry.Variables() {
		doc.Variables = append(doc.Variables, config.Variable{
			Name: v.Name, Type: v.Type.String(), Unit: v.Unit, Init: v.Init,
		})
	}
	for _, m := range k.registry.Modules() {
		entry := config.Module{File: m.File, Arguments: m.Arguments}
		if !m.Active {
			active := false
			entry.Active = &active
		}
		doc.Modules = append(doc.Modules, entry)
	}
	return doc
}

// Close releases plugin runtimes. The simulator must have stopped.
func (k *Context) Close(ctx context.Context) error {
	var err error
	k.closeOnce.Do(func() {
		if k.unsubscribe != nil {
			k.unsubscribe()
		}
		if k.wasm != nil {
			err = k.wasm.Close(ctx)
		}
	})
	return err
}

// Runnable returns the simulator for supervision.
func (k *Context) Runnable() *simulator.Simulator {
	return k.sim
}

// Start requests a run, or resumes a paused one.
func (k *Context) Start(ctx context.Context) error { return k.sim.StartRun(ctx) }

// Stop requests the active run to stop.
func (k *Context) Stop(ctx context.Context) error { return k.sim.StopRun(ctx) }

// Pause requests the active run to pause.
func (k *Context) Pause(ctx context.Context) error { return k.sim.PauseRun(ctx) }

// State returns the lifecycle state.
func (k *Context) State() lifecycle.State { return k.machine.State() }

// Status returns a snapshot of the current or last run.
func (k *Context) Status() simulator.Status { return k.sim.Status() }

// Time returns the logical time of the current or last run.
func (k *Context) Time() float64 { return k.sim.Status().Time }

// Runners describes the modules loaded for the active run.
func (k *Context) Runners() []simulator.RunnerInfo { return k.sim.RunnerInfos() }

// LastRunners describes the modules of the last finished run.
func (k *Context) LastRunners() []simulator.RunnerInfo { return k.sim.LastRunnerInfos() }

// Settings returns the run settings.
func (k *Context) Settings() simulator.Settings { return k.sim.Settings() }

// Configure changes the run settings and the log depth. The log series are
// re-initialized when the next run leaves Idle.
func (k *Context) Configure(settings simulator.Settings, depth int) error {
	if err := k.sim.Configure(settings); err != nil {
		return err
	}
	k.datalog.Configure(depth, settings.Step)
	return nil
}

// Subscribe returns lifecycle notifications until ctx is done.
func (k *Context) Subscribe(ctx context.Context) <-chan lifecycle.Notification {
	return k.machine.Subscribe(ctx)
}

// Value reads the current value of a variable under the store lock.
func (k *Context) Value(name string) (float64, error) {
	v, err := k.store.Read(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnknownVariable, err)
	}
	got, ok := v.Get()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	return got, nil
}

// Series returns a snapshot of the logged series for name.
func (k *Context) Series(name string) (*timeseries.Series, bool) {
	return k.datalog.LogSeries(name)
}

// TimeAxis returns a snapshot of the shared log time axis.
func (k *Context) TimeAxis() (*timeseries.Series, bool) {
	return k.datalog.LogTime()
}

// Snapshot copies the time axis and every logged series at once.
func (k *Context) Snapshot() datalog.Snapshot {
	return k.datalog.Snapshot()
}

// AddLog starts logging a declared variable.
func (k *Context) AddLog(name string) error { return k.datalog.AddLog(name) }

// RemoveLog stops logging name.
func (k *Context) RemoveLog(name string) bool { return k.datalog.RemoveLog(name) }

// ClearLogs drops every log and releases the time axis.
func (k *Context) ClearLogs() { k.datalog.Clear() }

// Logs lists the logged variables.
func (k *Context) Logs() []string { return k.datalog.Names() }

// Variables lists the declared variables.
func (k *Context) Variables() []variable.Variable { return k.registry.Variables() }

// Modules lists the declared modules.
func (k *Context) Modules() []variable.Module { return k.registry.Modules() }

// InsertVariable declares a variable and creates its store slot.
func (k *Context) InsertVariable(v variable.Variable) error { return k.registry.InsertVariable(v) }

// RemoveVariable removes a variable, its store slot and its log.
func (k *Context) RemoveVariable(name string) error { return k.registry.RemoveVariable(name) }

// InsertModule declares a module for the next run.
func (k *Context) InsertModule(m variable.Module) error { return k.registry.InsertModule(m) }

// RemoveModule removes a module declaration.
func (k *Context) RemoveModule(file string) error { return k.registry.RemoveModule(file) }

// SetModuleActive toggles whether a module takes part in the next run.
func (k *Context) SetModuleActive(file string, active bool) error {
	return k.registry.SetModuleActive(file, active)
}
