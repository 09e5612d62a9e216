package module

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robbyt/go-loglater"

	"github.com/atlanticdynamic/simkernel/internal/sim/lifecycle"
	"github.com/atlanticdynamic/simkernel/internal/sim/store"
	"github.com/atlanticdynamic/simkernel/internal/sim/variable"
)

var _ Host = (*Runner)(nil)

// Phase reports the lifecycle state the owning simulation is in.
type Phase interface {
	State() lifecycle.State
}

// Message is one line a plugin printed.
type Message struct {
	Time  time.Time
	Level Level
	Text  string
}

// Binding describes one Transfer of a Runner.
type Binding struct {
	Name      string
	Type      variable.Type
	Direction variable.Direction
	Active    bool
}

// Runner owns one loaded plugin and the transfers it created.
//
// Plugin entry points, callbacks and syncs all run on the scheduler goroutine.
// Bindings, Failures and Messages may be read from any goroutine.
type Runner struct {
	decl   variable.Module
	name   string
	plugin Plugin
	store  *store.Store
	phase  Phase

	mu        sync.Mutex
	transfers []*store.Transfer
	byKey     map[any]*store.Transfer
	failures  int
	closed    bool

	messages *loglater.LogCollector
	printer  *slog.Logger
	logger   *slog.Logger
}

// New loads decl through loader and binds the plugin to the returned Runner.
func New(
	ctx context.Context,
	decl variable.Module,
	loader Loader,
	st *store.Store,
	phase Phase,
	opts ...Option,
) (*Runner, error) {
	if err := decl.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	if loader == nil || st == nil || phase == nil {
		return nil, fmt.Errorf("%w: runner needs a loader, a store and a phase", ErrLoad)
	}

	r := &Runner{
		decl:   decl,
		name:   decl.Name(),
		store:  st,
		phase:  phase,
		byKey:  make(map[any]*store.Transfer),
		logger: slog.Default().WithGroup("module.Runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("module", r.name)
	// history is kept at every level, the kernel log filters on its own
	r.messages = loglater.NewLogCollector(nil)
	r.printer = slog.New(r.messages)

	plugin, err := loader.Load(ctx, decl.File)
	if err != nil {
		if errors.Is(err, ErrMissingEntryPoint) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, decl.File, err)
	}
	r.plugin = plugin
	plugin.Bind(r)

	r.logger.Debug("Module loaded", "file", decl.File)
	return r, nil
}

// String returns the module name.
func (r *Runner) String() string { return r.name }

// Name returns the module name.
func (r *Runner) Name() string { return r.name }

// Declaration returns the module declaration the runner was created from.
func (r *Runner) Declaration() variable.Module { return r.decl }

// Init splits args into argv and calls the plugin's init entry point.
func (r *Runner) Init(ctx context.Context, args string) error {
	argv := SplitArgs(r.name, args)
	return r.call("init", func() error { return r.plugin.Init(ctx, argv) })
}

// Start calls the plugin's start entry point. Failures are logged.
func (r *Runner) Start(ctx context.Context) {
	_ = r.call("start", func() error { return r.plugin.Start(ctx) })
}

// Step calls the plugin's step entry point. Failures are logged.
func (r *Runner) Step(ctx context.Context, dt float64) {
	_ = r.call("step", func() error { return r.plugin.Step(ctx, dt) })
}

// Stop calls the plugin's stop entry point. Failures are logged.
func (r *Runner) Stop(ctx context.Context) {
	_ = r.call("stop", func() error { return r.plugin.Stop(ctx) })
}

// Close unloads the plugin and destroys every transfer.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.transfers = nil
	clear(r.byKey)
	r.mu.Unlock()

	err := r.call("close", func() error { return r.plugin.Close(ctx) })
	r.logger.Debug("Module released")
	return err
}

// call runs one plugin entry point, converting a panic into ErrPluginPanic.
func (r *Runner) call(op string, fn func() error) (err error) {
	r.mu.Lock()
	closed := r.closed && op != "close"
	r.mu.Unlock()
	if closed {
		return ErrClosed
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w in %s: %v", ErrPluginPanic, op, p)
		}
		if err != nil {
			r.mu.Lock()
			r.failures++
			r.mu.Unlock()
			r.logger.Error("Plugin call failed", "call", op, "error", err)
		}
	}()
	return fn()
}

// Use binds loc to the store slot called name. It is refused outside Init and
// for memory already bound by this runner.
func (r *Runner) Use(name string, typ variable.Type, loc store.Location, dir variable.Direction) error {
	if state := r.phase.State(); state != lifecycle.Init {
		err := fmt.Errorf("%w: module %s bound %s in %s", ErrNotInInit, r.name, name, state)
		r.logger.Error("Binding refused", "variable", name, "state", state, "error", err)
		return err
	}
	if loc == nil {
		r.logger.Error("Binding refused", "variable", name, "error", store.ErrNilLocation)
		return store.ErrNilLocation
	}

	key := loc.Key()
	r.mu.Lock()
	_, dup := r.byKey[key]
	r.mu.Unlock()
	if dup {
		err := fmt.Errorf("%w: module %s bound %s", ErrDuplicateBinding, r.name, name)
		r.logger.Error("Binding refused", "variable", name, "error", err)
		return err
	}

	t, err := r.store.Bind(name, typ, dir, loc)
	if err != nil {
		r.logger.Error("Binding refused", "variable", name, "type", typ, "error", err)
		return err
	}

	r.mu.Lock()
	r.transfers = append(r.transfers, t)
	r.byKey[key] = t
	r.mu.Unlock()

	r.logger.Debug("Variable bound", "variable", name, "type", typ, "direction", dir)
	return nil
}

// On unmutes the transfer bound to key.
func (r *Runner) On(key any) error {
	return r.setActive(key, true)
}

// Off mutes the transfer bound to key.
func (r *Runner) Off(key any) error {
	return r.setActive(key, false)
}

func (r *Runner) setActive(key any, active bool) error {
	r.mu.Lock()
	t, ok := r.byKey[key]
	r.mu.Unlock()
	if !ok {
		err := fmt.Errorf("%w: module %s", ErrUnknownBinding, r.name)
		r.logger.Warn("Binding toggle ignored", "active", active, "error", err)
		return err
	}

	r.store.Lock()
	t.SetActive(active)
	r.store.Unlock()
	return nil
}

// Print records a plugin message and forwards it to the kernel log.
func (r *Runner) Print(level Level, text string) {
	ctx := context.Background()
	r.printer.Log(ctx, level.slogLevel(), text)
	r.logger.Log(ctx, level.slogLevel(), text)
}

// SyncInits seeds every active transfer from the store. The caller holds the
// store lock.
func (r *Runner) SyncInits() error {
	return r.sync((*store.Transfer).SyncInit)
}

// SyncInputs copies store values into Input transfers. The caller holds the
// store lock.
func (r *Runner) SyncInputs() error {
	return r.sync((*store.Transfer).SyncInput)
}

// SyncOutputs copies Output transfers into the store. The caller holds the
// store lock.
func (r *Runner) SyncOutputs() error {
	return r.sync((*store.Transfer).SyncOutput)
}

func (r *Runner) sync(fn func(*store.Transfer) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, t := range r.transfers {
		if err := fn(t); err != nil {
			r.failures++
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Bindings lists the runner's transfers in binding order.
func (r *Runner) Bindings() []Binding {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Binding, 0, len(r.transfers))
	for _, t := range r.transfers {
		out = append(out, Binding{
			Name:      t.Name(),
			Type:      t.Type(),
			Direction: t.Direction(),
			Active:    t.Active(),
		})
	}
	return out
}

// Failures counts failed plugin calls and transfer syncs.
func (r *Runner) Failures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures
}

// Messages returns everything the plugin printed, oldest first.
func (r *Runner) Messages() []Message {
	records := r.messages.GetLogs()
	out := make([]Message, 0, len(records))
	for _, rec := range records {
		out = append(out, Message{
			Time:  rec.Time,
			Level: levelFromSlog(rec.Level),
			Text:  rec.Message,
		})
	}
	return out
}

// PlayMessages replays the plugin messages into handler.
func (r *Runner) PlayMessages(handler slog.Handler) error {
	return r.messages.PlayLogs(handler)
}
