// Package declwatcher loads a declaration document into a kernel and reloads
// it when the file changes or the supervisor asks for a reload. Changes that
// arrive during a run are applied when the kernel returns to Idle.
package declwatcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robbyt/go-supervisor/supervisor"

	"github.com/atlanticdynamic/simkernel/internal/config"
	"github.com/atlanticdynamic/simkernel/internal/config/loader"
	"github.com/atlanticdynamic/simkernel/internal/server/finitestate"
	"github.com/atlanticdynamic/simkernel/internal/sim/kernel"
	"github.com/atlanticdynamic/simkernel/internal/sim/lifecycle"
)

var (
	_ supervisor.Runnable   = (*Runner)(nil)
	_ supervisor.Reloadable = (*Runner)(nil)
	_ supervisor.Stateable  = (*Runner)(nil)
	_ Declarer              = (*kernel.Context)(nil)
)

const defaultDebounce = 100 * time.Millisecond

// Declarer receives declaration documents, usually a kernel.
type Declarer interface {
	Declare(ctx context.Context, cfg *config.Config) error
	Subscribe(ctx context.Context) <-chan lifecycle.Notification
}

type Runner struct {
	filePath string
	target   Declarer
	debounce time.Duration

	reloadMu   sync.Mutex
	lastData   []byte
	lastConfig atomic.Pointer[config.Config]
	pending    atomic.Bool

	logger *slog.Logger
	fsm    finitestate.Machine

	runCtx    context.Context
	runCancel context.CancelFunc
	parentCtx context.Context
}

// NewRunner creates a Runner that declares the document at filePath into target.
func NewRunner(filePath string, target Declarer, opts ...Option) (*Runner, error) {
	if target == nil {
		return nil, ErrNoTarget
	}

	runner := &Runner{
		filePath:  filePath,
		target:    target,
		debounce:  defaultDebounce,
		logger:    slog.Default().WithGroup("declwatcher.Runner"),
		parentCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(runner)
	}
	if filePath != "" {
		abs, err := filepath.Abs(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", filePath, err)
		}
		runner.filePath = abs
	}

	fsm, err := finitestate.New(runner.logger.WithGroup("fsm").Handler())
	if err != nil {
		return nil, fmt.Errorf("failed to create state machine: %w", err)
	}
	runner.fsm = fsm
	return runner, nil
}

// String implements the supervisor.Runnable interface
func (r *Runner) String() string {
	return "declwatcher.Runner"
}

// Run implements the supervisor.Runnable interface
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Debug("Starting Runner")

	if err := r.fsm.Transition(finitestate.StatusBooting); err != nil {
		return fmt.Errorf("failed to transition to booting state: %w", err)
	}

	r.reloadMu.Lock()
	r.runCtx, r.runCancel = context.WithCancel(ctx)
	r.reloadMu.Unlock()

	if err := r.boot(); err != nil {
		if stateErr := r.fsm.Transition(finitestate.StatusError); stateErr != nil {
			r.logger.Error("Failed to transition to error state", "error", stateErr)
		}
		return fmt.Errorf("%w: %w", ErrBoot, err)
	}

	watcher, err := r.watch()
	if err != nil {
		if stateErr := r.fsm.Transition(finitestate.StatusError); stateErr != nil {
			r.logger.Error("Failed to transition to error state", "error", stateErr)
		}
		return err
	}
	if watcher != nil {
		defer func() {
			if err := watcher.Close(); err != nil {
				r.logger.Warn("Failed to close file watcher", "error", err)
			}
		}()
	}

	if err := r.fsm.Transition(finitestate.StatusRunning); err != nil {
		return fmt.Errorf("failed to transition to running state: %w", err)
	}

	r.loop(watcher)
	r.logger.Info("Runner shutting down")

	if r.fsm.GetState() != finitestate.StatusStopping {
		if err := r.fsm.Transition(finitestate.StatusStopping); err != nil {
			r.logger.Error("Failed to transition to stopping state", "error", err)
		}
	}
	if err := r.fsm.Transition(finitestate.StatusStopped); err != nil {
		return fmt.Errorf("failed to transition to stopped state: %w", err)
	}
	return nil
}

// boot declares the document once before watching starts.
func (r *Runner) boot() error {
	if r.filePath == "" {
		r.logger.Warn("No declaration path set, skipping boot")
		return nil
	}
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()
	return r.load(r.runCtx)
}

// watch subscribes to the directory holding the document, so editors that
// replace the file by renaming are still seen.
func (r *Runner) watch() (*fsnotify.Watcher, error) {
	if r.filePath == "" {
		return nil, nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(r.filePath)); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to watch %s: %w", r.filePath, err), watcher.Close())
	}
	return watcher, nil
}

func (r *Runner) loop(watcher *fsnotify.Watcher) {
	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if watcher != nil {
		events = watcher.Events
		errs = watcher.Errors
	}

	settle := time.NewTimer(r.debounce)
	settle.Stop()
	defer settle.Stop()

	notes := r.target.Subscribe(r.runCtx)

	for {
		select {
		case <-r.parentCtx.Done():
			r.logger.Debug("Parent context canceled")
			return
		case <-r.runCtx.Done():
			r.logger.Debug("Run context canceled")
			return

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) != r.filePath {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			r.logger.Debug("Declaration file changed", "op", ev.Op.String())
			settle.Reset(r.debounce)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			r.logger.Warn("File watcher error", "error", err)

		case <-settle.C:
			_ = r.Reload(r.runCtx)

		case n, ok := <-notes:
			if !ok {
				notes = nil
				continue
			}
			if n.Kind == lifecycle.Enter && n.State == lifecycle.Idle && r.pending.Load() {
				r.logger.Debug("Kernel idle, applying deferred declarations")
				_ = r.Reload(r.runCtx)
			}
		}
	}
}

// Stop implements the supervisor.Runnable interface
func (r *Runner) Stop() {
	r.logger.Debug("Stopping Runner")
	if err := r.fsm.Transition(finitestate.StatusStopping); err != nil {
		r.logger.Error("Failed to transition to stopping state", "error", err)
	}

	r.reloadMu.Lock()
	cancel := r.runCancel
	r.reloadMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Reload implements the supervisor.Reloadable interface. An unchanged file is
// skipped unless an earlier change is still waiting for the kernel to go idle.
// A document deferred because the kernel is running is not an error.
func (r *Runner) Reload(ctx context.Context) error {
	r.logger.Debug("Starting Reload...")
	if r.filePath == "" {
		r.logger.Warn("No declaration path set, skipping reload")
		return nil
	}

	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	if r.runCtx != nil {
		ctx = r.runCtx
	}

	reloading := r.fsm.TransitionIfCurrentState(finitestate.StatusRunning, finitestate.StatusReloading) == nil
	err := r.load(ctx)
	switch {
	case errors.Is(err, kernel.ErrBusy):
		r.logger.Info("Kernel is running, declarations deferred until idle")
		err = nil
	case err != nil:
		r.logger.Error("Failed to reload declarations", "error", err)
		err = fmt.Errorf("%w: %w", ErrReload, err)
	}
	if reloading {
		if stateErr := r.fsm.TransitionIfCurrentState(finitestate.StatusReloading, finitestate.StatusRunning); stateErr != nil {
			r.logger.Debug("Runner left reloading state", "state", r.fsm.GetState())
		}
	}
	r.logger.Debug("Reload completed")
	return err
}

// load reads, validates and declares the document. The caller holds reloadMu.
func (r *Runner) load(ctx context.Context) error {
	data, err := os.ReadFile(r.filePath)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrFailedToLoadConfig, err)
	}
	if r.lastData != nil && bytes.Equal(data, r.lastData) && !r.pending.Load() {
		r.logger.Debug("Declarations unchanged, skipping")
		return nil
	}

	format, err := loader.FormatFromPath(r.filePath)
	if err != nil {
		return err
	}
	cfg, err := config.NewConfigFromBytes(data, format)
	if err != nil {
		return err
	}

	if err := r.target.Declare(ctx, cfg); err != nil {
		if errors.Is(err, kernel.ErrBusy) {
			r.pending.Store(true)
		}
		return err
	}

	r.pending.Store(false)
	r.lastData = data
	r.lastConfig.Store(cfg)
	r.logger.Info("Declarations applied", "path", r.filePath,
		"variables", len(cfg.Variables), "modules", len(cfg.Modules))
	return nil
}

// GetConfig returns the last document declared successfully, or nil.
func (r *Runner) GetConfig() *config.Config {
	return r.lastConfig.Load()
}

// Pending reports whether a changed document is waiting for the kernel to go idle.
func (r *Runner) Pending() bool {
	return r.pending.Load()
}
