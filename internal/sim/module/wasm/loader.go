// Package wasm loads simulation plugins compiled to WebAssembly.
//
// A plugin exports sim_init, sim_start, sim_step and sim_stop and imports its
// callbacks from the "env" host module. Every loaded plugin gets a handle which
// it passes back as the ctx argument of each callback; the loader validates the
// handle and the calling module before forwarding to the plugin's Host.
package wasm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/atlanticdynamic/simkernel/internal/sim/module"
)

// Extension is the file extension the loader is registered for.
const Extension = ".wasm"

// entry points and their parameter types. None of them return a value.
var entryPoints = map[string][]api.ValueType{
	"sim_init":  {api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32},
	"sim_start": {api.ValueTypeI32},
	"sim_step":  {api.ValueTypeF64, api.ValueTypeI32},
	"sim_stop":  {api.ValueTypeI32},
}

var _ module.Loader = (*Loader)(nil)

// Loader compiles and instantiates plugins in one shared wazero runtime.
type Loader struct {
	runtime          wazero.Runtime
	memoryLimitPages uint32

	mu      sync.RWMutex
	plugins map[uint32]*plugin
	next    uint32
	closed  bool

	logger *slog.Logger
}

// NewLoader creates the runtime and instantiates the WASI and "env" host modules.
func NewLoader(ctx context.Context, opts ...Option) (*Loader, error) {
	l := &Loader{
		plugins: make(map[uint32]*plugin),
		logger:  slog.Default().WithGroup("wasm.Loader"),
	}
	for _, opt := range opts {
		opt(l)
	}

	cfg := wazero.NewRuntimeConfig()
	if l.memoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(l.memoryLimitPages)
	}
	l.runtime = wazero.NewRuntimeWithConfig(ctx, cfg)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, l.runtime); err != nil {
		_ = l.runtime.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}
	if err := l.instantiateHost(ctx); err != nil {
		_ = l.runtime.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate host module: %w", err)
	}
	return l, nil
}

// Load reads file and loads it as a plugin.
func (l *Loader) Load(ctx context.Context, file string) (module.Plugin, error) {
	bin, err := os.ReadFile(module.TrimScheme(file))
	if err != nil {
		return nil, fmt.Errorf("failed to read module: %w", err)
	}
	return l.LoadBytes(ctx, file, bin)
}

// LoadBytes compiles bin, checks its entry points and instantiates it.
func (l *Loader) LoadBytes(ctx context.Context, name string, bin []byte) (module.Plugin, error) {
	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	compiled, err := l.runtime.CompileModule(ctx, bin)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}
	if err := checkEntryPoints(compiled); err != nil {
		_ = compiled.Close(ctx)
		return nil, fmt.Errorf("%w: %s: %w", module.ErrMissingEntryPoint, name, err)
	}

	p := &plugin{
		loader:   l,
		name:     name,
		compiled: compiled,
	}

	l.mu.Lock()
	l.next++
	p.handle = l.next
	l.mu.Unlock()

	cfg := wazero.NewModuleConfig().
		WithName(fmt.Sprintf("sim.%d", p.handle)).
		WithStartFunctions("_initialize")
	mod, err := l.runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, fmt.Errorf("%w: %s: %w", ErrInstantiate, name, err)
	}
	p.mod = mod
	p.init = mod.ExportedFunction("sim_init")
	p.start = mod.ExportedFunction("sim_start")
	p.step = mod.ExportedFunction("sim_step")
	p.stop = mod.ExportedFunction("sim_stop")
	for _, alloc := range []string{"sim_alloc", "malloc"} {
		if fn := mod.ExportedFunction(alloc); fn != nil && isAllocator(fn.Definition()) {
			p.alloc = fn
			break
		}
	}

	l.mu.Lock()
	l.plugins[p.handle] = p
	l.mu.Unlock()

	l.logger.Debug("Plugin instantiated", "name", name, "handle", p.handle)
	return p, nil
}

func checkEntryPoints(compiled wazero.CompiledModule) error {
	exports := compiled.ExportedFunctions()

	var missing []string
	for name, params := range entryPoints {
		def, ok := exports[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		if !slices.Equal(def.ParamTypes(), params) || len(def.ResultTypes()) != 0 {
			missing = append(missing, name+" (signature)")
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%v", missing)
	}
	return nil
}

// isAllocator reports whether def takes and returns a single i32.
func isAllocator(def api.FunctionDefinition) bool {
	return slices.Equal(def.ParamTypes(), []api.ValueType{api.ValueTypeI32}) &&
		slices.Equal(def.ResultTypes(), []api.ValueType{api.ValueTypeI32})
}

// lookup resolves a callback handle and checks it belongs to the calling module.
func (l *Loader) lookup(handle uint32, caller api.Module) (*plugin, bool) {
	l.mu.RLock()
	p, ok := l.plugins[handle]
	l.mu.RUnlock()

	if !ok {
		l.logger.Warn("Callback with unknown handle ignored", "handle", handle)
		return nil, false
	}
	if caller != nil && p.mod != nil && caller.Name() != p.mod.Name() {
		l.logger.Warn("Callback with foreign handle ignored",
			"handle", handle, "caller", caller.Name(), "owner", p.mod.Name())
		return nil, false
	}
	if p.host == nil {
		l.logger.Warn("Callback before plugin was bound", "handle", handle)
		return nil, false
	}
	return p, true
}

func (l *Loader) release(handle uint32) {
	l.mu.Lock()
	delete(l.plugins, handle)
	l.mu.Unlock()
}

// Len returns the number of live plugins.
func (l *Loader) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.plugins)
}

// Close releases the runtime and every plugin still loaded.
func (l *Loader) Close(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	clear(l.plugins)
	l.mu.Unlock()

	return l.runtime.Close(ctx)
}
