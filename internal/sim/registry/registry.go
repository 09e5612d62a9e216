// Package registry holds the authoring-time declarations of variables and
// modules, and notifies subscribers when they change.
package registry

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/atlanticdynamic/simkernel/internal/sim/variable"
)

// ChangeKind identifies what happened to a declaration.
type ChangeKind int

const (
	VariableInserted ChangeKind = iota + 1
	VariableRemoved
	ModuleInserted
	ModuleRemoved
	ModuleChanged
)

func (k ChangeKind) String() string {
	switch k {
	case VariableInserted:
		return "VariableInserted"
	case VariableRemoved:
		return "VariableRemoved"
	case ModuleInserted:
		return "ModuleInserted"
	case ModuleRemoved:
		return "ModuleRemoved"
	case ModuleChanged:
		return "ModuleChanged"
	default:
		return "Unknown"
	}
}

// Change is delivered to subscribers after a declaration is mutated.
type Change struct {
	Kind     ChangeKind
	Variable variable.Variable
	Module   variable.Module
}

// Registry stores variable and module declarations in insertion order.
type Registry struct {
	// writeMu is held from a mutation until its notifications are delivered,
	// so subscribers see changes in the order they were applied.
	writeMu sync.Mutex

	mu        sync.RWMutex
	variables []variable.Variable
	modules   []variable.Module

	subMu       sync.Mutex
	subscribers map[uint64]func(Change)
	nextSub     uint64

	logger *slog.Logger
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		subscribers: make(map[uint64]func(Change)),
		logger:      slog.Default().WithGroup("registry.Registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe registers fn for every change. Notifications are delivered
// synchronously and in order on the mutating goroutine. fn may read the
// registry but must not mutate it.
func (r *Registry) Subscribe(fn func(Change)) (unsubscribe func()) {
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subscribers[id] = fn
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		delete(r.subscribers, id)
		r.subMu.Unlock()
	}
}

func (r *Registry) notify(c Change) {
	r.subMu.Lock()
	ids := make([]uint64, 0, len(r.subscribers))
	for id := range r.subscribers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, r.subscribers[id])
	}
	r.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// InsertVariable declares a variable. Invalid or duplicate names fail without
// changing the registry.
func (r *Registry) InsertVariable(v variable.Variable) error {
	if err := v.Validate(); err != nil {
		return err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	if r.variableIndex(v.Name) >= 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateVariable, v.Name)
	}
	r.variables = append(r.variables, v)
	r.mu.Unlock()

	r.logger.Debug("Variable declared", "name", v.Name, "type", v.Type, "unit", v.Unit)
	r.notify(Change{Kind: VariableInserted, Variable: v})
	return nil
}

// RemoveVariable removes a declared variable.
func (r *Registry) RemoveVariable(name string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	i := r.variableIndex(name)
	if i < 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	v := r.variables[i]
	r.variables = slices.Delete(r.variables, i, i+1)
	r.mu.Unlock()

	r.logger.Debug("Variable removed", "name", name)
	r.notify(Change{Kind: VariableRemoved, Variable: v})
	return nil
}

// Variable returns the declaration for name.
func (r *Registry) Variable(name string) (variable.Variable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.variableIndex(name)
	if i < 0 {
		return variable.Variable{}, false
	}
	return r.variables[i], true
}

// Variables returns a copy of all variable declarations in insertion order.
func (r *Registry) Variables() []variable.Variable {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.variables)
}

// InsertModule declares a module. The file must be non-empty and not already
// registered.
func (r *Registry) InsertModule(m variable.Module) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidModule, err)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	if r.moduleIndex(m.File) >= 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateModule, m.File)
	}
	r.modules = append(r.modules, m)
	r.mu.Unlock()

	r.logger.Debug("Module declared", "file", m.File, "active", m.Active)
	r.notify(Change{Kind: ModuleInserted, Module: m})
	return nil
}

// RemoveModule removes a declared module by file.
func (r *Registry) RemoveModule(file string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	i := r.moduleIndex(file)
	if i < 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownModule, file)
	}
	m := r.modules[i]
	r.modules = slices.Delete(r.modules, i, i+1)
	r.mu.Unlock()

	r.notify(Change{Kind: ModuleRemoved, Module: m})
	return nil
}

// SetModuleActive toggles whether a module takes part in the next run.
func (r *Registry) SetModuleActive(file string, active bool) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	i := r.moduleIndex(file)
	if i < 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownModule, file)
	}
	if r.modules[i].Active == active {
		r.mu.Unlock()
		return nil
	}
	r.modules[i].Active = active
	m := r.modules[i]
	r.mu.Unlock()

	r.notify(Change{Kind: ModuleChanged, Module: m})
	return nil
}

// Modules returns a copy of all module declarations in insertion order.
func (r *Registry) Modules() []variable.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.modules)
}

// ActiveModules returns the modules flagged active, in insertion order.
func (r *Registry) ActiveModules() []variable.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []variable.Module
	for _, m := range r.modules {
		if m.Active {
			active = append(active, m)
		}
	}
	return active
}

// Clear removes every declaration, notifying a removal for each.
func (r *Registry) Clear() {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	vars := r.variables
	mods := r.modules
	r.variables = nil
	r.modules = nil
	r.mu.Unlock()

	for _, v := range vars {
		r.notify(Change{Kind: VariableRemoved, Variable: v})
	}
	for _, m := range mods {
		r.notify(Change{Kind: ModuleRemoved, Module: m})
	}
}

func (r *Registry) variableIndex(name string) int {
	return slices.IndexFunc(r.variables, func(v variable.Variable) bool { return v.Name == name })
}

func (r *Registry) moduleIndex(file string) int {
	return slices.IndexFunc(r.modules, func(m variable.Module) bool { return m.File == file })
}
