// Package store implements the typed variable database the simulation modules
// read and write through Transfers.
//
// Slots are segregated into one table per scalar type. Plugins never hold a slot
// address: a Transfer keeps the slot index and the store epoch it was created in,
// and is validated again at every sync.
package store

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/atlanticdynamic/simkernel/internal/sim/variable"
)

// Store is the shared variable database. Its mutex is the single lock guarding
// slot reads, writes, inserts, removals and Transfer syncs.
type Store struct {
	mu     sync.Mutex
	tables [4]slotTable
	types  map[string]variable.Type
	epoch  uint64

	logger *slog.Logger
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		logger: slog.Default().WithGroup("store.Store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.init()
	return s
}

func (s *Store) init() {
	s.tables = [4]slotTable{
		newTable[float64](),
		newTable[float32](),
		newTable[int32](),
		newTable[uint32](),
	}
	s.types = make(map[string]variable.Type)
}

func (s *Store) table(t variable.Type) slotTable {
	return s.tables[t-variable.TypeDouble]
}

// Lock acquires the store mutex for a batch of Transfer syncs or GetAsync reads.
func (s *Store) Lock() { s.mu.Lock() }

// Unlock releases the store mutex.
func (s *Store) Unlock() { s.mu.Unlock() }

// Insert creates the slot for a declared variable, initialized to its initial value.
func (s *Store) Insert(v variable.Variable) error {
	if !v.Type.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidType, v.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.types[v.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateVariable, v.Name)
	}
	s.table(v.Type).insert(v.Name, v.Type.Convert(v.Init))
	s.types[v.Name] = v.Type
	s.logger.Debug("Slot inserted", "name", v.Name, "type", v.Type)
	return nil
}

// Remove deletes the slot for name. Transfers and Values bound to it become stale.
func (s *Store) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.types[name]
	if !ok {
		return false
	}
	s.table(t).remove(name)
	delete(s.types, name)
	s.logger.Debug("Slot removed", "name", name)
	return true
}

// Clear removes every slot and invalidates all outstanding Transfers and Values.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.init()
	s.epoch++
}

// Reset restores every slot to its declared initial value.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tables {
		t.reset()
	}
}

// Len returns the number of live slots.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.types)
}

// Names returns the sorted names of all live slots.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.types))
	for name := range s.types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// TypeOf returns the slot type of name.
func (s *Store) TypeOf(name string) (variable.Type, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.types[name]
	return t, ok
}

// Read returns a handle to the current value of name.
func (s *Store) Read(name string) (Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.types[name]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	i, _ := s.table(t).lookup(name)
	return Value{store: s, name: name, typ: t, index: i, epoch: s.epoch}, nil
}

// Write sets the current value of name, converted to its slot type.
func (s *Store) Write(name string, v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.types[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	i, _ := s.table(t).lookup(name)
	s.table(t).set(i, t.Convert(v))
	return nil
}

// Bind creates a Transfer between plugin memory and the slot called name. The
// slot must exist with exactly the requested type.
func (s *Store) Bind(
	name string,
	typ variable.Type,
	dir variable.Direction,
	loc Location,
) (*Transfer, error) {
	if !typ.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidType, typ)
	}
	if !dir.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDirection, dir)
	}
	if loc == nil {
		return nil, ErrNilLocation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.table(typ).lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: no %s slot named %s", ErrUnknownVariable, typ, name)
	}

	return &Transfer{
		store:  s,
		name:   name,
		typ:    typ,
		dir:    dir,
		index:  i,
		epoch:  s.epoch,
		loc:    loc,
		active: true,
	}, nil
}

// valid reports whether (typ, index, epoch) still names a live slot. The caller
// holds the lock.
func (s *Store) valid(typ variable.Type, index int, epoch uint64) bool {
	return epoch == s.epoch && typ.IsValid() && s.table(typ).valid(index)
}

// Value is a read handle to one slot.
type Value struct {
	store *Store
	name  string
	typ   variable.Type
	index int
	epoch uint64
}

// Name returns the variable name the handle was created for.
func (v Value) Name() string { return v.name }

// Type returns the slot type.
func (v Value) Type() variable.Type { return v.typ }

// Get locks the store and returns the current value. The second result is false
// when the slot no longer exists.
func (v Value) Get() (float64, bool) {
	if v.store == nil {
		return 0, false
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return v.GetAsync()
}

// GetAsync returns the current value without locking. The caller must hold the
// store lock.
func (v Value) GetAsync() (float64, bool) {
	if v.store == nil || !v.store.valid(v.typ, v.index, v.epoch) {
		return 0, false
	}
	return v.store.table(v.typ).get(v.index), true
}
