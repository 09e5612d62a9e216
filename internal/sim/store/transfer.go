package store

import (
	"fmt"

	"github.com/atlanticdynamic/simkernel/internal/sim/variable"
)

// Location is plugin-owned memory a Transfer copies values to and from. Every
// scalar type round-trips exactly through float64.
type Location interface {
	// Key identifies the memory inside one plugin, for duplicate binding checks.
	Key() any
	// Load reads the plugin value. It returns false if the memory is gone.
	Load() (float64, bool)
	// Save writes the plugin value. It returns false if the memory is gone.
	Save(v float64) bool
}

// Transfer binds one plugin memory location to one Store slot. Sync methods
// must be called with the store lock held.
type Transfer struct {
	store  *Store
	name   string
	typ    variable.Type
	dir    variable.Direction
	index  int
	epoch  uint64
	loc    Location
	active bool
}

// Name returns the bound variable name.
func (t *Transfer) Name() string { return t.name }

// Type returns the bound slot type.
func (t *Transfer) Type() variable.Type { return t.typ }

// Direction returns the transfer direction.
func (t *Transfer) Direction() variable.Direction { return t.dir }

// Key returns the plugin location key.
func (t *Transfer) Key() any { return t.loc.Key() }

// Active reports whether the transfer takes part in syncs.
func (t *Transfer) Active() bool { return t.active }

// SetActive mutes or unmutes the transfer without destroying it.
func (t *Transfer) SetActive(active bool) { t.active = active }

// Valid reports whether the bound slot still exists. The caller holds the lock.
func (t *Transfer) Valid() bool {
	return t.store.valid(t.typ, t.index, t.epoch)
}

// SyncInit copies the store value into the plugin regardless of direction.
func (t *Transfer) SyncInit() error {
	if !t.active {
		return nil
	}
	return t.toPlugin()
}

// SyncInput copies the store value into the plugin for Input transfers.
func (t *Transfer) SyncInput() error {
	if !t.active || !t.dir.IsInput() {
		return nil
	}
	return t.toPlugin()
}

// SyncOutput copies the plugin value into the store for Output transfers.
func (t *Transfer) SyncOutput() error {
	if !t.active || !t.dir.IsOutput() {
		return nil
	}
	if !t.Valid() {
		return fmt.Errorf("%w: %s", ErrStaleTransfer, t.name)
	}
	v, ok := t.loc.Load()
	if !ok {
		return fmt.Errorf("%w: %s", ErrLocationAccess, t.name)
	}
	t.store.table(t.typ).set(t.index, t.typ.Convert(v))
	return nil
}

func (t *Transfer) toPlugin() error {
	if !t.Valid() {
		return fmt.Errorf("%w: %s", ErrStaleTransfer, t.name)
	}
	if !t.loc.Save(t.store.table(t.typ).get(t.index)) {
		return fmt.Errorf("%w: %s", ErrLocationAccess, t.name)
	}
	return nil
}
