package store

import "github.com/atlanticdynamic/simkernel/internal/sim/variable"

// Pointer is a Location over Go memory, used by in-process plugins.
type Pointer[T scalar] struct {
	p *T
}

// Ref wraps p as a Location.
func Ref[T float64 | float32 | int32 | uint32](p *T) *Pointer[T] {
	return &Pointer[T]{p: p}
}

// Key returns the pointer itself.
func (r *Pointer[T]) Key() any { return r.p }

// Load reads *p.
func (r *Pointer[T]) Load() (float64, bool) {
	if r.p == nil {
		return 0, false
	}
	return float64(*r.p), true
}

// Save writes *p.
func (r *Pointer[T]) Save(v float64) bool {
	if r.p == nil {
		return false
	}
	*r.p = T(v)
	return true
}

// Type returns the variable type matching T.
func (r *Pointer[T]) Type() variable.Type {
	return TypeFor[T]()
}

// TypeFor maps a Go scalar type to its variable type.
func TypeFor[T scalar]() variable.Type {
	var zero T
	switch any(zero).(type) {
	case float64:
		return variable.TypeDouble
	case float32:
		return variable.TypeFloat
	case int32:
		return variable.TypeInt32
	case uint32:
		return variable.TypeUint32
	default:
		return variable.TypeUnknown
	}
}
