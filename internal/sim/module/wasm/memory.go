package wasm

import (
	"bytes"
	"math"

	"github.com/tetratelabs/wazero/api"

	"github.com/atlanticdynamic/simkernel/internal/sim/store"
	"github.com/atlanticdynamic/simkernel/internal/sim/variable"
)

var _ store.Location = (*location)(nil)

// location is one scalar in plugin linear memory. Accesses are bounds checked
// by wazero, so a location never reaches outside its module.
type location struct {
	mem    api.Memory
	offset uint32
	typ    variable.Type
}

func newLocation(mem api.Memory, offset uint32, typ variable.Type) (*location, bool) {
	if mem == nil || !typ.IsValid() {
		return nil, false
	}
	size := uint32(4)
	if typ == variable.TypeDouble {
		size = 8
	}
	if uint64(offset)+uint64(size) > uint64(mem.Size()) {
		return nil, false
	}
	return &location{mem: mem, offset: offset, typ: typ}, true
}

// Key is the plugin address, which is what sim_on and sim_off pass back.
func (l *location) Key() any { return l.offset }

func (l *location) Load() (float64, bool) {
	switch l.typ {
	case variable.TypeDouble:
		return l.mem.ReadFloat64Le(l.offset)
	case variable.TypeFloat:
		v, ok := l.mem.ReadFloat32Le(l.offset)
		return float64(v), ok
	case variable.TypeInt32:
		v, ok := l.mem.ReadUint32Le(l.offset)
		return float64(int32(v)), ok
	case variable.TypeUint32:
		v, ok := l.mem.ReadUint32Le(l.offset)
		return float64(v), ok
	default:
		return math.NaN(), false
	}
}

func (l *location) Save(v float64) bool {
	switch l.typ {
	case variable.TypeDouble:
		return l.mem.WriteFloat64Le(l.offset, v)
	case variable.TypeFloat:
		return l.mem.WriteFloat32Le(l.offset, float32(v))
	case variable.TypeInt32:
		return l.mem.WriteUint32Le(l.offset, uint32(int32(v)))
	case variable.TypeUint32:
		return l.mem.WriteUint32Le(l.offset, uint32(v))
	default:
		return false
	}
}

// readString reads a NUL terminated string of at most maxText bytes.
func readString(mem api.Memory, ptr uint32) (string, bool) {
	if mem == nil || ptr >= mem.Size() {
		return "", false
	}
	n := min(mem.Size()-ptr, maxText)
	buf, ok := mem.Read(ptr, n)
	if !ok {
		return "", false
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf), true
}
