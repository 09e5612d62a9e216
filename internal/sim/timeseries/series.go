// Package timeseries implements the fixed-capacity ring buffer used for the
// simulation time axis and for every logged variable.
package timeseries

import (
	"fmt"
	"slices"
)

const (
	MinDepth = 10
	MaxDepth = 20
)

// Series is a ring buffer of 2^depth samples. It is not safe for concurrent
// use; callers serialize access.
type Series struct {
	data  []float64
	pos   int
	depth int
}

// New returns a Series initialized to depth and filled with fill.
func New(depth int, fill float64) (*Series, error) {
	s := &Series{}
	if !s.Initialize(depth, fill) {
		return nil, fmt.Errorf("%w: depth %d", ErrAllocation, ClampDepth(depth))
	}
	return s, nil
}

// ClampDepth limits depth to [MinDepth, MaxDepth].
func ClampDepth(depth int) int {
	return min(max(depth, MinDepth), MaxDepth)
}

// Initialize resizes the buffer to 2^clamp(depth) samples, all set to fill, and
// resets the write position. It returns false if the buffer cannot be allocated,
// leaving the previous contents in place.
func (s *Series) Initialize(depth int, fill float64) (ok bool) {
	depth = ClampDepth(depth)

	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	data := make([]float64, 1<<depth)
	for i := range data {
		data[i] = fill
	}
	s.data = data
	s.depth = depth
	s.pos = 0
	return true
}

// Append overwrites the oldest sample with v.
func (s *Series) Append(v float64) {
	if len(s.data) == 0 {
		return
	}
	s.data[s.pos] = v
	s.pos = (s.pos + 1) & (len(s.data) - 1)
}

// Value returns the i-th sample, where 0 is the oldest and Size()-1 the newest.
func (s *Series) Value(i int) float64 {
	n := len(s.data)
	if n == 0 {
		return 0
	}
	return s.data[(s.pos+i)&(n-1)]
}

// Last returns the most recently appended sample.
func (s *Series) Last() float64 {
	return s.Value(s.Size() - 1)
}

// Size returns the capacity, always a power of two once initialized.
func (s *Series) Size() int { return len(s.data) }

// Depth returns log2 of Size.
func (s *Series) Depth() int { return s.depth }

// Position returns the next write index, which is also the index of the oldest sample.
func (s *Series) Position() int { return s.pos }

// Clone returns a deep copy that does not observe later appends.
func (s *Series) Clone() *Series {
	return &Series{
		data:  slices.Clone(s.data),
		pos:   s.pos,
		depth: s.depth,
	}
}

// Values returns the samples from oldest to newest.
func (s *Series) Values() []float64 {
	out := make([]float64, 0, len(s.data))
	out = append(out, s.data[s.pos:]...)
	return append(out, s.data[:s.pos]...)
}

// Tail returns the newest n samples, oldest first.
func (s *Series) Tail(n int) []float64 {
	n = min(max(n, 0), len(s.data))
	out := make([]float64, n)
	for i := range n {
		out[i] = s.Value(len(s.data) - n + i)
	}
	return out
}
