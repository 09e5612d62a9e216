package store

// slotTable is the type-erased view of a table the Store dispatches through.
type slotTable interface {
	insert(name string, init float64) int
	remove(name string) bool
	lookup(name string) (int, bool)
	valid(i int) bool
	get(i int) float64
	set(i int, v float64)
	reset()
	len() int
}

// scalar is the set of slot storage types.
type scalar interface {
	~float64 | ~float32 | ~int32 | ~uint32
}

type slot[T scalar] struct {
	name  string
	value T
	init  T
	live  bool
}

// table is an append-only slot list. Removed slots are tombstoned so indexes held
// by Transfers and Values never shift onto another variable.
type table[T scalar] struct {
	slots []slot[T]
	index map[string]int
}

func newTable[T scalar]() *table[T] {
	return &table[T]{index: make(map[string]int)}
}

func (t *table[T]) insert(name string, init float64) int {
	t.slots = append(t.slots, slot[T]{name: name, value: T(init), init: T(init), live: true})
	i := len(t.slots) - 1
	t.index[name] = i
	return i
}

func (t *table[T]) remove(name string) bool {
	i, ok := t.index[name]
	if !ok {
		return false
	}
	t.slots[i].live = false
	delete(t.index, name)
	return true
}

func (t *table[T]) lookup(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

func (t *table[T]) valid(i int) bool {
	return i >= 0 && i < len(t.slots) && t.slots[i].live
}

func (t *table[T]) get(i int) float64 {
	return float64(t.slots[i].value)
}

func (t *table[T]) set(i int, v float64) {
	t.slots[i].value = T(v)
}

func (t *table[T]) reset() {
	for i := range t.slots {
		t.slots[i].value = t.slots[i].init
	}
}

func (t *table[T]) len() int {
	return len(t.index)
}
