// Package arena stores components in dense slices addressed by generational handles.
//
// A Handle stays valid until the slot it points to is freed. Reusing a slot bumps its
// generation, so stale handles are detected instead of silently aliasing a new entry.
package arena

// Handle identifies an entry in an Arena.
type Handle struct {
	Index      uint32
	Generation uint32
}

// Nil is the zero handle; it never refers to a live entry because generations start at 1.
var Nil = Handle{}

// IsNil reports whether h is the zero handle.
func (h Handle) IsNil() bool {
	return h.Generation == 0
}

type slot[T any] struct {
	value      T
	generation uint32
	alive      bool
}

// Arena is a generational slot allocator.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

// New creates an arena with the given initial capacity.
func New[T any](capacity int) *Arena[T] {
	return &Arena[T]{
		slots: make([]slot[T], 0, capacity),
		free:  make([]uint32, 0, capacity),
	}
}

// Insert stores value and returns its handle.
func (a *Arena[T]) Insert(value T) Handle {
	a.count++

	if n := len(a.free); n > 0 {
		index := a.free[n-1]
		a.free = a.free[:n-1]

		s := &a.slots[index]
		s.value = value
		s.alive = true
		return Handle{Index: index, Generation: s.generation}
	}

	a.slots = append(a.slots, slot[T]{value: value, generation: 1, alive: true})
	return Handle{Index: uint32(len(a.slots) - 1), Generation: 1}
}

// Remove frees the slot of h. It returns false if h is stale.
func (a *Arena[T]) Remove(h Handle) bool {
	if !a.Valid(h) {
		return false
	}

	s := &a.slots[h.Index]
	var zero T
	s.value = zero
	s.alive = false
	s.generation++
	if s.generation == 0 {
		// wrapped around, skip the nil generation
		s.generation = 1
	}
	a.free = append(a.free, h.Index)
	a.count--

	return true
}

// Valid reports whether h points to a live entry.
func (a *Arena[T]) Valid(h Handle) bool {
	if int(h.Index) >= len(a.slots) {
		return false
	}
	s := &a.slots[h.Index]
	return s.alive && s.generation == h.Generation
}

// Get returns a pointer to the entry of h, or nil if h is stale.
// The pointer is invalidated by the next Insert.
func (a *Arena[T]) Get(h Handle) *T {
	if !a.Valid(h) {
		return nil
	}
	return &a.slots[h.Index].value
}

// Len returns the number of live entries.
func (a *Arena[T]) Len() int {
	return a.count
}

// Each calls fn for every live entry in slot order. fn must not insert or remove.
func (a *Arena[T]) Each(fn func(h Handle, value *T)) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.alive {
			continue
		}
		fn(Handle{Index: uint32(i), Generation: s.generation}, &s.value)
	}
}

// Handles appends the handles of all live entries to dst.
func (a *Arena[T]) Handles(dst []Handle) []Handle {
	for i := range a.slots {
		if a.slots[i].alive {
			dst = append(dst, Handle{Index: uint32(i), Generation: a.slots[i].generation})
		}
	}
	return dst
}
