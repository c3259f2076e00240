// Package arena provides generation-tagged slot storage.
//
// Slots are addressed by Handle, a packed (slot, generation) pair.
// Removing an entry bumps the slot's generation, so a handle taken
// before the removal can never resolve again — even after the slot is
// reused. This is what lets callers hold ids to reactive nodes without
// ever observing stale or aliased data.
//
// An Arena is not safe for concurrent use; callers serialize access.
package arena

import "fmt"

// Handle addresses one arena slot. The zero Handle never resolves.
type Handle uint64

func newHandle(slot, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(slot))
}

// Slot returns the slot index portion of the handle.
func (h Handle) Slot() uint32 { return uint32(h) }

// Gen returns the generation portion of the handle.
func (h Handle) Gen() uint32 { return uint32(h >> 32) }

// IsZero reports whether h is the zero (never valid) handle.
func (h Handle) IsZero() bool { return h == 0 }

func (h Handle) String() string {
	return fmt.Sprintf("%dv%d", h.Slot(), h.Gen())
}

type slot[T any] struct {
	gen   uint32
	live  bool
	value T
}

// Arena stores values of type T in generation-tagged slots.
// The zero Arena is ready to use.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

// Insert stores v and returns its handle.
func (a *Arena[T]) Insert(v T) Handle {
	a.count++
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[idx]
		s.live = true
		s.value = v
		return newHandle(idx, s.gen)
	}
	// Generations start at 1 so the zero Handle stays invalid.
	a.slots = append(a.slots, slot[T]{gen: 1, live: true, value: v})
	return newHandle(uint32(len(a.slots)-1), 1)
}

// Get resolves h to its value. It returns false when h was removed or
// never existed; the pointer stays valid until the entry is removed.
func (a *Arena[T]) Get(h Handle) (*T, bool) {
	idx := h.Slot()
	if int(idx) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[idx]
	if !s.live || s.gen != h.Gen() {
		return nil, false
	}
	return &s.value, true
}

// Remove frees the entry addressed by h and bumps the slot generation.
// It reports whether h resolved to a live entry.
func (a *Arena[T]) Remove(h Handle) bool {
	idx := h.Slot()
	if int(idx) >= len(a.slots) {
		return false
	}
	s := &a.slots[idx]
	if !s.live || s.gen != h.Gen() {
		return false
	}
	var zero T
	s.value = zero
	s.live = false
	s.gen++
	a.free = append(a.free, idx)
	a.count--
	return true
}

// Len returns the number of live entries.
func (a *Arena[T]) Len() int { return a.count }

// Each visits live entries in slot order. Returning false stops the
// walk. Entries inserted during the walk may or may not be visited.
func (a *Arena[T]) Each(fn func(h Handle, v *T) bool) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.live {
			continue
		}
		if !fn(newHandle(uint32(i), s.gen), &s.value) {
			return
		}
	}
}
