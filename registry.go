package odbcscan

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrUnknownHandle is returned for handles that were never issued, were
	// removed, or belong to an earlier occupant of a reused slot.
	ErrUnknownHandle = errors.New("odbcscan: unknown handle")
	// ErrHandleBorrowed is returned when a handle is borrowed while another
	// caller holds it.
	ErrHandleBorrowed = errors.New("odbcscan: handle already borrowed")
)

// Handle is an opaque identifier for an object parked in a Registry.
// The zero Handle is never issued.
type Handle uint64

func makeHandle(index, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(index))
}

func (h Handle) index() uint32 { return uint32(h) }
func (h Handle) gen() uint32   { return uint32(h >> 32) }

func (h Handle) String() string {
	return fmt.Sprintf("handle(%d#%d)", h.index(), h.gen())
}

type slot[T any] struct {
	value    T
	gen      uint32
	occupied bool
	borrowed bool
}

// Registry parks objects between independent calls. An object is moved out
// by Borrow and back by Return; while out, further borrows fail. Slots are
// reused with a bumped generation so stale handles are rejected.
type Registry[T any] struct {
	mu    sync.Mutex
	slots []slot[T]
	free  []uint32
}

// NewRegistry returns an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{}
}

// Put parks v and returns its handle.
func (r *Registry[T]) Put(v T) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		idx = uint32(len(r.slots))
		r.slots = append(r.slots, slot[T]{})
	}
	s := &r.slots[idx]
	s.gen++
	s.value = v
	s.occupied = true
	s.borrowed = false
	return makeHandle(idx, s.gen)
}

func (r *Registry[T]) lookup(h Handle) (*slot[T], error) {
	idx := h.index()
	if h == 0 || int(idx) >= len(r.slots) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	s := &r.slots[idx]
	if !s.occupied || s.gen != h.gen() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	return s, nil
}

// Borrow moves the object out of its slot. It must be handed back with
// Return or dropped with Remove.
func (r *Registry[T]) Borrow(h Handle) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	s, err := r.lookup(h)
	if err != nil {
		return zero, err
	}
	if s.borrowed {
		return zero, fmt.Errorf("%w: %s", ErrHandleBorrowed, h)
	}
	v := s.value
	s.value = zero
	s.borrowed = true
	return v, nil
}

// Return moves v back into the slot of a borrowed handle.
func (r *Registry[T]) Return(h Handle, v T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.lookup(h)
	if err != nil {
		return err
	}
	if !s.borrowed {
		return fmt.Errorf("odbcscan: return of %s that is not borrowed", h)
	}
	s.value = v
	s.borrowed = false
	return nil
}

// Remove frees the slot of h and returns the object if it was parked. A
// borrowed handle can be removed by its borrower; the zero value is then
// returned and the borrower keeps ownership.
func (r *Registry[T]) Remove(h Handle) (T, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	s, err := r.lookup(h)
	if err != nil {
		return zero, false, err
	}
	v, parked := s.value, !s.borrowed
	s.value = zero
	s.occupied = false
	s.borrowed = false
	r.free = append(r.free, h.index())
	return v, parked, nil
}

// Len returns the number of live handles.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots) - len(r.free)
}

// Drain removes every parked object and returns them. Borrowed slots are
// freed as well; their objects stay with the borrowers.
func (r *Registry[T]) Drain() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []T
	var zero T
	r.free = r.free[:0]
	for i := range r.slots {
		s := &r.slots[i]
		if s.occupied && !s.borrowed {
			out = append(out, s.value)
		}
		s.value = zero
		s.occupied = false
		s.borrowed = false
		r.free = append(r.free, uint32(i))
	}
	return out
}
