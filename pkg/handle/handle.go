// Package handle provides generation-checked opaque handles for
// adapter state the host engine holds across callbacks. The host only
// copies a Handle and passes it back unchanged; the arena that issued
// it retains the exclusive right to interpret its bits. Releasing a
// handle bumps its slot's generation, so a stale handle fails fast
// instead of resolving to recycled state.
package handle

import (
	"errors"
	"fmt"
	"sync"
)

// ErrStaleHandle marks a handle that was never issued by the arena or
// was already released. Dereferencing after teardown is a programming
// error in the caller, not a recoverable condition.
var ErrStaleHandle = errors.New("stale handle")

// Handle is the host-visible token for one arena entry. The zero value
// is never issued and never resolves.
type Handle struct {
	index uint32
	gen   uint32
}

// IsZero reports whether the handle is the never-issued zero value.
func (h Handle) IsZero() bool { return h.gen == 0 }

// String renders the handle for logs without exposing its meaning.
func (h Handle) String() string {
	return fmt.Sprintf("h%d.%d", h.index, h.gen)
}

type slot[T any] struct {
	gen  uint32
	live bool
	val  T
}

// Arena owns a set of values addressable by opaque handles. At most
// one live handle exists per stored value; Release invalidates it.
// Values stay at a fixed slot for their whole lifetime, giving the
// repeated-callback protocol the address stability it requires.
type Arena[T any] struct {
	mu    sync.Mutex
	slots []slot[T]
	free  []uint32
}

// NewArena creates an empty arena.
func NewArena[T any]() *Arena[T] {
	return &Arena[T]{}
}

// Alloc stores v and returns its handle.
func (a *Arena[T]) Alloc(v T) Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.slots = append(a.slots, slot[T]{})
		idx = uint32(len(a.slots) - 1)
	}

	s := &a.slots[idx]
	s.gen++
	s.live = true
	s.val = v
	return Handle{index: idx, gen: s.gen}
}

// Get resolves a handle to its stored value.
func (a *Arena[T]) Get(h Handle) (T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var zero T
	s, err := a.resolve(h)
	if err != nil {
		return zero, err
	}
	return s.val, nil
}

// Release invalidates the handle and returns the value it referenced
// so the caller can tear it down. The slot is recycled under a new
// generation.
func (a *Arena[T]) Release(h Handle) (T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var zero T
	s, err := a.resolve(h)
	if err != nil {
		return zero, err
	}

	v := s.val
	s.live = false
	s.val = zero
	a.free = append(a.free, h.index)
	return v, nil
}

// Len returns the number of live entries.
func (a *Arena[T]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.slots) - len(a.free)
}

func (a *Arena[T]) resolve(h Handle) (*slot[T], error) {
	if h.IsZero() || int(h.index) >= len(a.slots) {
		return nil, fmt.Errorf("handle %s: %w", h, ErrStaleHandle)
	}
	s := &a.slots[h.index]
	if !s.live || s.gen != h.gen {
		return nil, fmt.Errorf("handle %s: %w", h, ErrStaleHandle)
	}
	return s, nil
}
