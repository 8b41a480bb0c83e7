package source

import (
	"fmt"

	"github.com/joshuapare/heapkit/internal/format"
)

// DefaultGap is the unmapped distance Scattered leaves between increments.
const DefaultGap = 4096

// Scattered hands out every increment as a separate Go allocation placed at
// an address that never touches the previous one. It models an operating
// system that returns non-contiguous memory for consecutive growth calls.
//
// NOT thread-safe.
type Scattered struct {
	// Gap is the number of unmapped bytes between increments (rounded up to 8).
	Gap int
	// Limit caps the total bytes handed out; 0 means unlimited.
	Limit int

	next   Addr
	used   int
	closed bool
}

// NewScattered returns a Scattered source starting at DefaultBase.
func NewScattered(limit int) *Scattered {
	return &Scattered{Gap: DefaultGap, Limit: limit, next: DefaultBase}
}

// Grow allocates a fresh n-byte region.
func (s *Scattered) Grow(n int) (Increment, error) {
	if s.closed {
		return Increment{}, ErrClosed
	}
	if n <= 0 {
		return Increment{}, fmt.Errorf("source: grow %d: %w", n, ErrBadIncrement)
	}
	if s.Limit > 0 && s.used+n > s.Limit {
		return Increment{}, fmt.Errorf("%w: %d of %d bytes used, want %d more", ErrExhausted, s.used, s.Limit, n)
	}
	if s.next == 0 {
		s.next = DefaultBase
	}

	// Full slice expression: capacity must not reach past this increment.
	mem := make([]byte, n)
	inc := Increment{Base: s.next, Mem: mem[:n:n]}

	gap := format.Align8(s.Gap)
	if gap <= 0 {
		gap = format.Alignment
	}
	s.next = Addr(format.Align8U64(uint64(inc.End()))) + Addr(gap)
	s.used += n
	return inc, nil
}

// Used returns the total bytes handed out so far.
func (s *Scattered) Used() int {
	return s.used
}

// Close drops the source; the memory is reclaimed by the Go runtime once the
// allocator lets go of it.
func (s *Scattered) Close() error {
	s.closed = true
	return nil
}
