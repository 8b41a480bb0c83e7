package source

import (
	"fmt"

	"github.com/joshuapare/heapkit/internal/format"
)

// DefaultReserve is the address range a Brk reserves when none is given.
const DefaultReserve = 256 << 20

// Brk emulates a program break over a reserved address range. Every
// increment starts where the previous one ended, so consecutive increments
// are always contiguous and share one backing mapping.
//
// On unix the range is an anonymous private mapping, so untouched pages
// cost nothing until the allocator writes to them.
//
// NOT thread-safe.
type Brk struct {
	base    Addr
	region  []byte
	brk     int
	release func() error
	closed  bool
}

// NewBrk reserves reserve bytes (rounded up to the page size) and returns a
// source whose break starts at DefaultBase.
func NewBrk(reserve int) (*Brk, error) {
	if reserve <= 0 {
		return nil, fmt.Errorf("source: reserve %d: %w", reserve, ErrBadIncrement)
	}
	reserve = format.AlignUp(reserve, pageSize())

	region, release, err := reserveRegion(reserve)
	if err != nil {
		return nil, err
	}
	return &Brk{
		base:    DefaultBase,
		region:  region,
		release: release,
	}, nil
}

// Grow advances the break by n bytes.
func (b *Brk) Grow(n int) (Increment, error) {
	if b.closed {
		return Increment{}, ErrClosed
	}
	if n <= 0 {
		return Increment{}, fmt.Errorf("source: grow %d: %w", n, ErrBadIncrement)
	}
	if n > len(b.region)-b.brk {
		return Increment{}, fmt.Errorf(
			"%w: break at %d of %d, want %d more bytes",
			ErrExhausted, b.brk, len(b.region), n,
		)
	}

	// The slice keeps the region's remaining capacity so an arena can extend
	// a segment over later increments without copying.
	inc := Increment{
		Base: b.base + Addr(b.brk),
		Mem:  b.region[b.brk : b.brk+n],
	}
	b.brk += n
	return inc, nil
}

// Break returns the current break address.
func (b *Brk) Break() Addr {
	return b.base + Addr(b.brk)
}

// Reserved returns the size of the reserved range.
func (b *Brk) Reserved() int {
	return len(b.region)
}

// Close unmaps the reserved range. Memory handed out by Grow must not be
// used afterwards. Calling Close twice is a no-op.
func (b *Brk) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.region = nil
	if b.release == nil {
		return nil
	}
	return b.release()
}
