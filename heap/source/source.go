// Package source provides the growth primitives heapkit arenas are built on.
//
// A Source plays the role of the operating system's "extend data segment"
// call: each Grow hands the allocator one increment of fresh memory at some
// base address, or fails. Two consecutive increments are not assumed to be
// contiguous; callers compare addresses to find out.
//
// Addresses are virtual: they name positions in the allocator's address
// space and are never dereferenced as Go pointers. The contract that makes
// this work is that an increment whose Base equals the end of an earlier
// increment shares backing memory with it, exactly like a program break.
package source

import "errors"

// Addr is an address in an allocator's virtual address space.
type Addr uint64

var (
	// ErrExhausted is the failure sentinel returned when a source cannot
	// provide the requested increment.
	ErrExhausted = errors.New("source: exhausted")

	// ErrClosed indicates Grow was called after Close.
	ErrClosed = errors.New("source: closed")

	// ErrBadIncrement indicates a non-positive increment was requested.
	ErrBadIncrement = errors.New("source: increment must be positive")
)

// DefaultBase is where sources place their first increment. It is non-zero
// so that address 0 can serve as the nil address.
const DefaultBase Addr = 0x10000

// Increment is one contiguous region obtained from a single Grow call.
type Increment struct {
	Base Addr
	Mem  []byte
}

// End returns the address one past the last byte of the increment.
func (i Increment) End() Addr {
	return i.Base + Addr(len(i.Mem))
}

// Source is a bulk heap-growth primitive.
type Source interface {
	// Grow returns n bytes of memory usable by the caller. The contents are
	// undefined. On failure it returns an error wrapping ErrExhausted (or
	// ErrClosed) and the source is left unchanged.
	Grow(n int) (Increment, error)

	// Close releases everything the source handed out.
	Close() error
}

// Func adapts a plain function to the Source interface. Close is a no-op.
type Func func(n int) (Increment, error)

// Grow calls f(n).
func (f Func) Grow(n int) (Increment, error) { return f(n) }

// Close does nothing.
func (f Func) Close() error { return nil }
