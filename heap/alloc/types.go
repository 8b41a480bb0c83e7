package alloc

import (
	"fmt"
	"sync/atomic"

	"github.com/joshuapare/heapkit/heap/source"
)

// Addr is an address in the allocator's virtual address space.
type Addr = source.Addr

// Nil is the nil address. No block ever lives at Nil.
const Nil Addr = 0

// Ref is an owned handle to a live allocation.
//
// A Ref pairs the payload address with the generation the block was handed
// out under, so a handle kept past Free is rejected even after the same
// address has been reused. Generations are unique across every allocator in
// the process, so a handle from one allocator never names a block of another
// even when both arenas start at the same address. The zero Ref is the nil
// handle.
type Ref struct {
	addr Addr
	gen  uint64
}

var generations atomic.Uint64

// nextGen returns a process-wide unique, non-zero generation.
func nextGen() uint64 { return generations.Add(1) }

// Addr returns the payload address. It is 8-byte aligned.
func (r Ref) Addr() Addr { return r.addr }

// IsNil reports whether r is the nil handle.
func (r Ref) IsNil() bool { return r.addr == Nil }

func (r Ref) String() string {
	if r.IsNil() {
		return "ref(nil)"
	}
	return fmt.Sprintf("ref(0x%x#%d)", uint64(r.addr), r.gen)
}

// Info is a snapshot of free space. Sizes are payload bytes; header overhead
// is excluded.
type Info struct {
	FreeSize          uint64 `json:"free_size"`
	FreeChunks        int    `json:"free_chunks"`
	LargestFreeChunk  uint64 `json:"largest_free_chunk_size"`
	SmallestFreeChunk uint64 `json:"smallest_free_chunk_size"`
}

// Block describes one block for read-only walks: the header address and the
// total size including the header.
type Block struct {
	Addr Addr
	Size uint64
}

// End returns the address one past the block.
func (b Block) End() Addr { return b.Addr + Addr(b.Size) }

// Payload returns the address handed to callers for this block.
func (b Block) Payload() Addr { return b.Addr + headerSize }

// Segment is a maximal run of contiguous arena memory.
type Segment struct {
	Base Addr
	Size uint64
}

// End returns the address one past the segment.
func (s Segment) End() Addr { return s.Base + Addr(s.Size) }

// Allocator defines the interface shared by heapkit allocators.
//
// Implementations:
//   - ListAllocator: address-ordered free list with first/best/worst fit
//   - BumpAllocator: append-only baseline that never reuses freed memory
type Allocator interface {
	// Alloc returns a handle to at least align8(size) usable bytes.
	Alloc(size int) (Ref, error)

	// Free releases ref. Freeing the nil handle is a no-op.
	Free(ref Ref) error

	// Bytes returns the payload of a live allocation.
	Bytes(ref Ref) ([]byte, error)

	// Configure selects the placement strategy and arena ceiling (0 = unlimited).
	Configure(strategy Strategy, limit uint64)

	// Info scans free space.
	Info() Info

	// Stats returns operation counters.
	Stats() Counters

	// ArenaSize returns the total bytes obtained from the source.
	ArenaSize() uint64

	// Close releases the arena.
	Close() error
}
