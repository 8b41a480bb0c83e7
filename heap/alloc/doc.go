// Package alloc provides a free-list memory allocator over an arena grown
// from a bulk heap-growth primitive.
//
// # Overview
//
// The arena is built from increments obtained from a source.Source, the
// stand-in for the operating system's "extend data segment" call. Every
// block, free or allocated, carries a 16-byte in-band header (see
// internal/format). Free blocks are chained through that header into a
// singly-linked list kept in strictly increasing address order, so freeing a
// block can merge it with its neighbours on both sides.
//
// # Allocator Interface
//
// The core abstraction is the Allocator interface:
//
//   - Alloc(size): allocate at least align8(size) bytes
//   - Free(ref): return a block to the free list
//   - Configure(strategy, limit): select placement and arena ceiling
//   - Info(): free-space snapshot
//
// # Implementations
//
// ListAllocator: production allocator
//
//   - First-fit, best-fit and worst-fit placement
//   - Splits blocks when the leftover can hold a header plus 8 bytes
//   - Coalesces adjacent free blocks on every release and every growth
//   - Grows one increment at a time, never past the configured limit
//
// BumpAllocator: append-only baseline
//
//   - Never reuses freed memory
//   - Used by heapctl to show what reuse and coalescing save
//
// # Usage Example
//
//	la, err := alloc.New(&alloc.Config{Strategy: alloc.BestFit, Limit: 1 << 20})
//	if err != nil {
//	    return err
//	}
//	defer la.Close()
//
//	ref, err := la.Alloc(100)
//	if err != nil {
//	    return err
//	}
//	b, _ := la.Bytes(ref) // len(b) >= 104
//	copy(b, "hello")
//
//	if err := la.Free(ref); err != nil {
//	    return err
//	}
//
// # Handles
//
// Alloc returns a Ref rather than a bare address. A Ref carries the
// generation its block was handed out under; Free and Bytes reject a Ref
// whose block has been released, even if the address was reused since.
// Double frees and foreign handles therefore fail with ErrNotAllocated
// instead of corrupting the free list.
//
// # Growth and Limits
//
// The first Alloc obtains one increment and turns it into a single free
// block. When no free block fits, the allocator obtains as many increments
// as the request needs, inserts each into the list in address order and
// merges it with adjacent free blocks. Increments are only merged when the
// source placed them back to back in the same backing memory. If a limit is
// set, the whole growth run is checked before the source is called, so
// refused growth never changes the arena.
//
// # Thread Safety
//
// ListAllocator and BumpAllocator guard every method with a mutex. The free
// list itself is single-threaded state.
//
// # Related Packages
//
//   - github.com/joshuapare/heapkit/heap/source: growth primitives
//   - github.com/joshuapare/heapkit/heap/verify: arena invariant checks
//   - github.com/joshuapare/heapkit/heap/workload: scripted and random workloads
package alloc
