// Package verify provides validation functions for heapkit arenas.
//
// # Overview
//
// The checks run against the read-only views an allocator exposes (segments,
// free list, live blocks) and never touch arena bytes, so they are safe to
// call on a live allocator between operations.
//
// Validation categories:
//   - Segments: alignment, ordering, total equals the arena size
//   - Free list: address order, alignment, minimum size, containment, no
//     unmerged neighbours
//   - Coverage: free and live blocks tile each segment with no overlap
//
// # Quick Start
//
//	la, _ := alloc.New(nil)
//	// ... allocate and free ...
//	if err := verify.AllInvariants(la); err != nil {
//	    fmt.Printf("Validation failed: %v\n", err)
//	}
//
// # ValidationError
//
// All validation functions return *ValidationError on failure:
//
//	type ValidationError struct {
//	    Type    string         // Error category (e.g., "FreeList")
//	    Message string         // Human-readable description
//	    Addr    alloc.Addr     // Block or segment address (alloc.Nil if N/A)
//	    Details map[string]any // Additional context
//	}
package verify
