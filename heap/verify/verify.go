// Package verify provides validation functions for heapkit arenas.
// These helpers are used in tests and by heapctl to ensure allocator invariants hold.
package verify

import (
	"fmt"
	"slices"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/internal/format"
)

// View is the read-only surface an allocator exposes for validation.
// *alloc.ListAllocator implements it.
type View interface {
	Segments() []alloc.Segment
	FreeBlocks() []alloc.Block
	LiveBlocks() []alloc.Block
	ArenaSize() uint64
}

var _ View = (*alloc.ListAllocator)(nil)

// Error types for different validation failures.
type ValidationError struct {
	Type    string
	Message string
	Addr    alloc.Addr
	Details map[string]any
}

func (e *ValidationError) Error() string {
	if e.Addr != alloc.Nil {
		return fmt.Sprintf("%s at 0x%X: %s", e.Type, uint64(e.Addr), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// AllInvariants validates all arena invariants in one call.
// Returns the first error encountered, or nil if all checks pass.
func AllInvariants(v View) error {
	segs := v.Segments()
	if err := Segments(segs, v.ArenaSize()); err != nil {
		return err
	}
	free := v.FreeBlocks()
	if err := FreeList(segs, free); err != nil {
		return err
	}
	return Coverage(segs, free, v.LiveBlocks())
}

// Segments validates that segments are aligned, sorted, disjoint, and sum to
// the arena size.
func Segments(segs []alloc.Segment, arenaSize uint64) error {
	var total uint64
	for i, s := range segs {
		if !format.IsAligned8(uint64(s.Base)) || s.Size%format.Alignment != 0 {
			return &ValidationError{
				Type:    "Segments",
				Message: fmt.Sprintf("segment not 8-byte aligned (size %d)", s.Size),
				Addr:    s.Base,
			}
		}
		if i > 0 && segs[i-1].End() > s.Base {
			return &ValidationError{
				Type:    "Segments",
				Message: fmt.Sprintf("segment overlaps or precedes segment at 0x%X", uint64(segs[i-1].Base)),
				Addr:    s.Base,
			}
		}
		total += s.Size
	}
	if total != arenaSize {
		return &ValidationError{
			Type:    "Segments",
			Message: fmt.Sprintf("segments cover %d bytes, arena size is %d", total, arenaSize),
			Details: map[string]any{"segments": total, "arena": arenaSize},
		}
	}
	return nil
}

// FreeList validates the free list: strictly increasing addresses, 8-byte
// alignment, room for a header plus payload, containment in one segment, and
// no two physically adjacent entries left unmerged.
func FreeList(segs []alloc.Segment, free []alloc.Block) error {
	prevSeg := -1
	for i, b := range free {
		if !format.IsAligned8(uint64(b.Addr)) || b.Size%format.Alignment != 0 {
			return &ValidationError{
				Type:    "FreeList",
				Message: fmt.Sprintf("block not 8-byte aligned (size %d)", b.Size),
				Addr:    b.Addr,
			}
		}
		if b.Size < format.MinSplitRemainder {
			return &ValidationError{
				Type:    "FreeList",
				Message: fmt.Sprintf("block of %d bytes is smaller than a header plus %d bytes", b.Size, format.MinPayload),
				Addr:    b.Addr,
			}
		}
		seg := containing(segs, b)
		if seg < 0 {
			return &ValidationError{
				Type:    "FreeList",
				Message: fmt.Sprintf("block of %d bytes lies outside every segment", b.Size),
				Addr:    b.Addr,
			}
		}
		if i > 0 {
			prev := free[i-1]
			if prev.Addr >= b.Addr {
				return &ValidationError{
					Type:    "FreeList",
					Message: fmt.Sprintf("list out of address order after 0x%X", uint64(prev.Addr)),
					Addr:    b.Addr,
					Details: map[string]any{"index": i},
				}
			}
			if prevSeg == seg && prev.End() == b.Addr {
				return &ValidationError{
					Type:    "FreeList",
					Message: fmt.Sprintf("adjacent free blocks not coalesced (previous at 0x%X)", uint64(prev.Addr)),
					Addr:    b.Addr,
				}
			}
		}
		prevSeg = seg
	}
	return nil
}

// Coverage validates that free and live blocks never overlap and tile every
// segment exactly, so no byte of the arena is lost or counted twice.
func Coverage(segs []alloc.Segment, free, live []alloc.Block) error {
	all := make([]alloc.Block, 0, len(free)+len(live))
	all = append(all, free...)
	all = append(all, live...)
	slices.SortFunc(all, func(a, b alloc.Block) int {
		switch {
		case a.Addr < b.Addr:
			return -1
		case a.Addr > b.Addr:
			return 1
		}
		return 0
	})

	covered := make([]uint64, len(segs))
	for i, b := range all {
		if i > 0 && all[i-1].End() > b.Addr {
			return &ValidationError{
				Type:    "Coverage",
				Message: fmt.Sprintf("block overlaps block at 0x%X", uint64(all[i-1].Addr)),
				Addr:    b.Addr,
			}
		}
		seg := containing(segs, b)
		if seg < 0 {
			return &ValidationError{
				Type:    "Coverage",
				Message: fmt.Sprintf("block of %d bytes lies outside every segment", b.Size),
				Addr:    b.Addr,
			}
		}
		covered[seg] += b.Size
	}

	for i, s := range segs {
		if covered[i] != s.Size {
			return &ValidationError{
				Type:    "Coverage",
				Message: fmt.Sprintf("blocks cover %d of %d segment bytes", covered[i], s.Size),
				Addr:    s.Base,
				Details: map[string]any{"covered": covered[i], "size": s.Size},
			}
		}
	}
	return nil
}

// containing returns the index of the segment holding all of b, or -1.
func containing(segs []alloc.Segment, b alloc.Block) int {
	i, _ := slices.BinarySearchFunc(segs, b.Addr, func(s alloc.Segment, a alloc.Addr) int {
		switch {
		case s.End() <= a:
			return -1
		case s.Base > a:
			return 1
		}
		return 0
	})
	if i < len(segs) && segs[i].Base <= b.Addr && b.End() <= segs[i].End() {
		return i
	}
	return -1
}
