package alloc

import (
	"github.com/joshuapare/heapkit/internal/format"
)

// take removes the block at blk from the free list (prev is its
// predecessor, Nil at the head) and shrinks it to need bytes when the
// leftover can host a block with at least format.MinPayload bytes of
// payload. The leftover takes blk's place in the list, which keeps the list
// in address order since it sits above blk.
func (h *heapState) take(prev, blk Addr, need uint64) {
	size := h.blockSize(blk)
	succ := h.next(blk)

	if size-need >= format.MinSplitRemainder {
		rem := blk + Addr(need)
		h.setHeader(rem, size-need, succ)
		h.setHeader(blk, need, Nil)
		succ = rem
		h.stats.SplitCount++
	} else {
		h.setNext(blk, Nil)
	}

	if prev == Nil {
		h.head = succ
	} else {
		h.setNext(prev, succ)
	}
}

// insert links a free block of size bytes at blk into the list in address
// order, then merges it with its successor and its predecessor when they
// are physically adjacent. Both directions are checked every time since
// one block can bridge two free regions.
func (h *heapState) insert(blk Addr, size uint64) {
	var prev Addr
	cur := h.head
	for cur != Nil && cur < blk {
		prev = cur
		cur = h.next(cur)
	}

	h.setHeader(blk, size, cur)
	if prev == Nil {
		h.head = blk
	} else {
		h.setNext(prev, blk)
	}

	if cur != Nil && h.adjacent(blk, size, cur) {
		size += h.blockSize(cur)
		h.setHeader(blk, size, h.next(cur))
		h.stats.CoalesceForward++
	}

	if prev != Nil {
		prevSize := h.blockSize(prev)
		if h.adjacent(prev, prevSize, blk) {
			h.setHeader(prev, prevSize+size, h.next(blk))
			h.stats.CoalesceBackward++
		}
	}
}

// walkFree calls fn for each free block in list order until fn returns
// false. The walk is capped at the number of headers the arena could hold
// so a corrupted list cannot loop forever.
func (h *heapState) walkFree(fn func(Block) bool) {
	limit := h.size/headerSize + 1
	for cur := h.head; cur != Nil && limit > 0; cur = h.next(cur) {
		if !fn(Block{Addr: cur, Size: h.blockSize(cur)}) {
			return
		}
		limit--
	}
}

// topFree returns the free block that ends at the arena top, if any.
func (h *heapState) topFree() (Block, bool) {
	var top Block
	found := false
	h.walkFree(func(b Block) bool {
		if b.End() == h.arena.top {
			top, found = b, true
			return false
		}
		return true
	})
	return top, found
}
