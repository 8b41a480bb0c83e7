package alloc

import (
	"fmt"
	"sort"

	"github.com/joshuapare/heapkit/heap/source"
	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
)

const headerSize = format.HeaderSize

// segment is a run of contiguous increments backed by one byte slice.
type segment struct {
	base Addr
	mem  []byte
}

func (s *segment) end() Addr { return s.base + Addr(len(s.mem)) }

// arena owns the memory obtained from the source and maps addresses to
// bytes. Segments are kept sorted by base address and never overlap.
type arena struct {
	src       source.Source
	increment int

	segs []*segment
	size uint64 // total bytes obtained from src
	top  Addr   // end of the most recent increment
}

// find returns the segment containing addr and addr's offset inside it.
// O(log S) via binary search on segment bases.
func (a *arena) find(addr Addr) (*segment, int, bool) {
	i := sort.Search(len(a.segs), func(i int) bool {
		return a.segs[i].end() > addr
	})
	if i == len(a.segs) || a.segs[i].base > addr {
		return nil, 0, false
	}
	s := a.segs[i]
	return s, int(addr - s.base), true
}

// hdr returns the header bytes of the block at addr. Every header read and
// write in this package goes through here.
func (a *arena) hdr(addr Addr) []byte {
	s, off, ok := a.find(addr)
	if !ok {
		panic(fmt.Sprintf("alloc: header 0x%x outside arena", uint64(addr)))
	}
	h, ok := buf.Slice(s.mem, off, headerSize)
	if !ok {
		panic(fmt.Sprintf("alloc: header 0x%x crosses segment end 0x%x", uint64(addr), uint64(s.end())))
	}
	return h
}

func (a *arena) blockSize(addr Addr) uint64 {
	return format.ReadU64(a.hdr(addr), format.SizeOffset)
}

func (a *arena) next(addr Addr) Addr {
	return Addr(format.ReadU64(a.hdr(addr), format.NextOffset))
}

func (a *arena) setNext(addr, next Addr) {
	format.PutU64(a.hdr(addr), format.NextOffset, uint64(next))
}

func (a *arena) setHeader(addr Addr, size uint64, next Addr) {
	format.PutHeader(a.hdr(addr), size, uint64(next))
}

// payload returns the usable bytes of the block at addr.
func (a *arena) payload(addr Addr) ([]byte, bool) {
	s, off, ok := a.find(addr)
	if !ok {
		return nil, false
	}
	size := a.blockSize(addr)
	if size < headerSize || size > uint64(len(s.mem)-off) {
		return nil, false
	}
	return buf.Slice(s.mem, off+headerSize, int(size)-headerSize)
}

// adjacent reports whether a block at lo of loSize bytes ends exactly where
// hi begins, with both inside the same segment. Address arithmetic alone is
// not enough: two increments may touch in the address space without
// sharing backing memory.
func (a *arena) adjacent(lo Addr, loSize uint64, hi Addr) bool {
	if lo+Addr(loSize) != hi {
		return false
	}
	s, _, ok := a.find(lo)
	return ok && hi < s.end()
}

// obtain requests one increment from the source and maps it. The returned
// block spans the whole increment, rounded down to 8 bytes.
func (a *arena) obtain() (Block, error) {
	inc, err := a.src.Grow(a.increment)
	if err != nil {
		return Block{}, fmt.Errorf("%w: %w", ErrGrowFail, err)
	}
	if len(inc.Mem) < a.increment {
		return Block{}, fmt.Errorf("%w: source returned %d of %d bytes", ErrGrowFail, len(inc.Mem), a.increment)
	}
	if inc.Base == Nil || !format.IsAligned8(uint64(inc.Base)) {
		return Block{}, fmt.Errorf("%w: misaligned increment base 0x%x", ErrGrowFail, uint64(inc.Base))
	}
	inc.Mem = inc.Mem[:a.increment]
	if err := a.add(inc); err != nil {
		return Block{}, err
	}
	return Block{Addr: inc.Base, Size: format.AlignDown8U64(uint64(len(inc.Mem)))}, nil
}

// add records inc in the segment table. An increment that starts where a
// segment ends, and whose bytes are reachable through that segment's
// capacity, extends the segment; anything else becomes a new segment.
func (a *arena) add(inc source.Increment) error {
	i := sort.Search(len(a.segs), func(i int) bool {
		return a.segs[i].base >= inc.Base
	})
	if i < len(a.segs) && a.segs[i].base < inc.End() {
		return fmt.Errorf("%w: increment 0x%x overlaps segment at 0x%x", ErrGrowFail, uint64(inc.Base), uint64(a.segs[i].base))
	}
	if i > 0 && a.segs[i-1].end() > inc.Base {
		return fmt.Errorf("%w: increment 0x%x overlaps segment at 0x%x", ErrGrowFail, uint64(inc.Base), uint64(a.segs[i-1].base))
	}

	a.size += uint64(len(inc.Mem))
	a.top = inc.End()

	if i > 0 {
		prev := a.segs[i-1]
		n := len(prev.mem)
		if prev.end() == inc.Base && cap(prev.mem)-n >= len(inc.Mem) {
			prev.mem = prev.mem[:n+len(inc.Mem)]
			return nil
		}
	}

	a.segs = append(a.segs, nil)
	copy(a.segs[i+1:], a.segs[i:])
	a.segs[i] = &segment{base: inc.Base, mem: inc.Mem}
	return nil
}

// extendsTop reports whether the next n increments can be expected to
// continue the segment holding the current arena top.
func (a *arena) extendsTop(n uint64) bool {
	if a.top == Nil {
		return false
	}
	s, _, ok := a.find(a.top - 1)
	if !ok || s.end() != a.top {
		return false
	}
	room := uint64(cap(s.mem) - len(s.mem))
	return room/uint64(a.increment) >= n
}

func (a *arena) segments() []Segment {
	out := make([]Segment, 0, len(a.segs))
	for _, s := range a.segs {
		out = append(out, Segment{Base: s.base, Size: uint64(len(s.mem))})
	}
	return out
}

func (a *arena) release() error {
	a.segs = nil
	if a.src == nil {
		return nil
	}
	err := a.src.Close()
	a.src = nil
	return err
}
