package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/source"
	"github.com/joshuapare/heapkit/internal/format"
)

// ============================================================================
// Allocator Construction
// ============================================================================

const testIncrement = 4096

// newTestAllocator creates a ListAllocator over a private Brk source. Zero
// fields in cfg fall back to testIncrement and a 1 MiB reservation.
func newTestAllocator(t testing.TB, cfg Config) *ListAllocator {
	t.Helper()

	if cfg.Increment == 0 {
		cfg.Increment = testIncrement
	}
	if cfg.Source == nil {
		brk, err := source.NewBrk(1 << 20)
		require.NoError(t, err)
		cfg.Source = brk
	}

	la, err := New(&cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = la.Close() })
	return la
}

// blockBytes returns the total block size serving a request of n bytes.
func blockBytes(n int) int {
	return format.Align8(n) + format.HeaderSize
}

// newLayout builds an arena that is exactly full and whose free list holds
// one chunk per payload size, in address order. Each chunk is followed by a
// live 8-byte guard block so no two chunks can merge. The arena limit is
// the arena size, so the allocator cannot grow past the layout.
//
// Returns the allocator and the payload address of each free chunk.
func newLayout(t testing.TB, strategy Strategy, payloads ...int) (*ListAllocator, []Addr) {
	t.Helper()

	total := 0
	for _, p := range payloads {
		total += blockBytes(p) + blockBytes(8)
	}
	la := newTestAllocator(t, Config{Strategy: strategy, Increment: total, Limit: uint64(total)})

	chunks := make([]Ref, 0, len(payloads))
	for _, p := range payloads {
		ref, err := la.Alloc(p)
		require.NoError(t, err)
		chunks = append(chunks, ref)
		_, err = la.Alloc(8)
		require.NoError(t, err)
	}
	require.Empty(t, la.FreeBlocks(), "layout must consume the whole arena")

	addrs := make([]Addr, 0, len(chunks))
	for _, ref := range chunks {
		require.NoError(t, la.Free(ref))
		addrs = append(addrs, ref.Addr())
	}
	require.Len(t, la.FreeBlocks(), len(payloads))
	assertInvariants(t, la)
	return la, addrs
}

// ============================================================================
// Invariant Checking
// ============================================================================

// assertInvariants checks the structural invariants of la:
//   - free list strictly ascending, 8-byte aligned, every block >= one minimal block
//   - every block lies inside one segment
//   - no two free blocks are physically adjacent
//   - free and live blocks never overlap and tile every segment exactly
func assertInvariants(t testing.TB, la *ListAllocator) {
	t.Helper()

	segs := la.Segments()
	free := la.FreeBlocks()
	live := la.LiveBlocks()

	inSegment := func(b Block) int {
		for i, s := range segs {
			if b.Addr >= s.Base && b.End() <= s.End() {
				return i
			}
		}
		return -1
	}

	for i, b := range free {
		require.Zero(t, uint64(b.Addr)%format.Alignment, "free block 0x%x misaligned", uint64(b.Addr))
		require.Zero(t, b.Size%format.Alignment, "free block 0x%x size %d misaligned", uint64(b.Addr), b.Size)
		require.GreaterOrEqual(t, b.Size, uint64(format.MinSplitRemainder), "free block 0x%x too small", uint64(b.Addr))
		require.GreaterOrEqual(t, inSegment(b), 0, "free block 0x%x outside arena", uint64(b.Addr))
		if i > 0 {
			prev := free[i-1]
			require.Less(t, prev.Addr, b.Addr, "free list out of order")
			if inSegment(prev) == inSegment(b) {
				require.NotEqual(t, prev.End(), b.Addr, "adjacent free blocks 0x%x and 0x%x not merged",
					uint64(prev.Addr), uint64(b.Addr))
			}
		}
	}

	all := append(append([]Block(nil), free...), live...)
	covered := make([]uint64, len(segs))
	for _, b := range all {
		i := inSegment(b)
		require.GreaterOrEqual(t, i, 0, "block 0x%x outside arena", uint64(b.Addr))
		covered[i] += b.Size
	}
	for i, s := range segs {
		require.Equal(t, s.Size, covered[i], "segment 0x%x not tiled exactly", uint64(s.Base))
	}

	sorted := sortedBlocks(all)
	for i := 1; i < len(sorted); i++ {
		require.LessOrEqual(t, sorted[i-1].End(), sorted[i].Addr, "blocks 0x%x and 0x%x overlap",
			uint64(sorted[i-1].Addr), uint64(sorted[i].Addr))
	}

	var arena uint64
	for _, s := range segs {
		arena += s.Size
	}
	require.Equal(t, la.ArenaSize(), arena)
}

func sortedBlocks(blocks []Block) []Block {
	out := append([]Block(nil), blocks...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Addr < out[j-1].Addr; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// scriptedSource returns increments at the given bases, each backed by its
// own slice, so touching increments never share memory.
func scriptedSource(bases ...Addr) source.Source {
	i := 0
	return source.Func(func(n int) (source.Increment, error) {
		if i >= len(bases) {
			return source.Increment{}, source.ErrExhausted
		}
		base := bases[i]
		i++
		mem := make([]byte, n)
		return source.Increment{Base: base, Mem: mem[:n:n]}, nil
	})
}
