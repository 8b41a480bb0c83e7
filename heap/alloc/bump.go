package alloc

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/joshuapare/heapkit/internal/format"
)

// BumpAllocator is an append-only allocator over the same arena and source
// machinery as ListAllocator. It serves every request from a bump pointer
// and never reuses freed memory, which makes it the baseline for measuring
// what free-list reuse and coalescing buy.
//
// Key characteristics:
//   - O(1) allocation: pure bump pointer, no list walk
//   - Free() only validates the handle and updates counters
//   - Strategy is ignored; Limit is honoured
//   - A run left behind when the source returns non-contiguous memory is
//     kept as a spare free chunk for reporting but never handed out
//
// All methods are safe for concurrent use.
type BumpAllocator struct {
	mu sync.Mutex
	arena

	limit uint64

	// cur is the bump pointer; end is the end of the current run. Both stay
	// Nil until the first allocation.
	cur Addr
	end Addr

	spare []Block

	live map[Addr]uint64

	stats  Counters
	log    *slog.Logger
	trace  bool
	closed bool
}

// NewBump creates a BumpAllocator.
//
// Parameters:
//   - cfg: allocator settings (use nil for DefaultConfig); Strategy is ignored
func NewBump(cfg *Config) (*BumpAllocator, error) {
	if cfg == nil {
		cfg = &DefaultConfig
	}
	c, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	return &BumpAllocator{
		arena: arena{
			src:       c.Source,
			increment: c.Increment,
		},
		limit: c.Limit,
		live:  make(map[Addr]uint64),
		log:   c.Logger,
		trace: debugEnabled(c.Logger),
	}, nil
}

// Alloc carves the next need bytes off the current run, growing the arena
// when the run is too short.
func (ba *BumpAllocator) Alloc(size int) (Ref, error) {
	ba.mu.Lock()
	defer ba.mu.Unlock()
	if ba.closed {
		return Ref{}, ErrClosed
	}
	ba.stats.AllocCalls++

	need, err := blockSizeFor(size)
	if err != nil {
		ba.stats.AllocFailures++
		return Ref{}, err
	}

	for ba.cur == Nil || uint64(ba.end-ba.cur) < need {
		before := uint64(ba.end - ba.cur)
		if err := ba.grow(); err != nil {
			ba.stats.AllocFailures++
			return Ref{}, err
		}
		// Growth that did not lengthen the run means the source is handing
		// out non-contiguous memory; a request this large can never fit.
		if uint64(ba.end-ba.cur) <= before {
			ba.stats.AllocFailures++
			return Ref{}, fmt.Errorf("%w: need %d bytes, increments are not contiguous", ErrNoSpace, need)
		}
	}

	blk := ba.cur
	ba.cur += Addr(need)
	ba.setHeader(blk, need, Nil)

	gen := nextGen()
	ba.live[blk] = gen
	ba.stats.BytesAllocated += need
	return Ref{addr: blk + headerSize, gen: gen}, nil
}

func (ba *BumpAllocator) grow() error {
	if ba.limit != 0 && ba.size+uint64(ba.increment) > ba.limit {
		ba.stats.GrowRefused++
		return fmt.Errorf("%w: arena %d + %d > %d", ErrLimit, ba.size, ba.increment, ba.limit)
	}
	blk, err := ba.obtain()
	if err != nil {
		ba.stats.GrowFailures++
		return err
	}
	ba.stats.GrowCalls++
	ba.stats.GrowBytes += blk.Size

	if ba.cur != Nil && blk.Addr == ba.end {
		if s, _, ok := ba.find(blk.Addr); ok && s.base < blk.Addr {
			ba.end = blk.End()
			return nil
		}
	}

	// Keep the abandoned tail as a spare free block (the remainder marker
	// the arena would otherwise lose track of).
	if tail := uint64(ba.end - ba.cur); ba.cur != Nil && tail >= format.MinSplitRemainder {
		ba.setHeader(ba.cur, tail, Nil)
		ba.spare = append(ba.spare, Block{Addr: ba.cur, Size: tail})
	}
	ba.cur = blk.Addr
	ba.end = blk.End()

	if ba.trace {
		ba.log.Debug("bump run", "base", hexAddr(blk.Addr), "size", blk.Size, "arena", ba.size)
	}
	return nil
}

// Free validates ref and forgets the block. The memory is not reused.
func (ba *BumpAllocator) Free(ref Ref) error {
	ba.mu.Lock()
	defer ba.mu.Unlock()
	if ba.closed {
		return ErrClosed
	}
	if ref.IsNil() {
		return nil
	}
	blk, err := ba.lookup(ref)
	if err != nil {
		ba.stats.FreeRejected++
		return err
	}
	delete(ba.live, blk)
	ba.stats.FreeCalls++
	ba.stats.BytesFreed += ba.blockSize(blk)
	return nil
}

func (ba *BumpAllocator) lookup(ref Ref) (Addr, error) {
	if ref.addr < headerSize {
		return Nil, fmt.Errorf("%w: %s", ErrNotAllocated, ref)
	}
	blk := ref.addr - headerSize
	if gen, ok := ba.live[blk]; !ok || gen != ref.gen {
		return Nil, fmt.Errorf("%w: %s", ErrNotAllocated, ref)
	}
	return blk, nil
}

// Bytes returns the payload of the live block named by ref.
func (ba *BumpAllocator) Bytes(ref Ref) ([]byte, error) {
	ba.mu.Lock()
	defer ba.mu.Unlock()
	if ba.closed {
		return nil, ErrClosed
	}
	blk, err := ba.lookup(ref)
	if err != nil {
		return nil, err
	}
	p, ok := ba.payload(blk)
	if !ok {
		return nil, fmt.Errorf("%w: %s has a corrupt header", ErrNotAllocated, ref)
	}
	return p, nil
}

// Configure sets the arena limit. The strategy is ignored.
func (ba *BumpAllocator) Configure(_ Strategy, limit uint64) {
	ba.mu.Lock()
	defer ba.mu.Unlock()
	ba.limit = limit
}

// Info reports the spare tails plus the unused part of the current run.
func (ba *BumpAllocator) Info() Info {
	ba.mu.Lock()
	defer ba.mu.Unlock()
	return ba.info()
}

func (ba *BumpAllocator) info() Info {
	chunks := append([]Block(nil), ba.spare...)
	if tail := uint64(ba.end - ba.cur); ba.cur != Nil && tail >= format.MinSplitRemainder {
		chunks = append(chunks, Block{Addr: ba.cur, Size: tail})
	}

	var in Info
	for _, b := range chunks {
		chunk := b.Size - headerSize
		in.FreeSize += chunk
		in.FreeChunks++
		if chunk > in.LargestFreeChunk {
			in.LargestFreeChunk = chunk
		}
		if in.FreeChunks == 1 || chunk < in.SmallestFreeChunk {
			in.SmallestFreeChunk = chunk
		}
	}
	return in
}

// Stats returns a copy of the operation counters.
func (ba *BumpAllocator) Stats() Counters {
	ba.mu.Lock()
	defer ba.mu.Unlock()
	return ba.counters()
}

func (ba *BumpAllocator) counters() Counters {
	c := ba.stats
	c.LiveBlocks = len(ba.live)
	return c
}

// ArenaSize returns the total bytes obtained from the source.
func (ba *BumpAllocator) ArenaSize() uint64 {
	ba.mu.Lock()
	defer ba.mu.Unlock()
	return ba.size
}

// PrintStats writes a human-readable report of ba to w.
func (ba *BumpAllocator) PrintStats(w io.Writer) {
	ba.mu.Lock()
	arena, segs := ba.size, len(ba.segs)
	in, c := ba.info(), ba.counters()
	ba.mu.Unlock()

	printReport(w, "bump", arena, segs, in, c)
}

// Close releases the arena and closes the source.
func (ba *BumpAllocator) Close() error {
	ba.mu.Lock()
	defer ba.mu.Unlock()
	if ba.closed {
		return nil
	}
	ba.closed = true
	ba.cur, ba.end = Nil, Nil
	ba.spare = nil
	clear(ba.live)
	return ba.release()
}
