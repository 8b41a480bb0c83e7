package alloc

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
)

// ListAllocator serves requests from an intrusive, address-ordered free
// list overlaid on the arena bytes. Placement follows the configured
// Strategy; freed blocks are merged with adjacent free neighbours; the arena
// grows one increment at a time up to the configured limit.
//
// All methods are safe for concurrent use.
type ListAllocator struct {
	mu     sync.Mutex
	h      heapState
	closed bool
}

// heapState is the single-threaded core shared by every ListAllocator
// method. Callers hold ListAllocator.mu.
type heapState struct {
	arena

	strategy Strategy
	limit    uint64

	head Addr // lowest-addressed free block

	// live maps the header address of every allocated block to the
	// generation it was handed out under.
	live map[Addr]uint64

	stats Counters
	log   *slog.Logger
	trace bool
}

// New creates a ListAllocator. The arena is not touched until the first Alloc.
//
// Parameters:
//   - cfg: allocator settings (use nil for DefaultConfig)
func New(cfg *Config) (*ListAllocator, error) {
	if cfg == nil {
		cfg = &DefaultConfig
	}
	c, err := cfg.resolve()
	if err != nil {
		return nil, err
	}

	la := &ListAllocator{
		h: heapState{
			arena: arena{
				src:       c.Source,
				increment: c.Increment,
			},
			strategy: c.Strategy,
			limit:    c.Limit,
			live:     make(map[Addr]uint64),
			log:      c.Logger,
			trace:    debugEnabled(c.Logger),
		},
	}
	return la, nil
}

// Alloc returns a handle to a block with at least align8(size) usable bytes.
//
// Errors:
//   - ErrInvalidSize: size <= 0; nothing is changed
//   - ErrLimit: growth would take the arena past the configured limit
//   - ErrGrowFail: the source failed
//   - ErrNoSpace: growth could not produce a large enough contiguous block
func (la *ListAllocator) Alloc(size int) (Ref, error) {
	la.mu.Lock()
	defer la.mu.Unlock()
	if la.closed {
		return Ref{}, ErrClosed
	}
	return la.h.alloc(size)
}

// Free returns the block named by ref to the free list. Freeing the nil
// handle is a no-op. A handle that does not name a live block of this
// allocator (double free, stale or foreign handle) is rejected with
// ErrNotAllocated and nothing is changed.
func (la *ListAllocator) Free(ref Ref) error {
	la.mu.Lock()
	defer la.mu.Unlock()
	if la.closed {
		return ErrClosed
	}
	return la.h.free(ref)
}

// Bytes returns the payload of the live block named by ref. The slice's
// capacity ends at the block boundary.
func (la *ListAllocator) Bytes(ref Ref) ([]byte, error) {
	la.mu.Lock()
	defer la.mu.Unlock()
	if la.closed {
		return nil, ErrClosed
	}
	blk, err := la.h.lookup(ref)
	if err != nil {
		return nil, err
	}
	p, ok := la.h.payload(blk)
	if !ok {
		return nil, fmt.Errorf("%w: %s has a corrupt header", ErrNotAllocated, ref)
	}
	return p, nil
}

// Lookup converts an external payload address back into its handle.
func (la *ListAllocator) Lookup(p Addr) (Ref, bool) {
	la.mu.Lock()
	defer la.mu.Unlock()
	if p < headerSize {
		return Ref{}, false
	}
	gen, ok := la.h.live[p-headerSize]
	if !ok {
		return Ref{}, false
	}
	return Ref{addr: p, gen: gen}, true
}

// Configure selects the placement strategy and the arena limit (0 =
// unlimited). An unknown strategy falls back to FirstFit. A limit below the
// current arena size only stops further growth.
func (la *ListAllocator) Configure(strategy Strategy, limit uint64) {
	la.mu.Lock()
	defer la.mu.Unlock()
	if !strategy.Valid() {
		strategy = FirstFit
	}
	la.h.strategy = strategy
	la.h.limit = limit
}

// Strategy returns the current placement strategy.
func (la *ListAllocator) Strategy() Strategy {
	la.mu.Lock()
	defer la.mu.Unlock()
	return la.h.strategy
}

// Limit returns the current arena limit.
func (la *ListAllocator) Limit() uint64 {
	la.mu.Lock()
	defer la.mu.Unlock()
	return la.h.limit
}

// Info scans the free list. It is a pure read: a zero Info is returned when
// the arena was never initialized or is fully allocated.
func (la *ListAllocator) Info() Info {
	la.mu.Lock()
	defer la.mu.Unlock()
	return la.h.info()
}

// Stats returns a copy of the operation counters.
func (la *ListAllocator) Stats() Counters {
	la.mu.Lock()
	defer la.mu.Unlock()
	return la.h.counters()
}

// ArenaSize returns the total bytes obtained from the source.
func (la *ListAllocator) ArenaSize() uint64 {
	la.mu.Lock()
	defer la.mu.Unlock()
	return la.h.size
}

// Segments returns the arena's contiguous runs in address order.
func (la *ListAllocator) Segments() []Segment {
	la.mu.Lock()
	defer la.mu.Unlock()
	return la.h.segments()
}

// FreeBlocks returns the free list in list order.
func (la *ListAllocator) FreeBlocks() []Block {
	la.mu.Lock()
	defer la.mu.Unlock()
	var out []Block
	la.h.walkFree(func(b Block) bool {
		out = append(out, b)
		return true
	})
	return out
}

// LiveBlocks returns every allocated block in address order.
func (la *ListAllocator) LiveBlocks() []Block {
	la.mu.Lock()
	defer la.mu.Unlock()
	out := make([]Block, 0, len(la.h.live))
	for blk := range la.h.live {
		out = append(out, Block{Addr: blk, Size: la.h.blockSize(blk)})
	}
	slices.SortFunc(out, func(a, b Block) int { return cmp.Compare(a.Addr, b.Addr) })
	return out
}

// Close releases the arena and closes the source. Every handle becomes
// invalid. Calling Close twice is a no-op.
func (la *ListAllocator) Close() error {
	la.mu.Lock()
	defer la.mu.Unlock()
	if la.closed {
		return nil
	}
	la.closed = true
	la.h.head = Nil
	clear(la.h.live)
	return la.h.release()
}

// blockSizeFor returns the total block size serving a request of size bytes.
func blockSizeFor(size int) (uint64, error) {
	if size <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if _, ok := buf.AddOverflowSafe(size, format.AlignmentMask+headerSize); !ok {
		return 0, fmt.Errorf("%w: %d overflows", ErrInvalidSize, size)
	}
	return uint64(format.Align8(size)) + headerSize, nil
}

func (h *heapState) alloc(size int) (Ref, error) {
	h.stats.AllocCalls++

	need, err := blockSizeFor(size)
	if err != nil {
		h.stats.AllocFailures++
		return Ref{}, err
	}
	if h.trace {
		h.log.Debug("alloc", "size", size, "aligned", need-headerSize)
	}

	if h.size == 0 {
		if err := h.ensureInitial(need); err != nil {
			h.stats.AllocFailures++
			return Ref{}, err
		}
	}

	if prev, blk := h.fit(need); blk != Nil {
		h.take(prev, blk, need)
		return h.hand(blk), nil
	}

	if err := h.grow(need); err != nil {
		h.stats.AllocFailures++
		return Ref{}, err
	}

	// One retry after growth.
	if prev, blk := h.fit(need); blk != Nil {
		h.take(prev, blk, need)
		return h.hand(blk), nil
	}
	h.stats.AllocFailures++
	return Ref{}, fmt.Errorf("%w: need %d bytes after growth", ErrNoSpace, need)
}

// ensureInitial obtains the first increment and seeds the free list with it.
// The limit is checked against every increment need will take, so a request
// the ceiling cannot serve leaves the arena untouched.
func (h *heapState) ensureInitial(need uint64) error {
	if h.limit != 0 {
		inc := uint64(h.increment)
		total, ok := buf.MulOverflowSafe(max(1, (need+inc-1)/inc), inc)
		if !ok || total > h.limit {
			h.stats.GrowRefused++
			return fmt.Errorf("%w: initial arena %d > limit %d", ErrLimit, total, h.limit)
		}
	}
	blk, err := h.obtain()
	if err != nil {
		h.stats.GrowFailures++
		return err
	}
	h.setHeader(blk.Addr, blk.Size, Nil)
	h.head = blk.Addr
	h.stats.GrowCalls++
	h.stats.GrowBytes += blk.Size

	if h.trace {
		h.log.Debug("arena init", "base", hexAddr(blk.Addr), "size", blk.Size)
	}
	return nil
}

// grow adds as many increments as need requires, counting a free block at
// the arena top that the new memory will extend. The whole run is checked
// against the limit before the source is called, so a refused growth never
// leaves part of itself behind.
func (h *heapState) grow(need uint64) error {
	steps := h.incrementsFor(need)

	if h.limit != 0 {
		add, ok := buf.MulOverflowSafe(steps, uint64(h.increment))
		total, ok2 := buf.AddU64(h.size, add)
		if !ok || !ok2 || total > h.limit {
			h.stats.GrowRefused++
			if h.trace {
				h.log.Debug("arena grow refused",
					"arena", h.size, "increments", steps, "increment", h.increment, "limit", h.limit)
			}
			return fmt.Errorf("%w: arena %d + %d x %d > %d", ErrLimit, h.size, steps, h.increment, h.limit)
		}
	}

	// A block spanning several increments needs them to land back to back
	// in one segment.
	if steps > 1 && !h.extendsTop(steps) {
		h.stats.GrowRefused++
		return fmt.Errorf("%w: need %d bytes, more than one increment of non-contiguous memory", ErrNoSpace, need)
	}

	for range steps {
		blk, err := h.obtain()
		if err != nil {
			h.stats.GrowFailures++
			return err
		}
		h.insert(blk.Addr, blk.Size)
		h.stats.GrowCalls++
		h.stats.GrowBytes += blk.Size

		if h.trace {
			h.log.Debug("arena grow", "base", hexAddr(blk.Addr), "size", blk.Size, "arena", h.size)
		}
	}
	return nil
}

func (h *heapState) incrementsFor(need uint64) uint64 {
	var credit uint64
	if h.extendsTop(1) {
		if b, ok := h.topFree(); ok {
			credit = b.Size
		}
	}
	if need <= credit {
		return 1
	}
	inc := uint64(h.increment)
	return (need - credit + inc - 1) / inc
}

// hand records blk as live and returns its handle.
func (h *heapState) hand(blk Addr) Ref {
	gen := nextGen()
	h.live[blk] = gen
	h.stats.BytesAllocated += h.blockSize(blk)
	return Ref{addr: blk + headerSize, gen: gen}
}

// lookup returns the header address of the live block named by ref.
func (h *heapState) lookup(ref Ref) (Addr, error) {
	if ref.addr < headerSize {
		return Nil, fmt.Errorf("%w: %s", ErrNotAllocated, ref)
	}
	blk := ref.addr - headerSize
	if gen, ok := h.live[blk]; !ok || gen != ref.gen {
		return Nil, fmt.Errorf("%w: %s", ErrNotAllocated, ref)
	}
	return blk, nil
}

func (h *heapState) free(ref Ref) error {
	if ref.IsNil() {
		return nil
	}
	blk, err := h.lookup(ref)
	if err != nil {
		h.stats.FreeRejected++
		return err
	}
	h.stats.FreeCalls++
	delete(h.live, blk)

	size := h.blockSize(blk)
	h.stats.BytesFreed += size
	h.insert(blk, size)
	return nil
}

func (h *heapState) counters() Counters {
	c := h.stats
	c.LiveBlocks = len(h.live)
	return c
}

func (h *heapState) info() Info {
	var in Info
	h.walkFree(func(b Block) bool {
		chunk := b.Size - headerSize
		in.FreeSize += chunk
		in.FreeChunks++
		if chunk > in.LargestFreeChunk {
			in.LargestFreeChunk = chunk
		}
		if in.FreeChunks == 1 || chunk < in.SmallestFreeChunk {
			in.SmallestFreeChunk = chunk
		}
		return true
	})
	return in
}
