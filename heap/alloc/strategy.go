package alloc

import (
	"fmt"
	"strings"
)

// Strategy is the policy for choosing among free blocks that satisfy a request.
type Strategy uint8

const (
	// FirstFit takes the lowest-addressed block that is large enough. It
	// stops at the first match, so its cost is the position of that block.
	FirstFit Strategy = iota

	// BestFit scans the whole list and takes the smallest block that is
	// large enough, leaving the smallest remainder. Ties keep the
	// lowest-addressed candidate.
	BestFit

	// WorstFit scans the whole list and takes the largest block that is
	// large enough, leaving large reusable remainders. A block qualifies
	// when size >= need (the same test as the other strategies); ties keep
	// the lowest-addressed candidate.
	WorstFit
)

// Strategies lists every supported strategy in declaration order.
var Strategies = []Strategy{FirstFit, BestFit, WorstFit}

// Valid reports whether s names a supported strategy.
func (s Strategy) Valid() bool {
	return s <= WorstFit
}

func (s Strategy) String() string {
	switch s {
	case FirstFit:
		return "first-fit"
	case BestFit:
		return "best-fit"
	case WorstFit:
		return "worst-fit"
	default:
		return fmt.Sprintf("Strategy(%d)", uint8(s))
	}
}

// ParseStrategy accepts "first", "first-fit", "firstfit" (and the same for
// best and worst), case-insensitively.
func ParseStrategy(s string) (Strategy, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimSuffix(strings.TrimSuffix(name, "fit"), "-")
	name = strings.TrimSuffix(name, "_")
	switch name {
	case "first":
		return FirstFit, nil
	case "best":
		return BestFit, nil
	case "worst":
		return WorstFit, nil
	}
	return FirstFit, fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: strategy %d", ErrInvalidConfig, s)
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(b []byte) error {
	v, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// fit walks the free list and returns the chosen block together with its
// predecessor (Nil when the block is the list head). blk is Nil when no
// block has at least need bytes.
func (h *heapState) fit(need uint64) (prev, blk Addr) {
	switch h.strategy {
	case BestFit:
		return h.bestFit(need)
	case WorstFit:
		return h.worstFit(need)
	default:
		return h.firstFit(need)
	}
}

func (h *heapState) firstFit(need uint64) (Addr, Addr) {
	var prev Addr
	for cur := h.head; cur != Nil; prev, cur = cur, h.next(cur) {
		if h.blockSize(cur) >= need {
			return prev, cur
		}
	}
	return Nil, Nil
}

func (h *heapState) bestFit(need uint64) (Addr, Addr) {
	var prev, best, bestPrev Addr
	var bestSize uint64
	for cur := h.head; cur != Nil; prev, cur = cur, h.next(cur) {
		size := h.blockSize(cur)
		if size >= need && (best == Nil || size < bestSize) {
			best, bestPrev, bestSize = cur, prev, size
			if size == need {
				// Nothing can beat an exact fit.
				break
			}
		}
	}
	return bestPrev, best
}

func (h *heapState) worstFit(need uint64) (Addr, Addr) {
	var prev, worst, worstPrev Addr
	var worstSize uint64
	for cur := h.head; cur != Nil; prev, cur = cur, h.next(cur) {
		size := h.blockSize(cur)
		if size >= need && (worst == Nil || size > worstSize) {
			worst, worstPrev, worstSize = cur, prev, size
		}
	}
	return worstPrev, worst
}
