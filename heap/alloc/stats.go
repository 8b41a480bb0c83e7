package alloc

import (
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Counters holds allocator statistics for tests and instrumentation.
type Counters struct {
	AllocCalls       int    `json:"alloc_calls"`       // Total Alloc() calls
	AllocFailures    int    `json:"alloc_failures"`    // Alloc() calls that returned an error
	FreeCalls        int    `json:"free_calls"`        // Successful non-nil Free() calls
	FreeRejected     int    `json:"free_rejected"`     // Free() calls refused with ErrNotAllocated
	GrowCalls        int    `json:"grow_calls"`        // Increments obtained from the source
	GrowBytes        uint64 `json:"grow_bytes"`        // Total bytes added by growth
	GrowRefused      int    `json:"grow_refused"`      // Growth refused by the arena limit
	GrowFailures     int    `json:"grow_failures"`     // Source failures
	SplitCount       int    `json:"split_count"`       // Blocks split on allocation
	CoalesceForward  int    `json:"coalesce_forward"`  // Merges with the following block
	CoalesceBackward int    `json:"coalesce_backward"` // Merges with the preceding block
	BytesAllocated   uint64 `json:"bytes_allocated"`   // Block bytes handed out (headers included)
	BytesFreed       uint64 `json:"bytes_freed"`       // Block bytes returned
	LiveBlocks       int    `json:"live_blocks"`       // Blocks currently allocated
}

// Fragmentation returns 1 - largest/total free payload, or 0 when nothing is free.
// A single free chunk scores 0; many small chunks approach 1.
func (in Info) Fragmentation() float64 {
	if in.FreeSize == 0 {
		return 0
	}
	return 1 - float64(in.LargestFreeChunk)/float64(in.FreeSize)
}

// PrintStats writes a human-readable report of la to w.
func (la *ListAllocator) PrintStats(w io.Writer) {
	la.mu.Lock()
	name := la.h.strategy.String()
	arena := la.h.size
	segs := len(la.h.segs)
	in, c := la.h.info(), la.h.counters()
	la.mu.Unlock()

	printReport(w, "list/"+name, arena, segs, in, c)
}

func printReport(w io.Writer, name string, arena uint64, segs int, in Info, s Counters) {
	p := message.NewPrinter(language.English)

	p.Fprintf(w, "=== ALLOCATOR STATISTICS (%s) ===\n", name)
	p.Fprintf(w, "Arena size:         %d bytes in %d segment(s)\n", arena, segs)
	p.Fprintf(w, "Grow calls:         %d (%d bytes, refused: %d, failed: %d)\n",
		s.GrowCalls, s.GrowBytes, s.GrowRefused, s.GrowFailures)
	p.Fprintf(w, "Alloc calls:        %d (failed: %d)\n", s.AllocCalls, s.AllocFailures)
	p.Fprintf(w, "Free calls:         %d (rejected: %d)\n", s.FreeCalls, s.FreeRejected)
	p.Fprintf(w, "Live blocks:        %d\n", s.LiveBlocks)
	p.Fprintf(w, "Bytes allocated:    %d\n", s.BytesAllocated)
	p.Fprintf(w, "Bytes freed:        %d\n", s.BytesFreed)
	p.Fprintf(w, "Block splits:       %d\n", s.SplitCount)
	p.Fprintf(w, "Coalesce fwd:       %d\n", s.CoalesceForward)
	p.Fprintf(w, "Coalesce back:      %d\n", s.CoalesceBackward)

	p.Fprintf(w, "\nFree space:\n")
	p.Fprintf(w, "  Free bytes:       %d\n", in.FreeSize)
	p.Fprintf(w, "  Free chunks:      %d\n", in.FreeChunks)
	p.Fprintf(w, "  Largest chunk:    %d\n", in.LargestFreeChunk)
	p.Fprintf(w, "  Smallest chunk:   %d\n", in.SmallestFreeChunk)
	p.Fprintf(w, "  Fragmentation:    %.1f%%\n", 100*in.Fragmentation())
	p.Fprintf(w, "============================\n")
}
