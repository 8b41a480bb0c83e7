package workload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/heapkit/heap/alloc"
)

// ErrUnknownName indicates a free of a name that holds no live block.
var ErrUnknownName = errors.New("workload: name not allocated")

// Runner executes scripts against an allocator.
type Runner struct {
	A alloc.Allocator

	// Verify is called for every verify command. nil makes verify a no-op.
	Verify func() error

	// Out receives the output of stats commands. nil discards it.
	Out io.Writer

	// Log receives one debug record per command. nil discards them.
	Log *slog.Logger
}

// Result summarizes a run.
type Result struct {
	Ops           int        `json:"ops"`
	Allocs        int        `json:"allocs"`
	AllocFailures int        `json:"alloc_failures"`
	Frees         int        `json:"frees"`
	LiveBytes     uint64     `json:"live_bytes"`      // requested bytes still live at the end
	PeakLiveBytes uint64     `json:"peak_live_bytes"` // maximum of LiveBytes over the run
	ArenaSize     uint64     `json:"arena_size"`
	Final         alloc.Info `json:"final"`
}

// Utilization returns peak live bytes over arena size.
func (r Result) Utilization() float64 {
	if r.ArenaSize == 0 {
		return 0
	}
	return float64(r.PeakLiveBytes) / float64(r.ArenaSize)
}

type binding struct {
	ref  alloc.Ref
	size int
}

// Run executes script in order. Allocation failures (exhaustion, invalid
// sizes) are counted and the run continues; the name is bound to the nil
// handle, so a later free of it is a no-op. A free of a name that was never
// allocated, an allocator error on free, or a failed verify stops the run
// with an error naming the script line.
func (r *Runner) Run(ctx context.Context, script Script) (Result, error) {
	log := r.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	var res Result
	names := make(map[string]binding)

	for _, cmd := range script {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Ops++
		log.Debug("workload", "line", cmd.Line, "cmd", cmd.String())

		switch cmd.Op {
		case OpAlloc:
			if old, ok := names[cmd.Name]; ok {
				// Rebinding a live name releases the previous block first.
				if err := r.release(old); err != nil {
					return res, lineErr(cmd, err)
				}
				if !old.ref.IsNil() {
					res.Frees++
				}
				res.LiveBytes -= uint64(old.size)
				delete(names, cmd.Name)
			}
			res.Allocs++
			ref, err := r.A.Alloc(cmd.Size)
			if err != nil {
				res.AllocFailures++
				names[cmd.Name] = binding{}
				log.Debug("alloc failed", "line", cmd.Line, "name", cmd.Name, "size", cmd.Size, "error", err)
				continue
			}
			names[cmd.Name] = binding{ref: ref, size: cmd.Size}
			res.LiveBytes += uint64(cmd.Size)
			res.PeakLiveBytes = max(res.PeakLiveBytes, res.LiveBytes)

		case OpFree:
			b, ok := names[cmd.Name]
			if !ok {
				return res, lineErr(cmd, fmt.Errorf("%w: %q", ErrUnknownName, cmd.Name))
			}
			if err := r.release(b); err != nil {
				return res, lineErr(cmd, err)
			}
			delete(names, cmd.Name)
			if !b.ref.IsNil() {
				res.Frees++
			}
			res.LiveBytes -= uint64(b.size)

		case OpConfig:
			r.A.Configure(cmd.Strategy, cmd.Limit)

		case OpStats:
			if r.Out != nil {
				printInfo(r.Out, cmd, r.A.Info(), r.A.ArenaSize())
			}

		case OpVerify:
			if r.Verify != nil {
				if err := r.Verify(); err != nil {
					return res, lineErr(cmd, err)
				}
			}

		default:
			return res, lineErr(cmd, fmt.Errorf("unknown op %s", cmd.Op))
		}
	}

	res.ArenaSize = r.A.ArenaSize()
	res.Final = r.A.Info()
	return res, nil
}

func (r *Runner) release(b binding) error {
	if b.ref.IsNil() {
		return nil
	}
	return r.A.Free(b.ref)
}

func lineErr(cmd Command, err error) error {
	if cmd.Line == 0 {
		return fmt.Errorf("workload: %s: %w", cmd, err)
	}
	return fmt.Errorf("workload: line %d: %s: %w", cmd.Line, cmd, err)
}

func printInfo(w io.Writer, cmd Command, in alloc.Info, arena uint64) {
	p := message.NewPrinter(language.English)
	p.Fprintf(w, "[line %d] arena=%d free=%d chunks=%d largest=%d smallest=%d\n",
		cmd.Line, arena, in.FreeSize, in.FreeChunks, in.LargestFreeChunk, in.SmallestFreeChunk)
}
