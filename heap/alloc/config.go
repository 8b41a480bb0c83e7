package alloc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joshuapare/heapkit/heap/source"
	"github.com/joshuapare/heapkit/internal/format"
)

// Runtime debug flag for allocation logging - controlled by HEAPKIT_LOG_ALLOC env var.
var logAlloc = os.Getenv("HEAPKIT_LOG_ALLOC") != ""

// Config holds allocator settings.
type Config struct {
	// Strategy selects how a free block is chosen. Default FirstFit.
	Strategy Strategy

	// Limit is the arena ceiling in bytes; 0 means unlimited. Growth that
	// would take the arena past Limit is refused.
	Limit uint64

	// Increment is the number of bytes requested per growth step. It is
	// rounded up to a multiple of 8. 0 means format.DefaultIncrement.
	Increment int

	// Source provides arena memory. nil means a Brk source reserving
	// source.DefaultReserve bytes. The allocator closes it on Close.
	Source source.Source

	// Logger receives debug records for arena growth. nil discards them
	// unless HEAPKIT_LOG_ALLOC is set.
	Logger *slog.Logger
}

// DefaultConfig is used when New is called with a nil config.
var DefaultConfig = Config{
	Strategy:  FirstFit,
	Increment: format.DefaultIncrement,
}

// resolve validates c and fills in defaults.
func (c Config) resolve() (Config, error) {
	if !c.Strategy.Valid() {
		return c, fmt.Errorf("%w: strategy %d", ErrInvalidConfig, c.Strategy)
	}
	if c.Increment < 0 {
		return c, fmt.Errorf("%w: increment %d", ErrInvalidConfig, c.Increment)
	}
	if c.Increment == 0 {
		c.Increment = format.DefaultIncrement
	}
	c.Increment = format.Align8(c.Increment)
	if c.Increment < format.MinSplitRemainder {
		return c, fmt.Errorf("%w: increment %d smaller than one block", ErrInvalidConfig, c.Increment)
	}

	if c.Logger == nil {
		c.Logger = defaultLogger()
	}
	if c.Source == nil {
		brk, err := source.NewBrk(source.DefaultReserve)
		if err != nil {
			return c, err
		}
		c.Source = brk
	}
	return c, nil
}

func defaultLogger() *slog.Logger {
	if logAlloc {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func debugEnabled(l *slog.Logger) bool {
	return l.Enabled(context.Background(), slog.LevelDebug)
}

// hexAddr formats an address as hex only when a handler asks for the value.
type hexAddr Addr

func (a hexAddr) LogValue() slog.Value {
	return slog.StringValue(fmt.Sprintf("0x%x", uint64(a)))
}
