package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/source"
	"github.com/joshuapare/heapkit/heap/workload"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool

	// Allocator flags
	strategyName string
	limitFlag    string
	incrementStr string
	sourceName   string
	reserveStr   string
)

var rootCmd = &cobra.Command{
	Use:   "heapctl",
	Short: "Run and compare heapkit allocator workloads",
	Long: `heapctl drives the heapkit free-list allocator with scripted or
randomly generated workloads, checks arena invariants as it goes, and compares
placement strategies on fragmentation and arena growth.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output and allocator debug logs")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")

	// Allocator flags
	rootCmd.PersistentFlags().StringVarP(&strategyName, "strategy", "s", "first", "Placement strategy: first, best or worst")
	rootCmd.PersistentFlags().StringVar(&limitFlag, "limit", "0", "Arena limit in bytes, with optional K/M/G suffix (0 = unlimited)")
	rootCmd.PersistentFlags().StringVar(&incrementStr, "increment", "64K", "Bytes obtained per arena growth step")
	rootCmd.PersistentFlags().StringVar(&sourceName, "source", "brk", "Growth primitive: brk (contiguous) or scattered")
	rootCmd.PersistentFlags().StringVar(&reserveStr, "reserve", "256M", "Address range reserved by the brk source")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

// allocOptions is the resolved form of the allocator flags.
type allocOptions struct {
	Strategy  alloc.Strategy `json:"strategy"`
	Limit     uint64         `json:"limit"`
	Increment int            `json:"increment"`
	Source    string         `json:"source"`
	Reserve   int            `json:"reserve"`
}

func parseAllocOptions() (allocOptions, error) {
	var opts allocOptions

	s, err := alloc.ParseStrategy(strategyName)
	if err != nil {
		return opts, err
	}
	opts.Strategy = s

	if opts.Limit, err = workload.ParseSize(limitFlag); err != nil {
		return opts, fmt.Errorf("invalid --limit %q: %w", limitFlag, err)
	}

	inc, err := workload.ParseSize(incrementStr)
	if err != nil || inc == 0 || inc > 1<<30 {
		return opts, fmt.Errorf("invalid --increment %q", incrementStr)
	}
	opts.Increment = int(inc)

	reserve, err := workload.ParseSize(reserveStr)
	if err != nil || reserve == 0 || reserve > 1<<40 {
		return opts, fmt.Errorf("invalid --reserve %q", reserveStr)
	}
	opts.Reserve = int(reserve)

	switch sourceName {
	case "brk", "scattered":
		opts.Source = sourceName
	default:
		return opts, fmt.Errorf("invalid --source %q (want brk or scattered)", sourceName)
	}
	return opts, nil
}

// newSource builds a fresh growth primitive for one allocator.
func (o allocOptions) newSource() (source.Source, error) {
	if o.Source == "scattered" {
		return source.NewScattered(o.Reserve), nil
	}
	return source.NewBrk(o.Reserve)
}

func (o allocOptions) config(strategy alloc.Strategy) (*alloc.Config, error) {
	src, err := o.newSource()
	if err != nil {
		return nil, err
	}
	return &alloc.Config{
		Strategy:  strategy,
		Limit:     o.Limit,
		Increment: o.Increment,
		Source:    src,
		Logger:    newLogger(),
	}, nil
}

// newLogger returns a debug text logger on stderr in verbose mode and a
// discarding logger otherwise.
func newLogger() *slog.Logger {
	if verbose && !quiet {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.DiscardHandler)
}

// Helper functions for output

// stdout is where command output goes; tests swap it.
var stdout io.Writer = os.Stdout

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
