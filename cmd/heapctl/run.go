package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/verify"
	"github.com/joshuapare/heapkit/heap/workload"
)

var (
	runBump      bool
	runShowStats bool
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().BoolVar(&runBump, "bump", false, "Run against the append-only baseline instead of the free-list allocator")
	cmd.Flags().BoolVar(&runShowStats, "stats", false, "Print the allocator statistics report after the run")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Run a workload script",
		Long: `The run command executes a workload script against a fresh allocator.
Use "-" to read the script from stdin.

Script commands, one per line:
  alloc NAME SIZE        allocate and bind to NAME
  free NAME              release NAME
  config STRATEGY LIMIT  switch strategy and arena limit
  stats                  print free-space statistics
  verify                 check arena invariants

Example:
  heapctl run workload.txt
  heapctl run workload.txt --strategy best --limit 1M --stats
  heapctl sim --emit - | heapctl run -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), args)
		},
	}
	return cmd
}

type runOutput struct {
	Script    string          `json:"script"`
	Allocator string          `json:"allocator"`
	Options   allocOptions    `json:"options"`
	Result    workload.Result `json:"result"`
	Stats     alloc.Counters  `json:"stats"`
}

func runRun(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	opts, err := parseAllocOptions()
	if err != nil {
		return err
	}

	script, err := readScript(args[0])
	if err != nil {
		return err
	}
	printVerbose("Parsed %d commands from %s\n", len(script), args[0])

	cfg, err := opts.config(opts.Strategy)
	if err != nil {
		return err
	}

	var (
		a     alloc.Allocator
		name  string
		check func() error
	)
	if runBump {
		ba, err := alloc.NewBump(cfg)
		if err != nil {
			_ = cfg.Source.Close()
			return err
		}
		a, name = ba, "bump"
	} else {
		la, err := alloc.New(cfg)
		if err != nil {
			_ = cfg.Source.Close()
			return err
		}
		a, name = la, "list/"+opts.Strategy.String()
		check = func() error { return verify.AllInvariants(la) }
	}
	defer a.Close()

	r := &workload.Runner{A: a, Verify: check, Log: cfg.Logger}
	if !jsonOut && !quiet {
		r.Out = stdout
	}

	res, err := r.Run(ctx, script)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(runOutput{
			Script:    args[0],
			Allocator: name,
			Options:   opts,
			Result:    res,
			Stats:     a.Stats(),
		})
	}

	printResult(name, res)
	if runShowStats {
		if p, ok := a.(interface{ PrintStats(io.Writer) }); ok && !quiet {
			printInfo("\n")
			p.PrintStats(stdout)
		}
	}
	return nil
}

func readScript(path string) (workload.Script, error) {
	if path == "-" {
		return workload.Parse(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()
	return workload.Parse(f)
}

func printResult(name string, res workload.Result) {
	printInfo("\nWorkload Result (%s)\n", name)
	printInfo("  Commands:        %s\n", formatNumber(res.Ops))
	printInfo("  Allocations:     %s (failed: %s)\n", formatNumber(res.Allocs), formatNumber(res.AllocFailures))
	printInfo("  Frees:           %s\n", formatNumber(res.Frees))
	printInfo("  Peak live:       %s\n", formatBytes(res.PeakLiveBytes))
	printInfo("  Arena:           %s (%s bytes)\n", formatBytes(res.ArenaSize), formatNumber(res.ArenaSize))
	printInfo("  Utilization:     %s\n", formatPercent(res.Utilization()))
	printInfo("  Free chunks:     %s (largest %s, smallest %s)\n",
		formatNumber(res.Final.FreeChunks),
		formatNumber(res.Final.LargestFreeChunk),
		formatNumber(res.Final.SmallestFreeChunk))
	printInfo("  Fragmentation:   %s\n", formatPercent(res.Final.Fragmentation()))
}
