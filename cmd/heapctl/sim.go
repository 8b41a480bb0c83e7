package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/verify"
	"github.com/joshuapare/heapkit/heap/workload"
)

var (
	simSeed     int64
	simOps      int
	simMaxSize  int
	simFreeP    float64
	simVerifyN  int
	simEmit     string
	simWithBump bool
)

func init() {
	cmd := newSimCmd()
	cmd.Flags().Int64Var(&simSeed, "seed", workload.DefaultRandomConfig.Seed, "Random seed")
	cmd.Flags().IntVar(&simOps, "ops", workload.DefaultRandomConfig.Ops, "Number of alloc/free operations")
	cmd.Flags().IntVar(&simMaxSize, "max-size", workload.DefaultRandomConfig.MaxSize, "Largest allocation size")
	cmd.Flags().Float64Var(&simFreeP, "free-p", workload.DefaultRandomConfig.FreeP, "Probability that an operation frees a live block")
	cmd.Flags().IntVar(&simVerifyN, "verify-every", 0, "Check arena invariants every N operations (0 = never)")
	cmd.Flags().StringVar(&simEmit, "emit", "", "Write the generated script to a file (- for stdout) instead of running it")
	cmd.Flags().BoolVar(&simWithBump, "bump", true, "Include the append-only baseline in the comparison")
	rootCmd.AddCommand(cmd)
}

func newSimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Compare placement strategies on a random workload",
		Long: `The sim command generates a seeded random workload and runs it against
a fresh allocator for every placement strategy (and the bump baseline),
then compares arena growth, utilization and fragmentation.

Example:
  heapctl sim
  heapctl sim --ops 10000 --max-size 4096 --limit 4M
  heapctl sim --source scattered --increment 8K --json
  heapctl sim --seed 7 --emit workload.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSim(cmd.Context())
		},
	}
	return cmd
}

// simRow is one allocator's outcome in a comparison.
type simRow struct {
	Allocator string          `json:"allocator"`
	Result    workload.Result `json:"result"`
	Stats     alloc.Counters  `json:"stats"`
}

func runSim(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if simOps < 0 || simMaxSize <= 0 || simFreeP < 0 || simFreeP > 1 {
		return fmt.Errorf("invalid workload parameters: ops=%d max-size=%d free-p=%g", simOps, simMaxSize, simFreeP)
	}
	opts, err := parseAllocOptions()
	if err != nil {
		return err
	}

	script := workload.Random(workload.RandomConfig{
		Seed:    simSeed,
		Ops:     simOps,
		MaxSize: simMaxSize,
		FreeP:   simFreeP,
		Verify:  simVerifyN,
	})

	if simEmit != "" {
		return emitScript(simEmit, script)
	}
	printVerbose("Generated %d commands (seed %d)\n", len(script), simSeed)

	var rows []simRow
	for _, s := range alloc.Strategies {
		row, err := simList(ctx, opts, s, script)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	if simWithBump {
		row, err := simBump(ctx, opts, script)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	if jsonOut {
		return printJSON(rows)
	}
	printComparison(rows)
	return nil
}

func simList(ctx context.Context, opts allocOptions, s alloc.Strategy, script workload.Script) (simRow, error) {
	cfg, err := opts.config(s)
	if err != nil {
		return simRow{}, err
	}
	la, err := alloc.New(cfg)
	if err != nil {
		_ = cfg.Source.Close()
		return simRow{}, err
	}
	defer la.Close()

	r := &workload.Runner{A: la, Verify: func() error { return verify.AllInvariants(la) }, Log: cfg.Logger}
	res, err := r.Run(ctx, script)
	if err != nil {
		return simRow{}, fmt.Errorf("%s: %w", s, err)
	}
	return simRow{Allocator: "list/" + s.String(), Result: res, Stats: la.Stats()}, nil
}

func simBump(ctx context.Context, opts allocOptions, script workload.Script) (simRow, error) {
	cfg, err := opts.config(alloc.FirstFit)
	if err != nil {
		return simRow{}, err
	}
	ba, err := alloc.NewBump(cfg)
	if err != nil {
		_ = cfg.Source.Close()
		return simRow{}, err
	}
	defer ba.Close()

	r := &workload.Runner{A: ba, Log: cfg.Logger}
	res, err := r.Run(ctx, script)
	if err != nil {
		return simRow{}, fmt.Errorf("bump: %w", err)
	}
	return simRow{Allocator: "bump", Result: res, Stats: ba.Stats()}, nil
}

func emitScript(path string, script workload.Script) error {
	if path == "-" {
		_, err := script.WriteTo(stdout)
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := script.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	printInfo("Wrote %d commands to %s\n", len(script), path)
	return nil
}

func printComparison(rows []simRow) {
	printInfo("\n%-16s %14s %12s %8s %8s %10s %8s %8s\n",
		"ALLOCATOR", "ARENA", "PEAK LIVE", "UTIL", "CHUNKS", "LARGEST", "FRAG", "FAILED")
	for _, row := range rows {
		res := row.Result
		printInfo("%-16s %14s %12s %8s %8s %10s %8s %8s\n",
			row.Allocator,
			formatNumber(res.ArenaSize),
			formatNumber(res.PeakLiveBytes),
			formatPercent(res.Utilization()),
			formatNumber(res.Final.FreeChunks),
			formatNumber(res.Final.LargestFreeChunk),
			formatPercent(res.Final.Fragmentation()),
			formatNumber(res.AllocFailures))
	}
}
