package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"linesearch/internal/bench"
)

var (
	benchPlanFile string
	benchSizes    []int
	benchAlgs     []string
	benchOut      string
	benchFormat   string
	benchDB       string
	benchPresent  bool
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark the matching algorithms",
	Long: `Generate datasets of increasing size and time every matching algorithm
against them, with and without rereading the file.

Examples:
  linesearch bench
  linesearch bench --sizes 10000,100000 --algorithms linear,kmp
  linesearch bench --plan plan.toml --format json --out results.json
  linesearch bench --db results.db`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().StringVar(&benchPlanFile, "plan", "", "TOML benchmark plan")
	benchCmd.Flags().IntSliceVar(&benchSizes, "sizes", nil, "Dataset sizes in lines (overrides plan)")
	benchCmd.Flags().StringSliceVar(&benchAlgs, "algorithms", nil, "Algorithms to run (overrides plan)")
	benchCmd.Flags().StringVar(&benchOut, "out", "benchmark_results.txt", "Results file, - for stdout")
	benchCmd.Flags().StringVar(&benchFormat, "format", "table", "Output format (table, json, yaml)")
	benchCmd.Flags().StringVar(&benchDB, "db", "", "Also record the run in this SQLite database")
	benchCmd.Flags().BoolVar(&benchPresent, "present", false, "Query a line known to be in the dataset")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	plan := bench.DefaultPlan()
	if benchPlanFile != "" {
		var err error
		if plan, err = bench.LoadPlan(benchPlanFile); err != nil {
			return err
		}
	}
	if len(benchSizes) > 0 {
		plan.Sizes = benchSizes
	}
	if len(benchAlgs) > 0 {
		plan.Algorithms = benchAlgs
	}
	if benchPresent {
		plan.QueryMode = bench.QueryPresent
	}

	write, err := resultWriter(benchFormat)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closer, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer.Close()

	trials, err := bench.Run(cmd.Context(), plan, logger)
	if err != nil {
		return err
	}

	if err := writeResults(cmd.OutOrStdout(), benchOut, trials, write); err != nil {
		return err
	}

	if benchDB != "" {
		store, err := bench.OpenStore(benchDB)
		if err != nil {
			return err
		}
		defer store.Close()

		runID := bench.NewRunID()
		if err := store.Save(cmd.Context(), runID, trials); err != nil {
			return err
		}
		logger.Info("Benchmark run recorded", "run", runID, "db", benchDB, "trials", len(trials))
	}
	return nil
}

func resultWriter(format string) (func(io.Writer, []bench.Trial) error, error) {
	switch format {
	case "table", "":
		return bench.WriteTable, nil
	case "json":
		return bench.WriteJSON, nil
	case "yaml":
		return bench.WriteYAML, nil
	default:
		return nil, fmt.Errorf("unsupported format %q (table, json, yaml)", format)
	}
}

func writeResults(stdout io.Writer, path string, trials []bench.Trial, write func(io.Writer, []bench.Trial) error) error {
	if path == "-" {
		return write(stdout, trials)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, trials); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %d results to %s\n", len(trials), path)
	return nil
}
