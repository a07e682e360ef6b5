package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"linesearch/internal/bench"
)

var (
	reportIn     string
	reportDB     string
	reportRun    string
	reportReread bool
	reportFormat string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize benchmark results",
	Long: `Group benchmark results by algorithm, ordered by dataset size, for one
reread mode.

Examples:
  linesearch report
  linesearch report --reread
  linesearch report --db results.db --format json`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportIn, "in", "benchmark_results.txt", "Results table to read")
	reportCmd.Flags().StringVar(&reportDB, "db", "", "Read from a SQLite results database instead")
	reportCmd.Flags().StringVar(&reportRun, "run", "", "Run id in --db (default latest)")
	reportCmd.Flags().BoolVar(&reportReread, "reread", false, "Report the reread-on-query trials")
	reportCmd.Flags().StringVar(&reportFormat, "format", "series", "Output format (series, table, json, yaml)")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	trials, err := loadTrials(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if reportFormat == "series" {
		series := bench.Series(trials, reportReread)
		if len(series) == 0 {
			fmt.Fprintf(out, "No results with reread=%v\n", reportReread)
			return nil
		}
		return bench.WriteSeries(out, series)
	}

	write, err := resultWriter(reportFormat)
	if err != nil {
		return err
	}
	selected := trials[:0:0]
	for _, t := range trials {
		if t.Reread == reportReread {
			selected = append(selected, t)
		}
	}
	return write(out, selected)
}

func loadTrials(ctx context.Context) ([]bench.Trial, error) {
	if reportDB == "" {
		f, err := os.Open(reportIn)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return bench.ParseTable(f)
	}

	store, err := bench.OpenStore(reportDB)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	run := reportRun
	if run == "" {
		if run, err = store.LatestRun(ctx); err != nil {
			return nil, err
		}
	}
	return store.Trials(ctx, run)
}
