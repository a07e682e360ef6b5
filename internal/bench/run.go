package bench

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"linesearch/internal/dataset"
	"linesearch/internal/match"
)

// Trial is one timed search.
type Trial struct {
	Algorithm string
	FileSize  int
	Duration  time.Duration
	Reread    bool
}

// Run executes plan. For every size a dataset is generated, one query is
// chosen, and each algorithm is timed once per reread mode. Reread trials
// include reading the file; cached trials time the search alone.
func Run(ctx context.Context, plan Plan, logger *slog.Logger) ([]Trial, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	algs, err := match.Resolve(plan.Algorithms)
	if err != nil {
		return nil, err
	}

	dir := plan.Dir
	if dir == "" {
		dir, err = os.MkdirTemp("", "linesearch-bench-")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(dir)
	}

	rng := rand.New(rand.NewPCG(uint64(plan.Seed), uint64(plan.Seed)^0x9e3779b97f4a7c15))
	var trials []Trial

	for _, size := range plan.Sizes {
		path := filepath.Join(dir, fmt.Sprintf("test_file_%d.txt", size))
		if err := GenerateDataset(path, size, plan.LineLength, rng); err != nil {
			return nil, err
		}

		snap, err := dataset.ReadLines(path)
		if err != nil {
			return nil, err
		}
		query := RandomLine(rng, plan.LineLength)
		if plan.QueryMode == QueryPresent {
			query = snap.Lines[rng.IntN(len(snap.Lines))]
		}

		for _, reread := range plan.Reread {
			for _, alg := range algs {
				if err := ctx.Err(); err != nil {
					_ = os.Remove(path)
					return trials, err
				}

				d, err := timeSearch(alg, snap, path, query, reread)
				if err != nil {
					_ = os.Remove(path)
					return trials, err
				}

				trials = append(trials, Trial{Algorithm: alg.Name, FileSize: size, Duration: d, Reread: reread})
				logger.Info("Benchmark trial",
					"algorithm", alg.Name,
					"file_size", size,
					"reread", reread,
					"seconds", fmt.Sprintf("%.4f", d.Seconds()),
				)
			}
		}

		if err := os.Remove(path); err != nil {
			logger.Warn("Failed to remove generated dataset", "path", path, "error", err)
		}
	}
	return trials, nil
}

func timeSearch(alg match.Algorithm, snap *dataset.Snapshot, path, query string, reread bool) (time.Duration, error) {
	start := time.Now()
	lines := snap.Lines
	if reread {
		fresh, err := dataset.ReadLines(path)
		if err != nil {
			return 0, err
		}
		lines = fresh.Lines
	}
	alg.Search(lines, query)
	return time.Since(start), nil
}
