// Package engine answers a single query against the dataset.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"linesearch/internal/dataset"
	lserrors "linesearch/internal/errors"
	"linesearch/internal/match"
)

// Result is the outcome of a query.
type Result int

const (
	NotFound Result = iota
	Found
)

func (r Result) String() string {
	if r == Found {
		return "found"
	}
	return "not_found"
}

// Stats are cumulative query counters.
type Stats struct {
	Total    uint64 `json:"total"`
	Found    uint64 `json:"found"`
	NotFound uint64 `json:"notFound"`
	Faults   uint64 `json:"faults"`
}

// Engine matches queries against snapshots supplied by a dataset policy.
// It is safe for concurrent use.
type Engine struct {
	policy    dataset.Policy
	algorithm match.Algorithm
	logger    *slog.Logger

	total    atomic.Uint64
	found    atomic.Uint64
	notFound atomic.Uint64
	faults   atomic.Uint64
}

// New creates an engine.
func New(policy dataset.Policy, algorithm match.Algorithm, logger *slog.Logger) *Engine {
	return &Engine{policy: policy, algorithm: algorithm, logger: logger}
}

// Algorithm returns the matching algorithm in use.
func (e *Engine) Algorithm() match.Algorithm { return e.algorithm }

// Execute reports whether query, trimmed, equals some trimmed dataset line.
//
// The caller is expected to have rejected empty queries. Dataset failures
// come back as DATASET_IO_FAULT; a cancelled load or a panic in the
// algorithm as INTERNAL_FAULT.
func (e *Engine) Execute(ctx context.Context, query string) (res Result, err error) {
	e.total.Add(1)
	defer func() {
		if err != nil {
			e.faults.Add(1)
			return
		}
		if res == Found {
			e.found.Add(1)
		} else {
			e.notFound.Add(1)
		}
	}()

	snap, err := e.policy.Load(ctx)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return NotFound, lserrors.New(lserrors.InternalFault, "dataset load interrupted", err)
		case lserrors.CodeOf(err) == lserrors.InternalFault:
			return NotFound, lserrors.New(lserrors.DatasetIOFault, "failed to load dataset", err)
		}
		return NotFound, err
	}

	start := time.Now()
	ok, err := e.search(snap.Lines, match.Trim(query))
	if err != nil {
		return NotFound, err
	}

	e.logger.Debug("Query matched",
		"algorithm", e.algorithm.Name,
		"lines", snap.Len(),
		"found", ok,
		"elapsed", time.Since(start),
	)
	if ok {
		return Found, nil
	}
	return NotFound, nil
}

func (e *Engine) search(lines []string, query string) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = lserrors.New(lserrors.InternalFault, "matching failed",
				fmt.Errorf("%s panicked: %v", e.algorithm.Name, r))
		}
	}()
	return match.Contains(e.algorithm, lines, query), nil
}

// Stats returns a snapshot of the counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Total:    e.total.Load(),
		Found:    e.found.Load(),
		NotFound: e.notFound.Load(),
		Faults:   e.faults.Load(),
	}
}
