// Package dataset loads the line dataset that queries are matched against
// and decides how often it is read from disk.
package dataset

import (
	"context"
	"log/slog"
	"time"
)

// Mode selects the reread policy.
type Mode int

const (
	// ModeTransient rereads the file on every query.
	ModeTransient Mode = iota
	// ModeCached reads the file once and serves the same snapshot afterwards.
	ModeCached
)

// String returns the mode name used in logs and config output.
func (m Mode) String() string {
	switch m {
	case ModeTransient:
		return "transient"
	case ModeCached:
		return "cached"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the dataset at one point in time.
type Snapshot struct {
	Lines    []string
	Digest   [32]byte
	LoadedAt time.Time
	Source   string
}

// Len returns the number of lines in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Lines)
}

// empty is the snapshot served when the file does not exist.
func empty(path string) *Snapshot {
	return &Snapshot{Source: path, LoadedAt: time.Now()}
}

// Policy yields the snapshot a single query runs against.
type Policy interface {
	Load(ctx context.Context) (*Snapshot, error)
	Mode() Mode
}

// New returns a transient policy when reread is set, a cached one otherwise.
func New(path string, reread bool, logger *slog.Logger) Policy {
	if reread {
		return NewTransient(path, logger)
	}
	return NewCached(path, logger)
}
