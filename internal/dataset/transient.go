package dataset

import (
	"context"
	"log/slog"
)

// Transient rereads the dataset on every Load, so each query sees the file
// as it is on disk at that moment.
type Transient struct {
	path   string
	logger *slog.Logger
}

// NewTransient returns a policy that reads path on every call.
func NewTransient(path string, logger *slog.Logger) *Transient {
	return &Transient{path: path, logger: logger}
}

// Mode implements Policy.
func (t *Transient) Mode() Mode { return ModeTransient }

// Load implements Policy.
func (t *Transient) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := ReadLines(t.path)
	if isMissing(err) {
		t.logger.Debug("Dataset missing, serving empty snapshot", "path", t.path)
		return empty(t.path), nil
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}
