package dataset

import (
	"context"
	"encoding/hex"
	"log/slog"
	"sync"
	"sync/atomic"
)

type cacheState int

const (
	stateUninitialized cacheState = iota
	stateLoaded
)

// Cached reads the dataset once, on first use, and serves that snapshot to
// every later query. Reload replaces it atomically.
//
// A missing file is never cached: each Load retries until the file appears.
type Cached struct {
	path   string
	logger *slog.Logger

	mu    sync.Mutex // guards state and serializes reads of the file
	state cacheState
	snap  atomic.Pointer[Snapshot]
}

// NewCached returns a lazily loading policy for path.
func NewCached(path string, logger *slog.Logger) *Cached {
	return &Cached{path: path, logger: logger}
}

// Mode implements Policy.
func (c *Cached) Mode() Mode { return ModeCached }

// Load implements Policy. After the first successful read it takes no lock.
func (c *Cached) Load(ctx context.Context) (*Snapshot, error) {
	if s := c.snap.Load(); s != nil {
		return s, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateLoaded {
		return c.snap.Load(), nil
	}

	snap, err := ReadLines(c.path)
	if isMissing(err) {
		c.logger.Debug("Dataset missing, not caching", "path", c.path)
		return empty(c.path), nil
	}
	if err != nil {
		return nil, err
	}

	c.snap.Store(snap)
	c.state = stateLoaded
	c.logger.Info("Dataset cached",
		"path", c.path,
		"lines", snap.Len(),
		"digest", shortDigest(snap),
	)
	return snap, nil
}

// Loaded reports whether a snapshot is currently cached.
func (c *Cached) Loaded() bool {
	return c.snap.Load() != nil
}

// Reload rereads the file and swaps in the new snapshot. It reports
// changed=false when the content digest is unchanged. A missing file keeps
// the current snapshot.
func (c *Cached) Reload(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	snap, err := ReadLines(c.path)
	if isMissing(err) {
		c.logger.Warn("Dataset missing on reload, keeping current snapshot", "path", c.path)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if old := c.snap.Load(); old != nil && old.Digest == snap.Digest {
		return false, nil
	}

	c.snap.Store(snap)
	c.state = stateLoaded
	c.logger.Info("Dataset reloaded",
		"path", c.path,
		"lines", snap.Len(),
		"digest", shortDigest(snap),
	)
	return true, nil
}

func shortDigest(s *Snapshot) string {
	return hex.EncodeToString(s.Digest[:6])
}
