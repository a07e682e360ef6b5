package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

// Watch reloads c whenever its file changes on disk, until ctx is done.
//
// The parent directory is watched rather than the file so that editors and
// tools that replace the file by rename are still seen. Bursts of events are
// collapsed into one reload after debounce.
func Watch(ctx context.Context, c *Cached, debounce time.Duration, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create dataset watcher: %w", err)
	}
	defer w.Close()

	target, err := filepath.Abs(c.path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	d := newDebouncer(debounce, func() {
		changed, err := c.Reload(ctx)
		switch {
		case err != nil:
			logger.Error("Dataset reload failed", "path", c.path, "error", err)
		case !changed:
			logger.Debug("Dataset unchanged after file event", "path", c.path)
		}
	})
	defer d.Stop()

	logger.Info("Watching dataset", "path", target, "debounce", debounce)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&watchOps == 0 {
				continue
			}
			logger.Debug("Dataset file event", "op", ev.Op.String())
			d.Trigger()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Dataset watcher error", "error", err)
		}
	}
}
