package slogutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"linesearch/internal/config"
	"linesearch/internal/paths"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup builds the process logger from the logging configuration.
//
// Records go to stderr; when a log file is configured they are also appended
// to it, rotated by size when max_size is set. A bare file name is placed in
// the logs directory under the linesearch home. override, when set, replaces
// the configured level (CLI -v / --quiet).
func Setup(cfg config.LoggingConfig, stderr io.Writer, override slog.Level, hasOverride bool) (*slog.Logger, io.Closer, error) {
	level := LevelFromString(cfg.Level)
	if hasOverride {
		level = override
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	console := newHandler(cfg.Format, stderr, level)
	if cfg.File == "" {
		return slog.New(console), nopCloser{}, nil
	}

	path := cfg.File
	if !filepath.IsAbs(path) && filepath.Dir(path) == "." {
		dir, err := paths.EnsureLogsDir()
		if err != nil {
			return nil, nil, err
		}
		path = filepath.Join(dir, path)
	}

	rf, err := OpenRotatingFile(path, ParseSize(cfg.MaxSize), cfg.MaxBackups)
	if err != nil {
		return nil, nil, err
	}

	file := newHandler(cfg.Format, rf, level)
	return slog.New(NewTeeHandler(console, file)), rf, nil
}

func newHandler(format string, w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return NewLineHandler(w, opts)
}
