package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"linesearch/internal/config"
	"linesearch/internal/slogutil"
	"linesearch/internal/version"
)

var (
	configPath string
	verbosity  int
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "linesearch",
	Short: "linesearch - exact line lookup over TCP",
	Long: `linesearch answers one question per connection: does the query appear,
as a whole line, in the configured dataset file?

Replies are STRING EXISTS, STRING NOT FOUND, or an ERROR: line.`,
	Version:       version.Info(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("linesearch version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Config file (toml, yaml, json or legacy ini); searched for when empty")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress logging")
}

// loadConfig reads the configuration named by --config, or the first one
// found in the search path.
func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

// newLogger builds the command logger, applying -v and --quiet.
func newLogger(cfg config.Config, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	level, override := slogutil.LevelFromVerbosity(verbosity, quiet)
	if stderr == nil {
		stderr = os.Stderr
	}
	return slogutil.Setup(cfg.Logging, stderr, level, override)
}
