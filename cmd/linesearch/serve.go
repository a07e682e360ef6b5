package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"linesearch/internal/dataset"
	"linesearch/internal/engine"
	"linesearch/internal/match"
	"linesearch/internal/paths"
	"linesearch/internal/pidfile"
	"linesearch/internal/server"
)

const shutdownTimeout = 10 * time.Second

var (
	serveHost    string
	servePort    int
	servePIDFile string
	serveNoPID   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the search server",
	Long: `Run the search server in the foreground until SIGINT or SIGTERM.

Examples:
  linesearch serve
  linesearch serve --config config.ini --port 44445
  linesearch serve -v --no-pid-file`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Bind host (overrides server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Bind port (overrides server.port)")
	serveCmd.Flags().StringVar(&servePIDFile, "pid-file", "", "PID file (default <home>/linesearch.pid)")
	serveCmd.Flags().BoolVar(&serveNoPID, "no-pid-file", false, "Do not write a PID file")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closer, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()

	if !serveNoPID {
		pidPath := servePIDFile
		if pidPath == "" {
			if pidPath, err = paths.GetDefaultPIDPath(); err != nil {
				return err
			}
		}
		pf := pidfile.New(pidPath)
		if err := pf.Acquire(); err != nil {
			return err
		}
		defer func() {
			if err := pf.Release(); err != nil {
				logger.Warn("Failed to remove PID file", "error", err)
			}
		}()
	}

	alg, _ := match.Lookup(cfg.Settings.Algorithm)
	policy := dataset.New(cfg.Settings.LinuxPath, cfg.Settings.RereadOnQuery, logger)
	eng := engine.New(policy, alg, logger)

	srv, err := server.New(cfg, eng, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := srv.Listen(ctx)
	if err != nil {
		return err
	}

	logger.Info("Starting linesearch",
		"dataset", cfg.Settings.LinuxPath,
		"mode", policy.Mode().String(),
		"algorithm", alg.Name,
		"config", cfg.Source,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx, ln) })
	if cached, ok := policy.(*dataset.Cached); ok && cfg.Settings.Watch {
		g.Go(func() error { return dataset.Watch(gctx, cached, cfg.Settings.WatchDebounce, logger) })
	}

	<-gctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("In-flight connections did not finish", "error", err)
	}

	err = g.Wait()

	stats := eng.Stats()
	accepted, rejected := srv.Counts()
	logger.Info("Server stopped",
		"queries", stats.Total,
		"found", stats.Found,
		"not_found", stats.NotFound,
		"faults", stats.Faults,
		"accepted", accepted,
		"rejected", rejected,
	)
	return err
}
