// Package server accepts TCP (optionally TLS) connections and answers one
// query per connection.
//
// Each accepted connection is handled on its own goroutine. Concurrency is
// bounded by an admission gate: once max_connections handlers are running,
// new connections are told "ERROR: Server busy" and closed. At most
// maxBusyHandlers of those replies are in flight at once, each bounded by
// busyTimeout; beyond that a rejected connection is closed without a reply.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"linesearch/internal/config"
	"linesearch/internal/engine"
	"linesearch/internal/tlsutil"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second

	maxBusyHandlers = 16
	busyTimeout     = time.Second
)

// Querier answers a single query.
type Querier interface {
	Execute(ctx context.Context, query string) (engine.Result, error)
}

// Server is the connection acceptor.
type Server struct {
	cfg       config.ServerConfig
	querier   Querier
	logger    *slog.Logger
	tlsConfig *tls.Config
	gate      *semaphore.Weighted
	busy      *semaphore.Weighted
	limiter   *rate.Limiter

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	closing  atomic.Bool
	wg       sync.WaitGroup

	accepted atomic.Uint64
	rejected atomic.Uint64
}

// New creates a server. When TLS is enabled the certificate and key are
// loaded here, so a bad pair fails at startup rather than per connection.
func New(cfg config.Config, q Querier, logger *slog.Logger) (*Server, error) {
	s := &Server{
		cfg:     cfg.Server,
		querier: q,
		logger:  logger,
	}

	if cfg.Server.SSLEnabled {
		tc, err := tlsutil.LoadServerConfig(cfg.Server.CertFile, cfg.Server.KeyFile)
		if err != nil {
			return nil, err
		}
		s.tlsConfig = tc
	}
	if cfg.Server.MaxConnections > 0 {
		s.gate = semaphore.NewWeighted(int64(cfg.Server.MaxConnections))
		s.busy = semaphore.NewWeighted(maxBusyHandlers)
	}
	if cfg.Server.AcceptRate > 0 {
		burst := max(1, int(cfg.Server.AcceptRate))
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Server.AcceptRate), burst)
	}

	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// Listen binds the configured host:port. The OS default backlog applies.
func (s *Server) Listen(ctx context.Context) (net.Listener, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return ln, nil
}

// ListenAndServe binds and serves until ctx is done or Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := s.Listen(ctx)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the accept loop on ln. It returns nil once the listener is
// closed by Shutdown or by ctx ending; in-flight handlers keep running until
// Shutdown waits for them.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.listener != nil {
		s.mu.Unlock()
		return errors.New("server already serving")
	}
	s.listener = ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	s.logger.Info("Server listening",
		"addr", ln.Addr().String(),
		"tls", s.tlsConfig != nil,
		"max_connections", s.cfg.MaxConnections,
		"max_frame", s.cfg.BufferSize,
	)

	var backoff time.Duration
	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || s.closing.Load() || ctx.Err() != nil {
				return nil
			}
			backoff = nextBackoff(backoff)
			s.logger.Warn("Accept failed, retrying", "error", err, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		backoff = 0

		if !s.track() {
			_ = conn.Close()
			return nil
		}
		s.dispatch(conn)
	}
}

// track registers one handler with the wait group, unless Shutdown has
// already started.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing.Load() {
		return false
	}
	s.wg.Add(1)
	return true
}

// dispatch starts the goroutine for a tracked connection: a full handler if
// the gate admits it, a busy reply if a busy slot is free, otherwise none.
func (s *Server) dispatch(conn net.Conn) {
	switch {
	case s.gate == nil || s.gate.TryAcquire(1):
		s.accepted.Add(1)
		go func() {
			defer s.wg.Done()
			if s.gate != nil {
				defer s.gate.Release(1)
			}
			s.handle(s.baseCtx, conn)
		}()
	case s.busy.TryAcquire(1):
		s.rejected.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.busy.Release(1)
			s.rejectBusy(s.baseCtx, conn)
		}()
	default:
		s.rejected.Add(1)
		s.wg.Done()
		s.logger.Debug("Connection dropped, server busy", "remote", conn.RemoteAddr().String())
		_ = conn.Close()
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptBackoff
	}
	return min(2*d, maxAcceptBackoff)
}

// Addr returns the bound address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Counts reports admitted and rejected connections so far.
func (s *Server) Counts() (accepted, rejected uint64) {
	return s.accepted.Load(), s.rejected.Load()
}

// Shutdown stops accepting and waits for in-flight handlers. If ctx ends
// first, handlers are cancelled and ctx's error is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing.Store(true)
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}
