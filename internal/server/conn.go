package server

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"linesearch/internal/engine"
	lserrors "linesearch/internal/errors"
	"linesearch/internal/protocol"
)

const (
	drainTimeout = 200 * time.Millisecond
	drainLimit   = 64 << 10
)

type closeWriter interface {
	CloseWrite() error
}

// handle runs one connection: optional TLS handshake, one frame, one reply.
func (s *Server) handle(ctx context.Context, raw net.Conn) {
	defer raw.Close()

	logger := s.connLogger(raw)
	logger.Debug("Connection accepted")

	conn := raw
	if s.tlsConfig != nil {
		tc, err := s.handshake(ctx, raw)
		if err != nil {
			logger.Warn("TLS handshake failed", "error", err)
			return
		}
		conn = tc
	}

	reply, ok := s.serve(ctx, conn, logger)
	if !ok {
		return
	}
	s.reply(conn, reply, logger)
}

// rejectBusy answers a connection turned away by the admission gate. The
// handshake, the reply and the close all fit inside busyTimeout.
func (s *Server) rejectBusy(ctx context.Context, raw net.Conn) {
	defer raw.Close()

	logger := s.connLogger(raw)
	ctx, cancel := context.WithTimeout(ctx, busyTimeout)
	defer cancel()
	end, _ := ctx.Deadline()
	_ = raw.SetDeadline(end)

	conn := raw
	if s.tlsConfig != nil {
		tc, err := s.handshakeWithin(ctx, raw, 0)
		if err != nil {
			logger.Debug("Busy connection dropped during handshake", "error", err)
			return
		}
		conn = tc
	}

	logger.Warn("Connection rejected, server busy")
	if _, err := io.WriteString(conn, protocol.ReplyBusy); err != nil {
		logger.Debug("Failed to write busy reply", "error", err)
		return
	}
	if cw, ok := conn.(closeWriter); ok {
		_ = cw.CloseWrite()
	}
	drainEnd := time.Now().Add(drainTimeout)
	if end.Before(drainEnd) {
		drainEnd = end
	}
	_ = conn.SetReadDeadline(drainEnd)
	_, _ = io.Copy(io.Discard, io.LimitReader(conn, drainLimit))
}

func (s *Server) connLogger(raw net.Conn) *slog.Logger {
	return s.logger.With("conn", uuid.NewString(), "remote", raw.RemoteAddr().String())
}

func (s *Server) handshake(ctx context.Context, raw net.Conn) (*tls.Conn, error) {
	return s.handshakeWithin(ctx, raw, s.cfg.HandshakeTimeout)
}

func (s *Server) handshakeWithin(ctx context.Context, raw net.Conn, timeout time.Duration) (*tls.Conn, error) {
	tc := tls.Server(raw, s.tlsConfig)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := tc.HandshakeContext(ctx); err != nil {
		return nil, lserrors.New(lserrors.TransportFault, "handshake failed", err)
	}
	return tc, nil
}

// serve reads and answers the query. ok is false when the connection
// failed before a reply could be decided.
func (s *Server) serve(ctx context.Context, conn net.Conn, logger *slog.Logger) (reply string, ok bool) {
	start := time.Now()

	frame, err := protocol.ReadFrame(conn, s.cfg.BufferSize, s.cfg.FrameGap, deadline(s.cfg.ReadTimeout))
	if err != nil {
		logger.Warn("Failed to read query", "error", err)
		return "", false
	}

	query, err := protocol.Validate(frame, s.cfg.BufferSize)
	if err != nil {
		logger.Info("Query rejected", "code", lserrors.CodeOf(err), "bytes", len(frame))
		return protocol.ReplyFor(err), true
	}

	res, err := s.querier.Execute(ctx, query)
	if err != nil {
		logger.Error("Query failed", "code", lserrors.CodeOf(err), "error", err)
		return protocol.ReplyFor(err), true
	}

	logger.Debug("Query served",
		"query", query,
		"result", res.String(),
		"elapsed", time.Since(start),
	)
	return protocol.ReplyForMatch(res == engine.Found), true
}

// reply writes the reply, half-closes, and drains whatever the client still
// sends so that closing does not reset the connection under the reply.
func (s *Server) reply(conn net.Conn, reply string, logger *slog.Logger) {
	if err := conn.SetWriteDeadline(deadline(s.cfg.WriteTimeout)); err != nil {
		logger.Warn("Failed to set write deadline", "error", err)
	}
	if _, err := io.WriteString(conn, reply); err != nil {
		logger.Warn("Failed to write reply", "error", err)
		return
	}

	if cw, ok := conn.(closeWriter); ok {
		if err := cw.CloseWrite(); err != nil {
			logger.Debug("Half-close failed", "error", err)
		}
	}
	_ = conn.SetReadDeadline(time.Now().Add(drainTimeout))
	_, _ = io.Copy(io.Discard, io.LimitReader(conn, drainLimit))
}

func deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}
