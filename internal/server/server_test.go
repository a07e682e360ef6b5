package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linesearch/internal/config"
	"linesearch/internal/dataset"
	"linesearch/internal/engine"
	"linesearch/internal/match"
	"linesearch/internal/protocol"
	"linesearch/internal/slogutil"
	"linesearch/internal/tlsutil"
)

type harness struct {
	srv    *Server
	addr   string
	tlsCfg *tls.Config
	done   chan error
}

func testConfig(t *testing.T, lines ...string) config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "200k.txt")
	if lines != nil {
		require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	}

	cfg := config.DefaultConfig()
	cfg.Settings.LinuxPath = path
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ReadTimeout = 2 * time.Second
	return cfg
}

func engineFor(cfg config.Config) *engine.Engine {
	logger := slogutil.NewDiscardLogger()
	alg, _ := match.Lookup(cfg.Settings.Algorithm)
	return engine.New(dataset.New(cfg.Settings.LinuxPath, cfg.Settings.RereadOnQuery, logger), alg, logger)
}

func start(t *testing.T, cfg config.Config, q Querier) *harness {
	t.Helper()
	if q == nil {
		q = engineFor(cfg)
	}

	srv, err := New(cfg, q, slogutil.NewDiscardLogger())
	require.NoError(t, err)

	ln, err := srv.Listen(context.Background())
	require.NoError(t, err)

	h := &harness{srv: srv, addr: ln.Addr().String(), done: make(chan error, 1)}
	go func() { h.done <- srv.Serve(context.Background(), ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		assert.NoError(t, <-h.done)
	})
	return h
}

// send writes payload, half-closes, and returns everything the server sent.
func (h *harness) send(t *testing.T, payload string) string {
	t.Helper()

	var conn net.Conn
	var err error
	if h.tlsCfg != nil {
		conn, err = tls.Dial("tcp", h.addr, h.tlsCfg)
	} else {
		conn, err = net.Dial("tcp", h.addr)
	}
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = io.WriteString(conn, payload)
	require.NoError(t, err)
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		require.NoError(t, cw.CloseWrite())
	}

	reply, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(reply)
}

func TestScenarios(t *testing.T) {
	lines := []string{"teststring", "example", "anotherline"}

	for _, reread := range []bool{true, false} {
		t.Run(fmt.Sprintf("reread=%v", reread), func(t *testing.T) {
			cfg := testConfig(t, lines...)
			cfg.Settings.RereadOnQuery = reread
			h := start(t, cfg, nil)

			assert.Equal(t, protocol.ReplyExists, h.send(t, "example\n"), "A")
			assert.Equal(t, protocol.ReplyNotFound, h.send(t, "missing\n"), "B")
			assert.Equal(t, protocol.ReplyEmptyQuery, h.send(t, "\n"), "C")
			assert.Equal(t, protocol.ReplyEmptyQuery, h.send(t, "   \t \r\n"), "C whitespace")
			assert.Equal(t, protocol.ReplyTooLarge, h.send(t, strings.Repeat("A", 1025)), "D")
		})
	}
}

func TestScenarioE_MissingDataset(t *testing.T) {
	for _, reread := range []bool{true, false} {
		cfg := testConfig(t)
		cfg.Settings.RereadOnQuery = reread
		h := start(t, cfg, nil)

		assert.Equal(t, protocol.ReplyNotFound, h.send(t, "anything\n"))
		assert.Equal(t, protocol.ReplyNotFound, h.send(t, "teststring\n"))
	}
}

func TestFrameBoundary(t *testing.T) {
	exact := strings.Repeat("A", 1024)
	cfg := testConfig(t, "short", exact)
	h := start(t, cfg, nil)

	assert.Equal(t, protocol.ReplyExists, h.send(t, exact+"\n"), "exactly max bytes is accepted")
	assert.Equal(t, protocol.ReplyExists, h.send(t, exact+"\r\n"), "terminator is not counted")
	assert.Equal(t, protocol.ReplyTooLarge, h.send(t, exact+"A\n"))
	assert.Equal(t, protocol.ReplyTooLarge, h.send(t, strings.Repeat("B", 8000)), "unread bytes are drained before close")
}

func TestTrimmedQuery(t *testing.T) {
	h := start(t, testConfig(t, "  example  ", "other"), nil)

	assert.Equal(t, protocol.ReplyExists, h.send(t, "example\n"))
	assert.Equal(t, protocol.ReplyExists, h.send(t, "\texample \r\n"))
	assert.Equal(t, protocol.ReplyNotFound, h.send(t, "Example\n"))
}

func TestClientWithoutTerminator(t *testing.T) {
	cfg := testConfig(t, "example")
	cfg.Server.FrameGap = 50 * time.Millisecond
	h := start(t, cfg, nil)

	conn, err := net.Dial("tcp", h.addr)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	// No newline and no half-close: the frame gap ends the read.
	_, err = io.WriteString(conn, "example")
	require.NoError(t, err)

	reply, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, protocol.ReplyExists, string(reply))
}

func TestSplitWrites_NotTruncated(t *testing.T) {
	for _, reread := range []bool{true, false} {
		t.Run(fmt.Sprintf("reread=%v", reread), func(t *testing.T) {
			cfg := testConfig(t, "teststring", "example", "anotherline")
			cfg.Settings.RereadOnQuery = reread
			h := start(t, cfg, nil)

			conn, err := net.Dial("tcp", h.addr)
			require.NoError(t, err)
			defer conn.Close()
			require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

			_, err = io.WriteString(conn, "exam")
			require.NoError(t, err)
			time.Sleep(300 * time.Millisecond)
			_, err = io.WriteString(conn, "ple\n")
			require.NoError(t, err)
			require.NoError(t, conn.(*net.TCPConn).CloseWrite())

			reply, err := io.ReadAll(conn)
			require.NoError(t, err)
			assert.Equal(t, protocol.ReplyExists, string(reply))
		})
	}
}

func TestConcurrentQueries(t *testing.T) {
	lines := make([]string, 500)
	for i := range lines {
		lines[i] = fmt.Sprintf("line-%04d", i)
	}
	h := start(t, testConfig(t, lines...), nil)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			query, want := fmt.Sprintf("line-%04d", i*5), protocol.ReplyExists
			if i%2 == 1 {
				query, want = fmt.Sprintf("absent-%d", i), protocol.ReplyNotFound
			}
			assert.Equal(t, want, h.send(t, query+"\n"), "query %s", query)
		}(i)
	}
	wg.Wait()

	accepted, rejected := h.srv.Counts()
	assert.Equal(t, uint64(100), accepted)
	assert.Zero(t, rejected)
}

// blockingQuerier holds every query until release is closed.
type blockingQuerier struct {
	entered chan struct{}
	release chan struct{}
}

func newBlockingQuerier() *blockingQuerier {
	return &blockingQuerier{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (b *blockingQuerier) Execute(ctx context.Context, _ string) (engine.Result, error) {
	b.entered <- struct{}{}
	select {
	case <-b.release:
		return engine.Found, nil
	case <-ctx.Done():
		return engine.NotFound, ctx.Err()
	}
}

func TestAdmissionGate_RejectsWhenSaturated(t *testing.T) {
	cfg := testConfig(t, "x")
	cfg.Server.MaxConnections = 1
	bq := newBlockingQuerier()
	h := start(t, cfg, bq)

	first := make(chan string, 1)
	go func() { first <- h.send(t, "x\n") }()
	<-bq.entered

	assert.Equal(t, protocol.ReplyBusy, h.send(t, "x\n"))

	close(bq.release)
	assert.Equal(t, protocol.ReplyExists, <-first)
	require.Eventually(t, func() bool {
		if h.srv.gate.TryAcquire(1) {
			h.srv.gate.Release(1)
			return true
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, protocol.ReplyExists, h.send(t, "x\n"), "slot is released after the handler finishes")
	_, rejected := h.srv.Counts()
	assert.Equal(t, uint64(1), rejected)
}

type failingQuerier struct{ err error }

func (f failingQuerier) Execute(context.Context, string) (engine.Result, error) {
	return engine.NotFound, f.err
}

func TestInternalFaultReply(t *testing.T) {
	h := start(t, testConfig(t, "x"), failingQuerier{err: errors.New("boom")})
	assert.Equal(t, protocol.ReplyInternalError, h.send(t, "x\n"))
}

func TestDatasetFaultReply(t *testing.T) {
	cfg := testConfig(t)
	// A directory can be opened but not read as a dataset.
	cfg.Settings.LinuxPath = t.TempDir()
	h := start(t, cfg, nil)

	assert.Equal(t, protocol.ReplyInternalError, h.send(t, "x\n"))
}

func TestTLS(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "server.crt")
	keyPath := filepath.Join(dir, "server.key")
	require.NoError(t, tlsutil.WriteSelfSigned(certPath, keyPath, []string{"127.0.0.1"}))

	cfg := testConfig(t, "teststring", "example")
	cfg.Server.SSLEnabled = true
	cfg.Server.CertFile = certPath
	cfg.Server.KeyFile = keyPath
	h := start(t, cfg, nil)

	clientCfg, err := tlsutil.ClientConfig(false, certPath, "127.0.0.1")
	require.NoError(t, err)
	h.tlsCfg = clientCfg

	assert.Equal(t, protocol.ReplyExists, h.send(t, "example\n"))
	assert.Equal(t, protocol.ReplyNotFound, h.send(t, "missing\n"))
	assert.Equal(t, protocol.ReplyEmptyQuery, h.send(t, "\n"))

	t.Run("plaintext client gets nothing", func(t *testing.T) {
		conn, err := net.Dial("tcp", h.addr)
		require.NoError(t, err)
		defer conn.Close()
		require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

		_, _ = io.WriteString(conn, "example\n")
		reply, _ := io.ReadAll(conn)
		assert.NotContains(t, string(reply), protocol.ReplyExists)
	})
}

func TestAdmissionGate_BusyPathIsBoundedUnderTLS(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "server.crt")
	keyPath := filepath.Join(dir, "server.key")
	require.NoError(t, tlsutil.WriteSelfSigned(certPath, keyPath, []string{"127.0.0.1"}))

	cfg := testConfig(t, "x")
	cfg.Server.SSLEnabled = true
	cfg.Server.CertFile = certPath
	cfg.Server.KeyFile = keyPath
	cfg.Server.MaxConnections = 1
	bq := newBlockingQuerier()
	h := start(t, cfg, bq)

	clientCfg, err := tlsutil.ClientConfig(false, certPath, "127.0.0.1")
	require.NoError(t, err)
	h.tlsCfg = clientCfg

	first := make(chan string, 1)
	go func() { first <- h.send(t, "x\n") }()
	<-bq.entered

	// A TLS client that completes the handshake is told why it was turned away.
	assert.Equal(t, protocol.ReplyBusy, h.send(t, "x\n"))

	// Peers that connect and never handshake.
	const peers = 4 * maxBusyHandlers
	before := runtime.NumGoroutine()
	conns := make([]net.Conn, 0, peers)
	defer func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}()
	for i := 0; i < peers; i++ {
		c, err := net.Dial("tcp", h.addr)
		require.NoError(t, err)
		conns = append(conns, c)
	}
	require.Eventually(t, func() bool {
		_, rejected := h.srv.Counts()
		return rejected == peers+1
	}, 2*time.Second, 5*time.Millisecond)

	// A context-bound TLS handshake runs a helper goroutine next to each busy handler.
	assert.LessOrEqual(t, runtime.NumGoroutine()-before, 2*maxBusyHandlers+4,
		"rejected connections must not each hold a goroutine")

	// Everything beyond the busy slots was closed without waiting on a handshake.
	var closed atomic.Int32
	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			_ = c.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
			_, err := c.Read(make([]byte, 1))
			var ne net.Error
			if !errors.As(err, &ne) || !ne.Timeout() {
				closed.Add(1)
			}
		}(c)
	}
	wg.Wait()
	assert.Equal(t, int32(peers-maxBusyHandlers), closed.Load())

	close(bq.release)
	assert.Equal(t, protocol.ReplyExists, <-first)
}

// singleConnListener hands out one connection, then blocks until closed.
type singleConnListener struct {
	conns  chan net.Conn
	closed chan struct{}
	once   sync.Once
}

func newSingleConnListener(c net.Conn) *singleConnListener {
	l := &singleConnListener{conns: make(chan net.Conn, 1), closed: make(chan struct{})}
	l.conns <- c
	return l
}

func (l *singleConnListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *singleConnListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *singleConnListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}
}

type countingQuerier struct{ calls atomic.Int32 }

func (c *countingQuerier) Execute(context.Context, string) (engine.Result, error) {
	c.calls.Add(1)
	return engine.Found, nil
}

func TestServe_NoHandlersAfterShutdown(t *testing.T) {
	cfg := testConfig(t, "x")
	q := &countingQuerier{}
	srv, err := New(cfg, q, slogutil.NewDiscardLogger())
	require.NoError(t, err)

	require.NoError(t, srv.Shutdown(context.Background()))

	serverEnd, clientEnd := net.Pipe()
	defer clientEnd.Close()

	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), newSingleConnListener(serverEnd)) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve kept running after Shutdown")
	}

	require.NoError(t, clientEnd.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = clientEnd.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF, "connection accepted after Shutdown is closed unanswered")
	assert.Zero(t, q.calls.Load())
	accepted, rejected := srv.Counts()
	assert.Zero(t, accepted+rejected)
}

func TestNew_BadTLSFiles(t *testing.T) {
	cfg := testConfig(t, "x")
	cfg.Server.SSLEnabled = true
	cfg.Server.CertFile = filepath.Join(t.TempDir(), "nope.crt")
	cfg.Server.KeyFile = filepath.Join(t.TempDir(), "nope.key")

	_, err := New(cfg, engineFor(cfg), slogutil.NewDiscardLogger())
	assert.Error(t, err)
}

func TestShutdown_WaitsForHandlers(t *testing.T) {
	cfg := testConfig(t, "x")
	bq := newBlockingQuerier()
	srv, err := New(cfg, bq, slogutil.NewDiscardLogger())
	require.NoError(t, err)
	ln, err := srv.Listen(context.Background())
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(context.Background(), ln) }()
	h := &harness{srv: srv, addr: ln.Addr().String()}

	reply := make(chan string, 1)
	go func() { reply <- h.send(t, "x\n") }()
	<-bq.entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, srv.Shutdown(ctx), context.DeadlineExceeded)
	assert.NoError(t, <-served)

	// Cancelled handlers still answer.
	assert.Equal(t, protocol.ReplyInternalError, <-reply)

	_, err = net.DialTimeout("tcp", h.addr, 200*time.Millisecond)
	assert.Error(t, err, "listener should be closed")
}

func TestServe_StopsWithContext(t *testing.T) {
	cfg := testConfig(t, "x")
	srv, err := New(cfg, engineFor(cfg), slogutil.NewDiscardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool { return srv.Addr() != nil }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after context cancel")
	}
}

func TestAcceptRateLimited(t *testing.T) {
	cfg := testConfig(t, "x")
	cfg.Server.AcceptRate = 1000
	h := start(t, cfg, nil)

	for i := 0; i < 5; i++ {
		assert.Equal(t, protocol.ReplyExists, h.send(t, "x\n"))
	}
}

func TestNextBackoff(t *testing.T) {
	d := nextBackoff(0)
	assert.Equal(t, minAcceptBackoff, d)
	for i := 0; i < 20; i++ {
		d = nextBackoff(d)
	}
	assert.Equal(t, maxAcceptBackoff, d)
}
