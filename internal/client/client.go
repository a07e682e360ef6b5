// Package client sends single queries to a linesearch server.
package client

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"time"

	lserrors "linesearch/internal/errors"
	"linesearch/internal/match"
	"linesearch/internal/protocol"
)

// maxReply bounds how much of a reply is read.
const maxReply = 4096

// Client dials a fresh connection per query.
type Client struct {
	addr    string
	tls     *tls.Config
	timeout time.Duration
}

// New returns a client for addr. A nil tlsConfig means plain TCP; timeout
// bounds each whole exchange and 0 means none.
func New(addr string, tlsConfig *tls.Config, timeout time.Duration) *Client {
	return &Client{addr: addr, tls: tlsConfig, timeout: timeout}
}

// Addr returns the server address.
func (c *Client) Addr() string { return c.addr }

// Query sends q and returns the server's reply. An empty query is answered
// locally without dialing.
func (c *Client) Query(ctx context.Context, q string) (string, error) {
	if match.Trim(q) == "" {
		return protocol.ReplyEmptyQuery, nil
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return "", lserrors.New(lserrors.TransportFault, "failed to connect to "+c.addr, err)
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := io.WriteString(conn, q+"\n"); err != nil {
		return "", lserrors.New(lserrors.TransportFault, "failed to send query", err)
	}
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}

	reply, err := io.ReadAll(io.LimitReader(conn, maxReply))
	if err != nil {
		return "", lserrors.New(lserrors.TransportFault, "failed to read reply", err)
	}
	return string(reply), nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	if c.tls == nil {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", c.addr)
	}
	d := tls.Dialer{Config: c.tls}
	return d.DialContext(ctx, "tcp", c.addr)
}
