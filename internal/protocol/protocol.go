// Package protocol implements the one-request-per-connection line protocol:
// the client sends a single query line, the server answers with one of a
// fixed set of replies and closes.
package protocol

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"time"

	lserrors "linesearch/internal/errors"
	"linesearch/internal/match"
)

// Replies. None carries a trailing newline.
const (
	ReplyExists        = "STRING EXISTS"
	ReplyNotFound      = "STRING NOT FOUND"
	ReplyEmptyQuery    = "ERROR: Empty query"
	ReplyTooLarge      = "ERROR: Payload too large"
	ReplyInternalError = "ERROR: Internal server error"
	ReplyBusy          = "ERROR: Server busy"
)

const readChunk = 4096

// DeadlineReader is the subset of net.Conn that ReadFrame needs.
type DeadlineReader interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

// ReadFrame reads one request frame from r.
//
// Bytes are accumulated until a '\n' arrives, the peer closes its write
// side, more than maxFrame+2 bytes have been buffered, or, once something has
// been received, nothing more arrives within gap. deadline bounds the whole
// read; zero means none. One trailing "\n" and one "\r" before it are
// stripped. The returned frame may be longer than maxFrame; Validate rejects it.
func ReadFrame(r DeadlineReader, maxFrame int, gap time.Duration, deadline time.Time) ([]byte, error) {
	buf := make([]byte, 0, min(maxFrame+2, readChunk))
	chunk := make([]byte, readChunk)

	for {
		d, gapArmed := nextDeadline(len(buf) > 0, gap, deadline)
		if err := r.SetReadDeadline(d); err != nil {
			return nil, lserrors.New(lserrors.TransportFault, "failed to set read deadline", err)
		}

		n, err := r.Read(chunk)
		buf = append(buf, chunk[:n]...)

		if i := bytes.IndexByte(buf, '\n'); i >= 0 {
			return strip(buf[:i+1]), nil
		}
		if len(buf) > maxFrame+2 {
			return buf, nil
		}
		if err == nil {
			continue
		}

		switch {
		case errors.Is(err, io.EOF):
			return strip(buf), nil
		case isTimeout(err) && gapArmed:
			return strip(buf), nil
		case isTimeout(err):
			return nil, lserrors.New(lserrors.TransportFault, "read timed out", err)
		default:
			return nil, lserrors.New(lserrors.TransportFault, "read failed", err)
		}
	}
}

// nextDeadline picks the earlier of the overall deadline and the inter-chunk
// gap, reporting whether the gap is the one in force.
func nextDeadline(started bool, gap time.Duration, deadline time.Time) (time.Time, bool) {
	if !started || gap <= 0 {
		return deadline, false
	}
	g := time.Now().Add(gap)
	if deadline.IsZero() || g.Before(deadline) {
		return g, true
	}
	return deadline, false
}

func strip(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte{'\n'})
	return bytes.TrimSuffix(b, []byte{'\r'})
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Validate checks a frame and returns the query it carries. A frame of
// exactly maxFrame bytes is accepted.
func Validate(frame []byte, maxFrame int) (string, error) {
	if len(frame) > maxFrame {
		return "", lserrors.Newf(lserrors.PayloadTooLarge, "frame of %d bytes exceeds %d", len(frame), maxFrame)
	}
	q := string(frame)
	if match.Trim(q) == "" {
		return "", lserrors.Newf(lserrors.EmptyQuery, "query is empty")
	}
	return q, nil
}

// ReplyFor maps a handler error to the reply sent to the client.
func ReplyFor(err error) string {
	switch lserrors.CodeOf(err) {
	case lserrors.EmptyQuery:
		return ReplyEmptyQuery
	case lserrors.PayloadTooLarge:
		return ReplyTooLarge
	case lserrors.ServerBusy:
		return ReplyBusy
	default:
		return ReplyInternalError
	}
}

// ReplyForMatch returns the reply for a completed search.
func ReplyForMatch(found bool) string {
	if found {
		return ReplyExists
	}
	return ReplyNotFound
}
