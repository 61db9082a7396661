// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resp

import (
	"net"
	"time"

	"code.hybscloud.com/iox"
)

// Transport is the byte-level collaborator Conn and Async drive. It is
// deliberately narrow: connect/dial itself happens before a Transport
// exists (see Endpoint.dial in netopts.go); a Transport only reads, writes,
// waits for readiness, and reports/controls a handful of socket options.
//
// Read and Write surface iox.ErrWouldBlock (aliased as ErrWouldBlock) in
// place of Go's usual blocking behavior when the Transport was put in
// non-blocking mode via SetBlocking(false) — an EAGAIN-as-sentinel
// convention applied here to socket readiness.
type Transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	WaitReadable(deadline time.Time) error
	WaitWritable(deadline time.Time) error
	ConnectCompletion() error
	SetBlocking(blocking bool) error
	SetTCPNoDelay(enabled bool) error
	SetKeepAlive(enabled bool, period time.Duration) error
	Close() error
}

// netTransport is the default Transport, backed by net.Conn. Dialing
// happens before newNetTransport, in Endpoint.dial (net.Dialer.Dial already
// performs the getaddrinfo-then-connect dance); ConnectCompletion exists
// for parity with a non-blocking connect(2) path, where connect returns
// immediately and completion is confirmed by the first writable event plus
// a getsockopt(SO_ERROR) check. Since net.Dial blocks until connect
// finishes or the dial deadline elapses, ConnectCompletion here is a no-op
// that simply surfaces any dial error that has not already been returned —
// it is still called by Async so a future adapter built directly over a
// raw, pre-connected fd (FD option) has a real hook to perform that check.
type netTransport struct {
	conn     net.Conn
	nonblock bool
	dialErr  error
}

func newNetTransport(conn net.Conn, nonblock bool) *netTransport {
	return &netTransport{conn: conn, nonblock: nonblock}
}

// isTimeout reports whether err is a deadline-exceeded error from the net
// package, the signal netTransport maps onto ErrWouldBlock in non-blocking
// mode.
func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func (t *netTransport) Read(p []byte) (int, error) {
	if t.nonblock {
		if err := t.conn.SetReadDeadline(time.Now()); err != nil {
			return 0, wrapError(ErrKindIO, "set read deadline", err)
		}
	}
	// In blocking mode the deadline is left exactly as WaitReadable set it,
	// so a caller's per-call timeout is honored by this Read instead of
	// being discarded in favor of an indefinite block.
	n, err := t.conn.Read(p)
	if err != nil {
		if t.nonblock && isTimeout(err) {
			return n, iox.ErrWouldBlock
		}
		return n, err
	}
	return n, nil
}

func (t *netTransport) Write(p []byte) (int, error) {
	if t.nonblock {
		if err := t.conn.SetWriteDeadline(time.Now()); err != nil {
			return 0, wrapError(ErrKindIO, "set write deadline", err)
		}
	}
	// Blocking mode: leave whatever deadline WaitWritable already armed.
	n, err := t.conn.Write(p)
	if err != nil {
		if t.nonblock && isTimeout(err) {
			return n, iox.ErrWouldBlock
		}
		return n, err
	}
	return n, nil
}

// WaitReadable arms the read deadline used by the next blocking Read.
// net.Conn has no separate readiness-poll primitive distinct from Read
// itself, so "waiting" here means "the next Read call blocks up to
// deadline and returns a timeout if nothing arrives" rather than an
// actual select(2)-equivalent — the simplest mapping that is still
// faithful to the contract Conn needs (bounded wait, then give up).
func (t *netTransport) WaitReadable(deadline time.Time) error {
	return t.conn.SetReadDeadline(deadline)
}

func (t *netTransport) WaitWritable(deadline time.Time) error {
	return t.conn.SetWriteDeadline(deadline)
}

func (t *netTransport) ConnectCompletion() error {
	return t.dialErr
}

func (t *netTransport) SetBlocking(blocking bool) error {
	t.nonblock = !blocking
	return nil
}

func (t *netTransport) SetTCPNoDelay(enabled bool) error {
	tc, ok := t.conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	return tc.SetNoDelay(enabled)
}

func (t *netTransport) SetKeepAlive(enabled bool, period time.Duration) error {
	tc, ok := t.conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tc.SetKeepAlive(enabled); err != nil {
		return err
	}
	if enabled && period > 0 {
		return tc.SetKeepAlivePeriod(period)
	}
	return nil
}

func (t *netTransport) Close() error {
	return t.conn.Close()
}
