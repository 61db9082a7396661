// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resp

import (
	"io"
	"time"

	"code.hybscloud.com/resp/internal/respio"
	"github.com/sirupsen/logrus"
)

func isEOFErr(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}

// Conn is the blocking front door: a Reader, a Transport and an outbound
// byte buffer composed together directly, with no interface indirection
// between them. Command is implemented entirely in terms of AppendCommand
// plus flush plus GetReply, so there is exactly one code path that ever
// talks to the Transport.
//
// Conn is not safe for concurrent use; a multi-goroutine embedder supplies
// its own mutex.
type Conn struct {
	reader    *Reader
	transport Transport
	out       *respio.Buffer

	opts Options

	timeout time.Duration // per-op timeout; defaults to opts.CommandTimeout

	err error
}

// Dial establishes a connection per opts.Endpoint and returns a ready-to-
// use Conn. opts must include WithTCP or WithUnix; a WithFD endpoint is
// rejected.
func Dial(opts ...Option) (*Conn, error) {
	o := newOptions(opts...)
	conn, err := o.Endpoint.dial(&o)
	if err != nil {
		return nil, err
	}
	t := newNetTransport(conn, o.Nonblock)
	if o.Endpoint.kind == endpointTCP {
		_ = t.SetTCPNoDelay(true)
	}
	c := &Conn{
		reader:    NewReader(),
		transport: t,
		out:       respio.Get(),
		opts:      o,
		timeout:   o.CommandTimeout,
	}
	c.logf("connected to %s", endpointLabel(o.Endpoint))
	return c, nil
}

func endpointLabel(ep Endpoint) string {
	switch ep.kind {
	case endpointTCP:
		return ep.host + ":" + ep.port
	case endpointUnix:
		return ep.path
	default:
		return "fd"
	}
}

func (c *Conn) logf(format string, args ...any) {
	if c.opts.Logger != nil {
		c.opts.Logger.WithField("component", "resp.Conn").Logf(logrus.DebugLevel, format, args...)
	}
}

// SetTimeout sets the per-operation deadline used by Command and
// GetReply. Zero disables the deadline.
func (c *Conn) SetTimeout(d time.Duration) {
	c.timeout = d
}

// SetConnectTimeout sets the deadline used by a future Reconnect.
func (c *Conn) SetConnectTimeout(d time.Duration) {
	c.opts.ConnectTimeout = d
}

// Command formats template with args, sends it, and blocks for exactly
// one reply.
func (c *Conn) Command(template string, args ...any) (*Reply, error) {
	if err := c.AppendCommand(template, args...); err != nil {
		return nil, err
	}
	return c.GetReply()
}

// AppendCommand formats template with args and queues the resulting bytes
// in the output buffer without writing them to the transport. Call
// GetReply (or Command for the simple one-shot case) to flush and read.
func (c *Conn) AppendCommand(template string, args ...any) error {
	if c.err != nil {
		return c.err
	}
	b, err := Format(template, args...)
	if err != nil {
		return err
	}
	_, _ = c.out.Write(b)
	return nil
}

// GetReply flushes any buffered output, then reads from the transport
// until one reply completes. Push replies that arrive before the real
// reply are routed to PushCallback and skipped transparently.
func (c *Conn) GetReply() (*Reply, error) {
	if c.err != nil {
		return nil, c.err
	}
	if err := c.flush(); err != nil {
		c.taint(err)
		return nil, err
	}
	for {
		reply, err := c.readOneReply()
		if err != nil {
			c.taint(err)
			return nil, err
		}
		if reply.Kind == KindPush {
			if c.opts.PushCallback != nil {
				c.opts.PushCallback(reply)
			} else if !c.opts.NoPushAutoFree {
				reply.Free(c.reader.Factories())
			}
			continue
		}
		return reply, nil
	}
}

func (c *Conn) deadline() time.Time {
	if c.timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.timeout)
}

func (c *Conn) flush() error {
	for c.out.Len() > 0 {
		if err := c.transport.WaitWritable(c.deadline()); err != nil {
			return wrapError(ErrKindTimeout, "wait writable", err)
		}
		n, err := c.transport.Write(c.out.Bytes())
		if n > 0 {
			c.out.Discard(n)
		}
		if err != nil {
			if IsWouldBlock(err) {
				continue
			}
			return wrapError(ErrKindIO, "write", err)
		}
	}
	return nil
}

func (c *Conn) readOneReply() (*Reply, error) {
	for {
		reply, err := c.reader.GetReply()
		if err == nil {
			return reply, nil
		}
		if !IsWouldBlock(err) {
			return nil, err
		}
		if werr := c.transport.WaitReadable(c.deadline()); werr != nil {
			return nil, wrapError(ErrKindTimeout, "wait readable", werr)
		}
		buf := make([]byte, 16*1024)
		n, rerr := c.transport.Read(buf)
		if n > 0 {
			_ = c.reader.Feed(buf[:n])
		}
		if rerr != nil {
			if IsWouldBlock(rerr) {
				continue
			}
			if isEOFErr(rerr) {
				return nil, wrapError(ErrKindEOF, "server closed the connection", rerr)
			}
			return nil, wrapError(ErrKindIO, "read", rerr)
		}
	}
}

func (c *Conn) taint(err error) {
	if c.err == nil {
		c.err = err
	}
}

// Reconnect closes the current transport (if any) and redials the same
// endpoint, clearing taint state and any buffered-but-unsent output. The
// Reader's own parse state is reset, since a fresh connection means a
// fresh byte stream with no relationship to whatever was mid-parse.
func (c *Conn) Reconnect() error {
	if c.transport != nil {
		_ = c.transport.Close()
	}
	conn, err := c.opts.Endpoint.dial(&c.opts)
	if err != nil {
		c.err = err
		return err
	}
	t := newNetTransport(conn, c.opts.Nonblock)
	if c.opts.Endpoint.kind == endpointTCP {
		_ = t.SetTCPNoDelay(true)
	}
	c.transport = t
	c.reader.Free()
	c.reader = NewReader()
	c.out.Reset()
	c.err = nil
	c.logf("reconnected to %s", endpointLabel(c.opts.Endpoint))
	return nil
}

// Close releases the Conn's transport and buffers. Close is itself
// idempotent-safe to call after a taint; it is the only other valid call
// besides Reconnect once err is set.
func (c *Conn) Close() error {
	c.err = ErrClosed
	var err error
	if c.transport != nil {
		err = c.transport.Close()
	}
	c.reader.Free()
	c.out.Put()
	return err
}
