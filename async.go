// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resp

import (
	"time"

	"code.hybscloud.com/resp/internal/respio"
)

// Adapter is the embedder-supplied binding to a host event loop: add/remove
// read and write interest, and a cleanup hook run once at teardown. Async
// never blocks on its own; it only ever reacts to calls the embedder makes
// from its own loop.
type Adapter interface {
	AddRead()
	DelRead()
	AddWrite()
	DelWrite()
	Cleanup()
}

// TimerScheduler is the optional fifth adapter method. An Async that never
// calls ScheduleTimer simply never receives OnTimeout calls; the per-command
// timeout in that case is enforced by whatever timer discipline the
// embedder's own loop applies (or not at all).
type TimerScheduler interface {
	ScheduleTimer(d time.Duration)
}

// AsyncFlag is the observable flag set a context exposes.
type AsyncFlag uint32

const (
	FlagConnected AsyncFlag = 1 << iota
	FlagDisconnecting
	FlagFreeing
	FlagInCallback
	FlagSubscribed
	FlagMonitoring
	FlagSupportsPush
)

func (f AsyncFlag) has(bit AsyncFlag) bool { return f&bit != 0 }

// ConnectHandler is run once, with a nil error on a clean connect or a
// non-nil error if connect-completion failed.
type ConnectHandler func(err error)

// DisconnectHandler is run exactly once at teardown, with a nil error for a
// requested Disconnect or Free and a non-nil error for anything else
// (transport failure, protocol failure, timeout, failed connect).
type DisconnectHandler func(err error)

// Async is a single-threaded cooperative driver: a Reader, a Transport, an
// output buffer and a Request Queue, driven entirely by
// OnReadable/OnWritable/OnTimeout calls from the embedder's event loop —
// never by blocking I/O of its own. Each call makes whatever progress the
// currently available bytes allow and returns; if more is needed it relies
// on the adapter to call back in once the transport signals readiness
// again, rather than looping until some unit completes.
//
// Async is not safe for concurrent use; a multi-threaded embedder must
// hold its own mutex for the duration of each dispatch call.
type Async struct {
	reader    *Reader
	transport Transport
	out       *respio.Buffer
	queue     *queue

	opts    Options
	adapter Adapter
	timer   TimerScheduler

	flags AsyncFlag

	onConnect    ConnectHandler
	onDisconnect DisconnectHandler

	readBuf []byte

	lastErr  error
	torndown bool
}

// NewAsync dials opts.Endpoint in non-blocking mode and returns a driver
// ready to be wired to adapter. Since net.Dialer.Dial already blocks until
// TCP's three-way handshake completes or times out, there is no separate
// "connecting" phase to drive through the adapter the way a raw non-
// blocking connect(2) would need — connectCheck below still exists, for an
// embedder that builds an Async over a not-yet-connected WithFD transport.
func NewAsync(adapter Adapter, opts ...Option) (*Async, error) {
	o := newOptions(opts...)
	o.Nonblock = true
	conn, err := o.Endpoint.dial(&o)
	if err != nil {
		return nil, err
	}
	t := newNetTransport(conn, true)
	if o.Endpoint.kind == endpointTCP {
		_ = t.SetTCPNoDelay(true)
	}
	reader := NewReader()
	a := &Async{
		reader:    reader,
		transport: t,
		out:       respio.Get(),
		queue:     newQueue(&o, reader.Factories()),
		opts:      o,
		adapter:   adapter,
		readBuf:   make([]byte, 16*1024),
	}
	if ts, ok := adapter.(TimerScheduler); ok {
		a.timer = ts
	}
	return a, nil
}

// OnConnect installs the connect-completion callback.
func (a *Async) OnConnect(fn ConnectHandler) { a.onConnect = fn }

// OnDisconnect installs the teardown callback.
func (a *Async) OnDisconnect(fn DisconnectHandler) { a.onDisconnect = fn }

// OnPush installs the out-of-band push handler driven from the dispatch
// loop, equivalent to opts.AsyncPushCallback but settable after construction.
func (a *Async) OnPush(fn PushHandler) { a.queue.pushCB = fn }

// Flags reports the current observable flag set. SUBSCRIBED, MONITORING and
// SUPPORTS_PUSH are derived from the queue's own state rather than tracked
// redundantly on Async: there is no separate "monitor mode" flag to arm up
// front — MONITOR is submitted like any other command, and the callback
// passed to it becomes the monitor callback the moment its +OK ack lands.
func (a *Async) Flags() AsyncFlag {
	f := a.flags
	if a.queue.subscribed {
		f |= FlagSubscribed
	}
	if a.queue.monitoring {
		f |= FlagMonitoring
	}
	if a.queue.sawPush {
		f |= FlagSupportsPush
	}
	return f
}

// Err reports the last fatal error recorded against this context, if any.
func (a *Async) Err() error { return a.lastErr }

func (a *Async) taint(err error) {
	if a.lastErr == nil {
		a.lastErr = err
	}
}

// Command submits one command. fn is invoked once per expected reply (more
// than once for subscribe/unsubscribe/monitor-stream traffic).
// Submission is refused once Disconnect or Free has been requested.
func (a *Async) Command(fn callbackFn, template string, args ...any) error {
	if a.torndown || a.flags.has(FlagDisconnecting|FlagFreeing) {
		return ErrDisconnecting
	}
	argv, err := splitTemplate(template, args)
	if err != nil {
		return err
	}
	a.queue.submit(argv, fn)
	a.flushToOut()
	a.adapter.AddWrite()
	if a.timer != nil && a.opts.CommandTimeout > 0 {
		a.timer.ScheduleTimer(a.opts.CommandTimeout)
	}
	return nil
}

// flushToOut copies the bytes of the next request not yet copied into the
// output buffer, at most one request per call; a wait_write head whose
// bytes were already copied is first moved on to wait_read. The queue's own
// FIFO bookkeeping (to_write → wait_write → wait_read) tracks per-request
// progress; out just needs to contain, contiguously, whatever bytes have
// not yet been written to the transport.
func (a *Async) flushToOut() {
	for {
		r := a.queue.nextWrite()
		if r == nil {
			return
		}
		if len(r.buf) == 0 {
			a.queue.completeWrite()
			continue
		}
		_, _ = a.out.Write(r.buf)
		r.buf = nil
		return
	}
}

// connectCheck performs the getsockopt(SO_ERROR)-style completion check a
// non-blocking connect(2) needs, mapped onto Transport's ConnectCompletion.
// Because Dial already blocked until connect finished (or failed), this
// resolves synchronously the first time it is called.
func (a *Async) connectCheck() {
	if err := a.transport.ConnectCompletion(); err != nil {
		a.teardown(wrapError(ErrKindIO, "connect", err))
		if a.onConnect != nil {
			a.onConnect(a.lastErr)
		}
		return
	}
	a.flags |= FlagConnected
	if a.onConnect != nil {
		a.onConnect(nil)
	}
	a.adapter.AddRead()
}

// OnReadable is driven by the adapter when the transport becomes readable.
func (a *Async) OnReadable() {
	if a.torndown {
		return
	}
	if !a.flags.has(FlagConnected) {
		a.connectCheck()
		return
	}
	n, err := a.transport.Read(a.readBuf)
	if n > 0 {
		_ = a.reader.Feed(a.readBuf[:n])
		a.drainReplies()
	}
	if err != nil && !IsWouldBlock(err) {
		if isEOFErr(err) {
			a.teardown(wrapError(ErrKindEOF, "server closed the connection", err))
		} else {
			a.teardown(wrapError(ErrKindIO, "read", err))
		}
		return
	}
	if a.flags.has(FlagConnected) {
		a.adapter.AddRead()
	}
}

// drainReplies pulls every fully-parsed reply currently buffered and routes
// each one through the Request Queue, in strict wire order.
func (a *Async) drainReplies() {
	for {
		reply, err := a.reader.GetReply()
		if err != nil {
			if IsWouldBlock(err) {
				return
			}
			a.teardown(wrapError(ErrKindProtocol, "parse", err))
			return
		}
		a.flags |= FlagInCallback
		a.queue.route(reply)
		a.flags &^= FlagInCallback
		if a.flags.has(FlagFreeing) {
			a.teardown(nil)
			return
		}
		if a.maybeFinishDisconnect() {
			return
		}
	}
}

// OnWritable is driven by the adapter when the transport becomes writable.
func (a *Async) OnWritable() {
	if a.torndown {
		return
	}
	if !a.flags.has(FlagConnected) {
		a.connectCheck()
		return
	}
	for a.out.Len() > 0 {
		n, err := a.transport.Write(a.out.Bytes())
		if n > 0 {
			a.out.Discard(n)
		}
		if err != nil {
			if IsWouldBlock(err) {
				break
			}
			a.teardown(wrapError(ErrKindIO, "write", err))
			return
		}
	}
	if a.out.Len() == 0 {
		a.retireWritten()
		a.adapter.DelWrite()
	} else {
		a.adapter.AddWrite()
	}
	a.adapter.AddRead()
}

// retireWritten moves every request whose bytes are now fully on the wire
// from wait_write to wait_read. flushToOut only ever copies one request's
// bytes into out at a time (to keep "how many bytes of this request are
// still pending" unambiguous), so a fully-drained out means every request
// with bytes already copied in has been completely written.
func (a *Async) retireWritten() {
	for len(a.queue.waitWrite) > 0 {
		a.queue.completeWrite()
	}
	a.flushToOut()
	if a.out.Len() > 0 {
		a.adapter.AddWrite()
	}
}

// OnTimeout is driven by the adapter when a previously scheduled timer
// fires (only meaningful if the adapter implements TimerScheduler).
func (a *Async) OnTimeout() {
	if a.torndown || !a.flags.has(FlagConnected) {
		return
	}
	if len(a.queue.waitRead) == 0 {
		return
	}
	if a.opts.CommandTimeout <= 0 {
		return
	}
	a.teardown(newError(ErrKindTimeout, "command timeout"))
}

// Disconnect begins a graceful shutdown: no new commands are accepted, but
// replies already in flight are still drained. Teardown happens once the
// queue empties, or immediately if it already is.
func (a *Async) Disconnect() {
	a.flags |= FlagDisconnecting
	if a.flags.has(FlagInCallback) {
		return
	}
	if a.queueEmpty() {
		a.teardown(nil)
		return
	}
}

// Free requests immediate teardown, abandoning any in-flight replies (they
// are invoked with a Nil reply instead of their real answer).
func (a *Async) Free() {
	a.flags |= FlagFreeing
	if a.flags.has(FlagInCallback) {
		return
	}
	a.teardown(nil)
}

func (a *Async) queueEmpty() bool {
	return len(a.queue.toWrite) == 0 && len(a.queue.waitWrite) == 0 && len(a.queue.waitRead) == 0
}

// maybeFinishDisconnect implements the tail end of the graceful-disconnect
// protocol: once DISCONNECTING is set and the last reply has drained the
// queue, teardown runs.
func (a *Async) maybeFinishDisconnect() bool {
	if a.flags.has(FlagDisconnecting) && a.queueEmpty() {
		a.teardown(nil)
		return true
	}
	return false
}

// teardown runs at most once: it drains every pending callback with a Nil
// reply, releases the transport, and calls onDisconnect. err nil means a
// clean (requested) disconnect; non-nil means a dirty one (I/O failure,
// protocol failure, timeout, or failed connect).
func (a *Async) teardown(err error) {
	if a.torndown {
		return
	}
	a.torndown = true
	if err != nil {
		a.taint(err)
	}
	a.queue.drainAll()
	a.flags &^= FlagConnected | FlagSubscribed
	if a.transport != nil {
		_ = a.transport.Close()
		a.transport = nil
	}
	a.reader.Free()
	a.out.Put()
	if a.adapter != nil {
		a.adapter.Cleanup()
	}
	if a.onDisconnect != nil {
		a.onDisconnect(err)
	}
}
