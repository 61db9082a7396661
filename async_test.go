// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resp

import (
	"testing"
	"time"

	"code.hybscloud.com/resp/internal/respio"
)

// fakeTransport is a Transport double driven entirely by the test: writes
// land in out, reads are served from whatever was queued onto in via
// pushIn. Read returns ErrWouldBlock on an empty queue rather than
// blocking, the same contract a real non-blocking socket gives Async.
type fakeTransport struct {
	in     [][]byte
	out    []byte
	closed bool
}

func (f *fakeTransport) pushIn(b []byte) { f.in = append(f.in, append([]byte(nil), b...)) }

func (f *fakeTransport) Read(p []byte) (int, error) {
	if len(f.in) == 0 {
		return 0, ErrWouldBlock
	}
	n := copy(p, f.in[0])
	if n == len(f.in[0]) {
		f.in = f.in[1:]
	} else {
		f.in[0] = f.in[0][n:]
	}
	return n, nil
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	f.out = append(f.out, p...)
	return len(p), nil
}

func (f *fakeTransport) WaitReadable(time.Time) error           { return nil }
func (f *fakeTransport) WaitWritable(time.Time) error           { return nil }
func (f *fakeTransport) ConnectCompletion() error               { return nil }
func (f *fakeTransport) SetBlocking(bool) error                 { return nil }
func (f *fakeTransport) SetTCPNoDelay(bool) error               { return nil }
func (f *fakeTransport) SetKeepAlive(bool, time.Duration) error { return nil }
func (f *fakeTransport) Close() error                           { f.closed = true; return nil }

// fakeAdapter records the interest-set transitions Async requests, without
// running any actual event loop; tests drive OnReadable/OnWritable/OnTimeout
// directly instead.
type fakeAdapter struct {
	reads, writes int
	cleanupCalls  int
}

func (a *fakeAdapter) AddRead()  { a.reads++ }
func (a *fakeAdapter) DelRead()  { a.reads-- }
func (a *fakeAdapter) AddWrite() { a.writes++ }
func (a *fakeAdapter) DelWrite() { a.writes-- }
func (a *fakeAdapter) Cleanup()  { a.cleanupCalls++ }

func newTestAsync(t *fakeTransport, ad *fakeAdapter) *Async {
	reader := NewReader()
	o := newOptions()
	return &Async{
		reader:    reader,
		transport: t,
		out:       respio.Get(),
		queue:     newQueue(&o, reader.Factories()),
		opts:      o,
		adapter:   ad,
		readBuf:   make([]byte, 4096),
		flags:     FlagConnected,
	}
}

func TestAsync_CommandWritesAndDispatchesReply(t *testing.T) {
	tr := &fakeTransport{}
	ad := &fakeAdapter{}
	a := newTestAsync(tr, ad)

	var got *Reply
	if err := a.Command(func(r *Reply) { got = r }, "PING"); err != nil {
		t.Fatalf("command: %v", err)
	}
	a.OnWritable()
	if string(tr.out) != "*1\r\n$4\r\nPING\r\n" {
		t.Fatalf("unexpected wire bytes: %q", tr.out)
	}

	tr.pushIn([]byte("+PONG\r\n"))
	a.OnReadable()
	if got == nil || got.Kind != KindStatus || string(got.Str) != "PONG" {
		t.Fatalf("got %+v", got)
	}
}

func TestAsync_CommandRefusedWhileDisconnecting(t *testing.T) {
	tr := &fakeTransport{}
	ad := &fakeAdapter{}
	a := newTestAsync(tr, ad)
	a.Disconnect()
	if err := a.Command(func(*Reply) {}, "PING"); err != ErrDisconnecting {
		t.Fatalf("want ErrDisconnecting, got %v", err)
	}
}

// Property 6 at the Async level: Free tears down and delivers Nil to every
// pending callback exactly once.
func TestAsync_FreeDrainsPendingWithNil(t *testing.T) {
	tr := &fakeTransport{}
	ad := &fakeAdapter{}
	a := newTestAsync(tr, ad)

	var calls int
	_ = a.Command(func(r *Reply) {
		calls++
		if r.Kind != KindNil {
			t.Fatalf("want Nil reply, got %+v", r)
		}
	}, "GET", "k")
	a.OnWritable()

	var disconnectErr error
	var sawDisconnect bool
	a.OnDisconnect(func(err error) { sawDisconnect = true; disconnectErr = err })

	a.Free()
	if calls != 1 {
		t.Fatalf("want 1 callback invoked, got %d", calls)
	}
	if !sawDisconnect || disconnectErr != nil {
		t.Fatalf("want a clean onDisconnect(nil), got sawDisconnect=%v err=%v", sawDisconnect, disconnectErr)
	}
	if !tr.closed {
		t.Fatalf("want transport closed")
	}
	if ad.cleanupCalls != 1 {
		t.Fatalf("want adapter.Cleanup called once, got %d", ad.cleanupCalls)
	}
}

// S7 — timeout.
func TestAsync_OnTimeoutSurfacesErrorAndTearsDown(t *testing.T) {
	tr := &fakeTransport{}
	ad := &fakeAdapter{}
	a := newTestAsync(tr, ad)
	a.opts.CommandTimeout = time.Millisecond

	var gotErr error
	var gotReply *Reply
	_ = a.Command(func(r *Reply) { gotReply = r }, "GET", "k")
	a.OnWritable()
	a.OnDisconnect(func(err error) { gotErr = err })

	a.OnTimeout()

	if gotReply == nil || gotReply.Kind != KindNil {
		t.Fatalf("want pending callback invoked with Nil, got %+v", gotReply)
	}
	if gotErr == nil {
		t.Fatalf("want onDisconnect called with a non-nil error")
	}
	if !a.torndown {
		t.Fatalf("want context torn down")
	}
}

func TestAsync_OnTimeoutIgnoredWhenQueueEmpty(t *testing.T) {
	tr := &fakeTransport{}
	ad := &fakeAdapter{}
	a := newTestAsync(tr, ad)
	a.opts.CommandTimeout = time.Millisecond

	a.OnTimeout()
	if a.torndown {
		t.Fatalf("want idle timeout to be ignored with an empty queue")
	}
}

func TestAsync_NonPubsubPushRoutesThroughPushCallback(t *testing.T) {
	tr := &fakeTransport{}
	ad := &fakeAdapter{}
	a := newTestAsync(tr, ad)

	var pushed *Reply
	a.OnPush(func(r *Reply) { pushed = r })

	tr.pushIn([]byte(">2\r\n$7\r\nmessage\r\n$2\r\nhi\r\n"))
	a.OnReadable()
	if pushed == nil || pushed.Kind != KindPush {
		t.Fatalf("want push delivered, got %+v", pushed)
	}
}
