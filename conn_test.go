// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resp

import (
	"net"
	"testing"
	"time"

	"code.hybscloud.com/resp/internal/respio"
)

func newTestConn(server net.Conn) *Conn {
	return &Conn{
		reader:    NewReader(),
		transport: newNetTransport(server, false),
		out:       respio.Get(),
		opts:      newOptions(),
		timeout:   time.Second,
	}
}

func TestConn_CommandRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	c := newTestConn(client)
	defer c.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 64)
		n, _ := server.Read(buf)
		if string(buf[:n]) != "*1\r\n$4\r\nPING\r\n" {
			t.Errorf("unexpected wire bytes: %q", buf[:n])
		}
		_, _ = server.Write([]byte("+PONG\r\n"))
	}()

	reply, err := c.Command("PING")
	if err != nil {
		t.Fatalf("command: %v", err)
	}
	if reply.Kind != KindStatus || string(reply.Str) != "PONG" {
		t.Fatalf("got %+v", reply)
	}
	<-done
}

func TestConn_PushRepliesSkippedTransparently(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	c := newTestConn(client)
	defer c.Close()

	var pushed *Reply
	c.opts.PushCallback = func(r *Reply) { pushed = r }

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 64)
		_, _ = server.Read(buf)
		_, _ = server.Write([]byte(">2\r\n$7\r\nmessage\r\n$2\r\nhi\r\n+OK\r\n"))
	}()

	reply, err := c.Command("GET k")
	if err != nil {
		t.Fatalf("command: %v", err)
	}
	if reply.Kind != KindStatus || string(reply.Str) != "OK" {
		t.Fatalf("got %+v", reply)
	}
	if pushed == nil || pushed.Kind != KindPush {
		t.Fatalf("want push delivered via PushCallback, got %+v", pushed)
	}
	<-done
}

func TestConn_ErrorReplyIsNotAGoError(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	c := newTestConn(client)
	defer c.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 64)
		_, _ = server.Read(buf)
		_, _ = server.Write([]byte("-ERR unknown command\r\n"))
	}()

	reply, err := c.Command("BOGUS")
	if err != nil {
		t.Fatalf("a server-reported error must not be a Go error: %v", err)
	}
	if reply.Kind != KindError || string(reply.Str) != "ERR unknown command" {
		t.Fatalf("got %+v", reply)
	}
	<-done
}

func TestConn_TaintAfterTransportError(t *testing.T) {
	client, server := net.Pipe()
	c := newTestConn(client)
	_ = server.Close()

	if _, err := c.Command("PING"); err == nil {
		t.Fatalf("want an error once the peer has gone away")
	}
	if _, err := c.Command("PING"); err == nil {
		t.Fatalf("want the taint to stick across calls")
	}
}
