// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resp

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AddressPreference controls which address family a TCP endpoint resolves
// to first when the host has both A and AAAA records.
type AddressPreference uint8

const (
	// PreferIPv4 dials over tcp4 only; IPv6 addresses are not tried.
	PreferIPv4 AddressPreference = iota
	// PreferIPv6 dials over tcp6 only; IPv4 addresses are not tried.
	PreferIPv6
	// IPv6ThenIPv4 is the dual-stack default: try tcp6, fall back to tcp4.
	IPv6ThenIPv4
)

// PushHandler receives a Push reply that did not match the pubsub grammar
// (see pubsub.go). Ownership of the reply transfers to the handler;
// NoPushAutoFree only affects push replies that arrive with no handler
// installed.
type PushHandler func(reply *Reply)

// Options configures Dial/NewAsync. It is built with functional options,
// one With... helper per concern: connection lifecycle and transport
// behavior.
type Options struct {
	// Endpoint is set by WithTCP, WithUnix or WithFD.
	Endpoint Endpoint

	// ConnectTimeout bounds how long Dial waits for the transport to
	// connect. Zero means no deadline.
	ConnectTimeout time.Duration
	// CommandTimeout is the default per-command deadline applied to
	// commands submitted through Async when none is set explicitly.
	// Zero means no timeout.
	CommandTimeout time.Duration

	// Nonblock puts the transport in non-blocking mode; required for
	// Async, optional (and rarely useful) for Conn.
	Nonblock bool
	// ReuseAddr sets SO_REUSEADDR before a source-bound TCP connect.
	ReuseAddr bool

	// NoAutoFree is recorded on Options but not consulted by Async: a dirty
	// disconnect always runs the full teardown (transport closed, reader
	// and output buffer released).
	NoAutoFree bool
	// NoAutoFreeReplies makes the caller responsible for freeing reply
	// trees handed to callbacks, instead of Conn/Async auto-freeing them
	// once a callback returns.
	NoAutoFreeReplies bool
	// NoPushAutoFree keeps an unhandled push reply (no PushCallback
	// installed) alive instead of freeing it immediately.
	NoPushAutoFree bool

	// AddressPreference selects which address family a bare WithTCP host
	// resolves to first.
	AddressPreference AddressPreference

	// PushCallback receives out-of-band Push replies on the synchronous
	// Conn path. AsyncPushCallback is the Async-path equivalent; Async
	// wires it into the adapter's dispatch loop instead of calling it
	// inline from GetReply.
	PushCallback      PushHandler
	AsyncPushCallback PushHandler

	// Logger receives connection lifecycle events (connect, disconnect,
	// reconnect, timeout) when non-nil. The core never logs anything on
	// its own behalf when Logger is nil — logging is strictly opt-in.
	Logger *logrus.Logger
}

// Option mutates an Options value during Dial/NewAsync construction.
type Option func(*Options)

var defaultOptions = Options{
	AddressPreference: IPv6ThenIPv4,
}

func newOptions(opts ...Option) Options {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// WithConnectTimeout bounds how long Dial waits to establish the
// connection.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) { o.ConnectTimeout = d }
}

// WithCommandTimeout sets the default per-command timeout applied by
// Async when a command is submitted without its own deadline.
func WithCommandTimeout(d time.Duration) Option {
	return func(o *Options) { o.CommandTimeout = d }
}

// WithNonblock puts the transport in non-blocking mode. Async requires
// this; Conn accepts it but gains nothing from it since Conn always
// drives the transport through WaitReadable/WaitWritable deadlines.
func WithNonblock() Option {
	return func(o *Options) { o.Nonblock = true }
}

// WithReuseAddr sets SO_REUSEADDR before a source-bound TCP connect.
func WithReuseAddr() Option {
	return func(o *Options) { o.ReuseAddr = true }
}

// WithNoAutoFree sets Options.NoAutoFree. Async does not consult it; a
// dirty disconnect still runs the full teardown.
func WithNoAutoFree() Option {
	return func(o *Options) { o.NoAutoFree = true }
}

// WithNoAutoFreeReplies makes callers responsible for freeing reply trees
// handed to callbacks.
func WithNoAutoFreeReplies() Option {
	return func(o *Options) { o.NoAutoFreeReplies = true }
}

// WithNoPushAutoFree keeps an unhandled push reply alive instead of
// freeing it immediately.
func WithNoPushAutoFree() Option {
	return func(o *Options) { o.NoPushAutoFree = true }
}

// WithAddressPreference selects which address family a bare TCP host
// resolves to first.
func WithAddressPreference(pref AddressPreference) Option {
	return func(o *Options) { o.AddressPreference = pref }
}

// WithPushCallback installs the synchronous out-of-band push handler.
func WithPushCallback(fn PushHandler) Option {
	return func(o *Options) { o.PushCallback = fn }
}

// WithAsyncPushCallback installs the Async out-of-band push handler.
func WithAsyncPushCallback(fn PushHandler) Option {
	return func(o *Options) { o.AsyncPushCallback = fn }
}

// WithLogger installs a logger for connection lifecycle events. A nil
// logger (the default) disables logging entirely.
func WithLogger(l *logrus.Logger) Option {
	return func(o *Options) { o.Logger = l }
}
