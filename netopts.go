// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resp

import (
	"net"
	"syscall"
)

// endpointKind is a single source of truth mapping an endpoint family
// onto how it is dialed.
type endpointKind uint8

const (
	endpointTCP endpointKind = iota
	endpointUnix
	endpointFD
)

// Endpoint names the connection target. It is built by WithTCP, WithUnix
// or WithFD and installed on Options via Dial; it is never constructed
// directly by callers.
type Endpoint struct {
	kind endpointKind

	host       string
	port       string
	sourceAddr string

	path string

	fd uintptr
}

// WithTCP configures a TCP endpoint at host:port, optionally bound to a
// local source address.
func WithTCP(host, port string, sourceAddr ...string) Option {
	return func(o *Options) {
		ep := Endpoint{kind: endpointTCP, host: host, port: port}
		if len(sourceAddr) > 0 {
			ep.sourceAddr = sourceAddr[0]
		}
		o.Endpoint = ep
	}
}

// WithUnix configures a Unix domain socket endpoint at path.
func WithUnix(path string) Option {
	return func(o *Options) {
		o.Endpoint = Endpoint{kind: endpointUnix, path: path}
	}
}

// WithFD records an already-open file descriptor as the endpoint. The
// descriptor is not adopted: Dial, NewAsync and Reconnect reject an FD
// endpoint with an ErrKindOther error and leave the descriptor untouched.
func WithFD(fd uintptr) Option {
	return func(o *Options) {
		o.Endpoint = Endpoint{kind: endpointFD, fd: fd}
	}
}

// dial resolves ep into a net.Conn, honoring the connect timeout, source
// address and address-family preference carried on Options. FD endpoints
// are not dialable through the net package; adopting a raw descriptor
// requires a Transport built directly over it, left to the embedder since
// the core treats Transport as opaque.
func (ep Endpoint) dial(o *Options) (net.Conn, error) {
	switch ep.kind {
	case endpointTCP:
		network := "tcp"
		switch o.AddressPreference {
		case PreferIPv4:
			network = "tcp4"
		case PreferIPv6:
			network = "tcp6"
		}
		dialer := net.Dialer{Timeout: o.ConnectTimeout}
		if ep.sourceAddr != "" {
			local, err := net.ResolveTCPAddr(network, ep.sourceAddr)
			if err != nil {
				return nil, wrapError(ErrKindIO, "resolve source address", err)
			}
			dialer.LocalAddr = local
		}
		if o.ReuseAddr {
			dialer.Control = reuseAddrControl
		}
		conn, err := dialer.Dial(network, net.JoinHostPort(ep.host, ep.port))
		if err != nil {
			return nil, wrapError(ErrKindIO, "dial tcp", err)
		}
		return conn, nil
	case endpointUnix:
		dialer := net.Dialer{Timeout: o.ConnectTimeout}
		conn, err := dialer.Dial("unix", ep.path)
		if err != nil {
			return nil, wrapError(ErrKindIO, "dial unix", err)
		}
		return conn, nil
	default:
		return nil, newError(ErrKindOther, "endpoint.fd cannot be dialed; construct a Transport over it directly")
	}
}

// reuseAddrControl sets SO_REUSEADDR on the socket before bind/connect,
// for source-bound TCP connects that need to reuse a recently-closed
// local port.
func reuseAddrControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
