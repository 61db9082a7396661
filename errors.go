// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resp

import (
	"code.hybscloud.com/iox"
	pkgerrors "github.com/pkg/errors"
)

// ErrorKind is the closed set of failure categories a command call or a
// parse can surface. It never varies with the server's own command
// semantics: an Error-kind Reply (see Kind) is a successful round-trip, not
// one of these.
type ErrorKind uint8

const (
	// ErrKindIO covers failures from the underlying Transport.
	ErrKindIO ErrorKind = iota + 1
	// ErrKindEOF means the server closed the connection.
	ErrKindEOF
	// ErrKindProtocol means the byte stream violated RESP framing.
	ErrKindProtocol
	// ErrKindTimeout means a per-connect or per-command deadline elapsed.
	ErrKindTimeout
	// ErrKindOutOfMemory means a factory or buffer growth failed to allocate.
	ErrKindOutOfMemory
	// ErrKindOther covers everything else (bad arguments, misuse, closed context).
	ErrKindOther
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindIO:
		return "io"
	case ErrKindEOF:
		return "eof"
	case ErrKindProtocol:
		return "protocol"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindOutOfMemory:
		return "oom"
	case ErrKindOther:
		return "other"
	default:
		return "unknown"
	}
}

// Error is the library's error type. Its Kind is always one of the
// ErrorKind constants above; Msg is a short, bounded diagnostic.
type Error struct {
	Kind  ErrorKind
	Msg   string
	cause error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Msg
}

// Unwrap exposes the wrapped cause, if any, so callers can errors.Is/As
// through to a transport-level error.
func (e *Error) Unwrap() error { return e.cause }

// newError builds an *Error with no wrapped cause.
func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// wrapError attaches a short diagnostic to cause while keeping Kind
// comparable and Unwrap intact: a message is prefixed, the original error
// survives underneath for inspection via Unwrap.
func wrapError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, cause: pkgerrors.Wrap(cause, msg)}
}

// IsWouldBlock reports whether err is the non-blocking "try again later"
// control-flow signal. It is never a failure and is never wrapped as an
// *Error.
func IsWouldBlock(err error) bool {
	return err == iox.ErrWouldBlock || err == iox.ErrMore
}

var (
	// ErrWouldBlock means "no further progress without waiting". Re-exported
	// so callers need not import code.hybscloud.com/iox directly.
	ErrWouldBlock = iox.ErrWouldBlock
	// ErrMore means the transport has produced a usable partial completion
	// and more will follow from the same ongoing operation.
	ErrMore = iox.ErrMore

	// ErrClosed is returned by Conn operations after Close.
	ErrClosed = newError(ErrKindOther, "context is closed")
	// ErrDisconnecting is returned by Async command submission once
	// Disconnect or Free has been requested.
	ErrDisconnecting = newError(ErrKindOther, "connection is disconnecting")
	// ErrFormat is returned by Format on an unrecognized template directive.
	ErrFormat = newError(ErrKindOther, "unknown format directive")
)
