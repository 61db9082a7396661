// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package resp implements a client for the RESP2/RESP3 wire protocol used
// by Redis-family in-memory data stores.
//
// Three collaborators cover the protocol end to end:
//
//   - Reader incrementally decodes replies from an arbitrarily chunked byte
//     stream, never blocking and never assuming a reply arrives whole in one
//     Feed call.
//   - Conn pairs a Reader with a blocking Transport for simple
//     request/reply and pipelined use.
//   - Async drives the same protocol state machine non-blocking, behind a
//     small adapter interface (read/write interest plus a cleanup hook) so
//     it can be wired into any single-threaded cooperative event loop.
//
// Command results that are themselves server-reported errors (RESP Error
// replies) are not Go errors — they are ordinary successful round trips
// whose Reply.Kind is KindError. A non-nil error return means the
// round trip itself failed: I/O, protocol framing, or a timeout.
package resp
