// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resp

import "code.hybscloud.com/resp/internal/respio"

const (
	// DefaultMaxBuf bounds a single bulk/verbatim payload and the total
	// amount of buffered-but-unparsed input. It is generous enough for
	// any reasonable reply and small enough that a misbehaving peer
	// cannot force unbounded growth.
	DefaultMaxBuf = 512 * 1024 * 1024
	// DefaultMaxElements bounds a single aggregate's declared length.
	DefaultMaxElements = 1 << 20
)

// Reader incrementally decodes RESP replies from an arbitrarily chunked
// byte stream. It never performs I/O itself: callers push bytes in via
// Feed as they arrive from a Transport (or anything else) and pull
// decoded replies out via GetReply, which returns ErrWouldBlock rather
// than blocking when the buffered bytes do not yet hold a complete
// reply. A Reader is not safe for concurrent use.
type Reader struct {
	factories *Factories

	buf *respio.Buffer
	pos int

	// MaxBuf bounds the size of a single bulk/verbatim payload and total
	// buffered input, in bytes. Zero disables the check.
	MaxBuf int
	// MaxElements bounds a single aggregate's declared length. Zero
	// disables the check.
	MaxElements int

	frames [maxDepth + 1]parseFrame
	depth  int

	err *Error
}

// NewReader returns a Reader using the default owned-tree Factories and
// default buffer/element limits.
func NewReader() *Reader {
	return &Reader{
		factories:   DefaultFactories(),
		buf:         respio.Get(),
		MaxBuf:      DefaultMaxBuf,
		MaxElements: DefaultMaxElements,
	}
}

// SetFactories installs a replacement Factories, for example a pooling or
// sentinel-returning implementation used by tests. A nil f restores
// DefaultFactories. It is only safe to call between replies, never while
// a GetReply is suspended mid-aggregate.
func (rd *Reader) SetFactories(f *Factories) {
	if f == nil {
		f = DefaultFactories()
	}
	rd.factories = f
}

// Factories returns the Factories currently installed on rd, so a caller
// freeing replies produced by rd can route that release through the same
// capability set that built them.
func (rd *Reader) Factories() *Factories {
	return rd.factories
}

// Feed appends p to the Reader's internal buffer. p is copied; the
// Reader never retains a reference to the caller's slice.
func (rd *Reader) Feed(p []byte) error {
	if rd.err != nil {
		return rd.err
	}
	if len(p) == 0 {
		return nil
	}
	if rd.MaxBuf > 0 && rd.buf.Len()+len(p) > rd.MaxBuf {
		rd.err = newError(ErrKindProtocol, "input exceeds max_buf")
		return rd.err
	}
	_, _ = rd.buf.Write(p)
	return nil
}

// GetReply attempts to decode the next complete reply from previously fed
// bytes. It returns ErrWouldBlock (never wrapped, always comparable with
// IsWouldBlock) when no complete reply is yet buffered; callers should
// Feed more bytes and call again. Once GetReply returns a protocol error,
// the Reader is poisoned and every subsequent call returns the same
// error: RESP has no framing that allows safely resuming after a
// corrupted byte stream.
func (rd *Reader) GetReply() (*Reply, error) {
	if rd.err != nil {
		return nil, rd.err
	}
	reply, done, err := rd.step()
	rd.compact()
	if err != nil {
		rd.err = err
		// Release the partially built aggregates still on the parse stack.
		for rd.depth > 0 {
			f := rd.pop()
			f.node.Free(rd.factories)
			f.attrPending.Free(rd.factories)
		}
		return nil, err
	}
	if !done {
		return nil, ErrWouldBlock
	}
	return reply, nil
}

// compact drops the prefix of the internal buffer already consumed by
// the parser. It is safe to call at any point, including mid-aggregate:
// rd.pos only ever advances over bytes that have been fully folded into
// the parse stack or a completed Reply, never past a unit still pending
// more input.
func (rd *Reader) compact() {
	if rd.pos == 0 {
		return
	}
	rd.buf.Discard(rd.pos)
	rd.pos = 0
}

// Buffered reports how many bytes are held but not yet consumed by a
// completed or in-progress reply.
func (rd *Reader) Buffered() int {
	return rd.buf.Len() - rd.pos
}

// Free returns the Reader's internal buffer to the pool. The Reader must
// not be used afterward.
func (rd *Reader) Free() {
	if rd.buf != nil {
		rd.buf.Put()
		rd.buf = nil
	}
}
