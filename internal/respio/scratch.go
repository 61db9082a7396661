// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package respio provides the pooled, growable scratch buffers shared by the
// Reader and Conn output path. It is a thin adapter over bytebufferpool so
// the rest of the module never touches the pool directly.
package respio

import "github.com/valyala/bytebufferpool"

// Buffer is a pooled byte buffer that grows by appending and shrinks from
// the front by discarding already-consumed bytes. It is not safe for
// concurrent use; callers serialize access to each instance themselves.
type Buffer struct {
	bb *bytebufferpool.ByteBuffer
}

// Get returns a Buffer backed by a pooled bytebufferpool.ByteBuffer.
func Get() *Buffer {
	return &Buffer{bb: bytebufferpool.Get()}
}

// Put returns the backing buffer to the pool. The Buffer must not be used
// afterward.
func (b *Buffer) Put() {
	if b == nil || b.bb == nil {
		return
	}
	bytebufferpool.Put(b.bb)
	b.bb = nil
}

// Bytes returns the buffer's current contents. The slice is only valid
// until the next Write, Discard, or Reset call.
func (b *Buffer) Bytes() []byte {
	if b.bb == nil {
		return nil
	}
	return b.bb.B
}

// Len reports the number of unconsumed bytes currently held.
func (b *Buffer) Len() int {
	if b.bb == nil {
		return 0
	}
	return len(b.bb.B)
}

// Write appends p to the buffer. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	return b.bb.Write(p)
}

// Discard drops the first n bytes, shifting the remainder to the front.
// It panics if n is out of range, matching the bytebufferpool convention
// of trusting the caller on bounds it already validated.
func (b *Buffer) Discard(n int) {
	if n <= 0 {
		return
	}
	rest := b.bb.B[n:]
	copy(b.bb.B[:len(rest)], rest)
	b.bb.B = b.bb.B[:len(rest)]
}

// Reset empties the buffer in place without releasing it to the pool.
func (b *Buffer) Reset() {
	b.bb.Reset()
}
