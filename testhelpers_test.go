// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resp

import (
	"bytes"
	"testing"
)

// mustParse decodes exactly one reply from wire, fed in a single Feed
// call, and fails the test on any error (including ErrWouldBlock, since
// wire is expected to be a complete reply).
func mustParse(t *testing.T, wire string) *Reply {
	t.Helper()
	rd := NewReader()
	defer rd.Free()
	if err := rd.Feed([]byte(wire)); err != nil {
		t.Fatalf("feed: %v", err)
	}
	reply, err := rd.GetReply()
	if err != nil {
		t.Fatalf("get reply for %q: %v", wire, err)
	}
	return reply
}

// feedIncremental feeds chunks one at a time, draining every reply that
// becomes available after each Feed, the way a real caller pulls replies
// as bytes arrive off a socket. It fails the test on any error that is
// not ErrWouldBlock.
func feedIncremental(t *testing.T, rd *Reader, chunks ...[]byte) []*Reply {
	t.Helper()
	var got []*Reply
	for _, c := range chunks {
		if err := rd.Feed(c); err != nil {
			t.Fatalf("feed %q: %v", c, err)
		}
		for {
			reply, err := rd.GetReply()
			if err != nil {
				if IsWouldBlock(err) {
					break
				}
				t.Fatalf("get reply: %v", err)
			}
			got = append(got, reply)
		}
	}
	return got
}

// parseAtSplits feeds wire as len(splits)+1 chunks, cut at the given
// offsets, and returns the single reply it expects to complete exactly
// once all chunks have been fed.
func parseAtSplits(t *testing.T, wire []byte, splits ...int) *Reply {
	t.Helper()
	rd := NewReader()
	defer rd.Free()
	prev := 0
	var last *Reply
	bounds := append(append([]int{}, splits...), len(wire))
	for _, b := range bounds {
		if err := rd.Feed(wire[prev:b]); err != nil {
			t.Fatalf("feed: %v", err)
		}
		prev = b
		for {
			reply, err := rd.GetReply()
			if err != nil {
				if IsWouldBlock(err) {
					break
				}
				t.Fatalf("get reply: %v", err)
			}
			last = reply
		}
	}
	if last == nil {
		t.Fatalf("no reply produced for splits %v", splits)
	}
	return last
}

// replyEqual performs a deep structural comparison, including the
// unexported nilAggregate bit, since it distinguishes an empty aggregate
// from a nil one and tests need to assert on that directly.
func replyEqual(a, b *Reply) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || a.Integer != b.Integer || a.Double != b.Double ||
		a.DoubleText != b.DoubleText || a.Bool != b.Bool ||
		a.VerbatimFormat != b.VerbatimFormat || a.nilAggregate != b.nilAggregate {
		return false
	}
	if !bytes.Equal(a.Str, b.Str) {
		return false
	}
	if len(a.Elems) != len(b.Elems) {
		return false
	}
	for i := range a.Elems {
		if !replyEqual(a.Elems[i], b.Elems[i]) {
			return false
		}
	}
	return replyEqual(a.Attr, b.Attr)
}
