// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resp

// Kind discriminates the variant a Reply holds. The wire byte that produced
// it is listed alongside each constant; see the Reader for the full framing
// table.
type Kind uint8

const (
	KindError Kind = iota + 1 // '-'
	KindStatus                // '+'
	KindInteger                // ':'
	KindNil                    // '_' or a -1 length bulk string
	KindString                 // '$'
	KindArray                  // '*'
	KindMap                    // '%'
	KindSet                    // '~'
	KindAttr                   // '|'
	KindPush                   // '>'
	KindDouble                 // ','
	KindBool                   // '#'
	KindBigNumber              // '('
	KindVerbatim               // '='
)

func (k Kind) String() string {
	switch k {
	case KindError:
		return "error"
	case KindStatus:
		return "status"
	case KindInteger:
		return "integer"
	case KindNil:
		return "nil"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindSet:
		return "set"
	case KindAttr:
		return "attr"
	case KindPush:
		return "push"
	case KindDouble:
		return "double"
	case KindBool:
		return "bool"
	case KindBigNumber:
		return "bignum"
	case KindVerbatim:
		return "verbatim"
	default:
		return "unknown"
	}
}

// Reply is a decoded RESP reply. It is a tree: Elems holds the ordered
// children of an aggregate (Array/Map/Set/Push/Attr — Map and Attr carry an
// even number of children, adjacent key/value pairs). A Reply is immutable
// once returned by Reader.GetReply; nothing outside the reader retains a
// pointer back to a parent, so there is no cycle to worry about freeing.
type Reply struct {
	Kind Kind

	// Integer holds the value for KindInteger.
	Integer int64

	// Double holds the parsed value for KindDouble; DoubleText preserves the
	// original wire rendering for lossless round-trip (including "inf",
	// "-inf", "nan" in whatever case the server sent).
	Double     float64
	DoubleText string

	// Bool holds the value for KindBool.
	Bool bool

	// Str holds the raw bytes for KindString, KindStatus, KindError and
	// KindBigNumber. It is not guaranteed to be valid UTF-8.
	Str []byte

	// VerbatimFormat holds the 3-byte format tag for KindVerbatim (e.g.
	// "txt" or "mkd"); Str holds the payload that followed the tag and ':'.
	VerbatimFormat [3]byte

	// Elems holds ordered children for KindArray, KindMap, KindSet,
	// KindPush and KindAttr. A nil Elems with Kind == KindArray represents a
	// RESP nil-array (distinct from KindNil).
	Elems []*Reply

	// Attr holds attribute metadata parsed from a preceding '|' reply, if
	// any attached to this one: attributes bind to the next reply rather
	// than surfacing as a second top-level value.
	Attr *Reply

	// nilAggregate distinguishes a -1-length Array/Map/Set/Push (nil
	// aggregate) from a zero-length one; both have len(Elems) == 0.
	nilAggregate bool
}

// IsNilArray reports whether r is an Array/Map/Set/Push whose length was
// encoded as -1 on the wire.
func (r *Reply) IsNilArray() bool {
	return r != nil && (r.Kind == KindArray || r.Kind == KindMap || r.Kind == KindSet || r.Kind == KindPush) && r.Elems == nil && r.nilAggregate
}

// Free releases r and, transitively, every reply in Elems and Attr. It is a
// no-op convenience for the default garbage-collected factory; it matters
// for a pooling Factories implementation, where FreeObject actually returns
// memory to a pool.
func (r *Reply) Free(factories *Factories) {
	if r == nil {
		return
	}
	for _, c := range r.Elems {
		c.Free(factories)
	}
	if r.Attr != nil {
		r.Attr.Free(factories)
	}
	if factories != nil && factories.FreeObject != nil {
		factories.FreeObject(r)
	}
}

// Factories is the pluggable capability set a Reader uses to build replies.
// The zero value is not directly usable; call DefaultFactories to obtain the
// tree-building implementation, or supply a test-mode factory (e.g. one
// that returns a shared sentinel *Reply per Kind) to verify parser offsets
// without allocating a tree.
//
// Every Make* function may return nil to signal allocation failure or
// rejection; the Reader treats a nil return as ErrKindOutOfMemory and
// unwinds any partially built siblings via FreeObject.
type Factories struct {
	MakeString    func(kind Kind, b []byte) *Reply
	MakeArray     func(kind Kind, n int) *Reply
	MakeInteger   func(v int64) *Reply
	MakeNil       func() *Reply
	MakeBool      func(v bool) *Reply
	MakeDouble    func(v float64, text string) *Reply
	MakeBigNumber func(b []byte) *Reply
	MakeVerbatim  func(format [3]byte, b []byte) *Reply
	FreeObject    func(r *Reply)
}

// DefaultFactories returns the owned-tree Factories implementation used
// unless a caller installs its own via Reader.SetFactories.
func DefaultFactories() *Factories {
	return &Factories{
		MakeString: func(kind Kind, b []byte) *Reply {
			cp := make([]byte, len(b))
			copy(cp, b)
			return &Reply{Kind: kind, Str: cp}
		},
		MakeArray: func(kind Kind, n int) *Reply {
			if n < 0 {
				return &Reply{Kind: kind, nilAggregate: true}
			}
			return &Reply{Kind: kind, Elems: make([]*Reply, 0, n)}
		},
		MakeInteger: func(v int64) *Reply {
			return &Reply{Kind: KindInteger, Integer: v}
		},
		MakeNil: func() *Reply {
			return &Reply{Kind: KindNil}
		},
		MakeBool: func(v bool) *Reply {
			return &Reply{Kind: KindBool, Bool: v}
		},
		MakeDouble: func(v float64, text string) *Reply {
			return &Reply{Kind: KindDouble, Double: v, DoubleText: text}
		},
		MakeBigNumber: func(b []byte) *Reply {
			cp := make([]byte, len(b))
			copy(cp, b)
			return &Reply{Kind: KindBigNumber, Str: cp}
		},
		MakeVerbatim: func(format [3]byte, b []byte) *Reply {
			cp := make([]byte, len(b))
			copy(cp, b)
			return &Reply{Kind: KindVerbatim, VerbatimFormat: format, Str: cp}
		},
		FreeObject: func(*Reply) {},
	}
}
