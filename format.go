// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resp

import (
	"fmt"
	"strconv"
)

// BuildCommand encodes argv as a RESP array of bulk strings:
// "*N\r\n" followed by "$len\r\n<bytes>\r\n" for each argument. It is the
// explicit-array form of the wire protocol; every argument is taken
// verbatim, binary safe, with no template parsing.
func BuildCommand(argv [][]byte) []byte {
	size := headerSize(len(argv))
	for _, a := range argv {
		size += headerSize(len(a)) + len(a) + 2
	}
	out := make([]byte, 0, size)
	out = appendHeader(out, '*', len(argv))
	for _, a := range argv {
		out = appendHeader(out, '$', len(a))
		out = append(out, a...)
		out = append(out, '\r', '\n')
	}
	return out
}

func headerSize(n int) int {
	return 1 + len(strconv.Itoa(n)) + 2
}

func appendHeader(dst []byte, tag byte, n int) []byte {
	dst = append(dst, tag)
	dst = strconv.AppendInt(dst, int64(n), 10)
	return append(dst, '\r', '\n')
}

// Format builds one command from a printf-style template, mirroring the
// wire-level argument splitting the corpus's own Redis clients use when
// building commands from a scratch buffer rather than a slice literal:
// whitespace in template separates arguments, %s consumes the next args
// entry as a string, %b consumes it as binary-safe bytes ([]byte), %%
// emits a literal percent, and any other %-directive (%d, %f, ...) is
// applied to the next args entry via fmt.Sprintf and the resulting text
// becomes that argument. Unknown directives with no matching Go verb
// return ErrFormat.
func Format(template string, args ...any) ([]byte, error) {
	argv, err := splitTemplate(template, args)
	if err != nil {
		return nil, err
	}
	return BuildCommand(argv), nil
}

func splitTemplate(template string, args []any) ([][]byte, error) {
	var argv [][]byte
	var cur []byte
	ai := 0

	nextArg := func() (any, error) {
		if ai >= len(args) {
			return nil, wrapError(ErrKindOther, "format: too few arguments", ErrFormat)
		}
		v := args[ai]
		ai++
		return v, nil
	}
	flush := func() {
		if len(cur) > 0 {
			argv = append(argv, cur)
			cur = nil
		}
	}

	i := 0
	for i < len(template) {
		c := template[i]
		switch {
		case c == ' ' || c == '\t':
			flush()
			i++
		case c == '%':
			if i+1 >= len(template) {
				return nil, ErrFormat
			}
			directive := template[i+1]
			switch directive {
			case '%':
				cur = append(cur, '%')
			case 's':
				v, err := nextArg()
				if err != nil {
					return nil, err
				}
				s, ok := v.(string)
				if !ok {
					return nil, ErrFormat
				}
				cur = append(cur, s...)
			case 'b':
				v, err := nextArg()
				if err != nil {
					return nil, err
				}
				b, ok := v.([]byte)
				if !ok {
					return nil, ErrFormat
				}
				cur = append(cur, b...)
			case 'd', 'x', 'X', 'o', 'f', 'g', 'e', 'v', 'q', 'c', 't':
				v, err := nextArg()
				if err != nil {
					return nil, err
				}
				cur = append(cur, fmt.Sprintf("%"+string(directive), v)...)
			default:
				return nil, ErrFormat
			}
			i += 2
		default:
			cur = append(cur, c)
			i++
		}
	}
	flush()
	return argv, nil
}
