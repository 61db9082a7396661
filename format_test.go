// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildCommand_Wire(t *testing.T) {
	got := BuildCommand([][]byte{[]byte("PING")})
	require.Equal(t, "*1\r\n$4\r\nPING\r\n", string(got))
}

func TestFormat_StringAndBinaryVerbs(t *testing.T) {
	got, err := Format("SET %s %b", "foo", []byte{0x00, 0xff})
	require.NoError(t, err)

	reply := mustParse(t, string(got))
	require.Len(t, reply.Elems, 3)
	require.Equal(t, "SET", string(reply.Elems[0].Str))
	require.Equal(t, "foo", string(reply.Elems[1].Str))
	require.Equal(t, []byte{0x00, 0xff}, reply.Elems[2].Str)
}

func TestFormat_GenericVerbAndLiteralPercent(t *testing.T) {
	got, err := Format("INCRBY counter %d %%done", 7)
	require.NoError(t, err)

	reply := mustParse(t, string(got))
	require.Len(t, reply.Elems, 4)
	require.Equal(t, "7", string(reply.Elems[2].Str))
	require.Equal(t, "%done", string(reply.Elems[3].Str))
}

func TestFormat_UnknownDirective(t *testing.T) {
	_, err := Format("GET %z", "x")
	require.ErrorIs(t, err, ErrFormat)
}

func TestFormat_TooFewArgs(t *testing.T) {
	_, err := Format("SET %s %s", "onlyone")
	require.Error(t, err)
}

func TestFormat_WrongArgType(t *testing.T) {
	_, err := Format("SET %s", 5)
	require.ErrorIs(t, err, ErrFormat)
}
