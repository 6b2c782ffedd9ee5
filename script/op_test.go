package script

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpEncodeDecode(t *testing.T) {
	data75 := bytes.Repeat([]byte{0x01}, 75)
	data76 := bytes.Repeat([]byte{0x02}, 76)
	data256 := bytes.Repeat([]byte{0x03}, 256)

	tests := []struct {
		name    string
		op      Op
		encoded []byte
	}{
		{"OP_0", NewOp(OP_0), []byte{0x00}},
		{"OP_FALSE", NewOp(OP_FALSE), []byte{0x00}},
		{"OP_TRUE", NewOp(OP_TRUE), []byte{0x51}},
		{"OP_16", NewOp(OP_16), []byte{0x60}},
		{"push 1", NewPushOp([]byte{0xaa}), []byte{0x01, 0xaa}},
		{"push 75", NewPushOp(data75), append([]byte{0x4b}, data75...)},
		{"pushdata1", NewPushOp(data76), append([]byte{0x4c, 76}, data76...)},
		{"pushdata2", NewPushOp(data256), append([]byte{0x4d, 0x00, 0x01}, data256...)},
		{"non-minimal pushdata1", Op{Code: OP_PUSHDATA1, Data: []byte{0x07}}, []byte{0x4c, 0x01, 0x07}},
		{"empty pushdata4", Op{Code: OP_PUSHDATA4}, []byte{0x4e, 0, 0, 0, 0}},
		{"OP_CHECKSIG", NewOp(OP_CHECKSIG), []byte{0xac}},
		{"OP_CHECKSEQUENCEVERIFY", NewOp(OP_CHECKSEQUENCEVERIFY), []byte{0xb2}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			b, err := test.op.Bytes()
			require.NoError(t, err)
			require.Equal(t, test.encoded, b)
			require.Equal(t, len(test.encoded), test.op.EncodedSize())

			decoded, n, err := DecodeOp(b)
			require.NoError(t, err)
			require.Equal(t, len(b), n)
			require.True(t, test.op.AliasEqual(decoded), "decoded %v", decoded)
		})
	}
}

func TestNewPushOpShortestForm(t *testing.T) {
	require.Equal(t, OP_0, NewPushOp(nil).Code)
	require.Equal(t, OP_PUSH, NewPushOp(make([]byte, 1)).Code)
	require.Equal(t, OP_PUSH, NewPushOp(make([]byte, 75)).Code)
	require.Equal(t, OP_PUSHDATA1, NewPushOp(make([]byte, 76)).Code)
	require.Equal(t, OP_PUSHDATA1, NewPushOp(make([]byte, 255)).Code)
	require.Equal(t, OP_PUSHDATA2, NewPushOp(make([]byte, 256)).Code)
	require.Equal(t, OP_PUSHDATA2, NewPushOp(make([]byte, 65535)).Code)
	require.Equal(t, OP_PUSHDATA4, NewPushOp(make([]byte, 65536)).Code)
}

func TestOpEncodeErrors(t *testing.T) {
	_, err := Op{Code: OP_PUSH}.Bytes()
	require.True(t, IsErrorCode(err, ErrInvalidPushSize))

	_, err = Op{Code: OP_PUSH, Data: make([]byte, 76)}.Bytes()
	require.True(t, IsErrorCode(err, ErrInvalidPushSize))

	_, err = Op{Code: OP_DUP, Data: []byte{1}}.Bytes()
	require.True(t, IsErrorCode(err, ErrInvalidPushSize))

	_, err = Op{Code: numOpcodes}.Bytes()
	require.True(t, IsErrorCode(err, ErrUnrecognizedOpCode))

	buf := make([]byte, 2)
	_, err = NewPushOp([]byte{1, 2}).Encode(buf)
	require.True(t, IsErrorCode(err, ErrDataTooSmall))
}

func TestDecodeOpErrors(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		code ErrorCode
	}{
		{"empty", nil, ErrDataTooSmall},
		{"short push", []byte{0x02, 0x01}, ErrDataTooSmall},
		{"pushdata1 without length", []byte{0x4c}, ErrDataTooSmall},
		{"pushdata2 short length", []byte{0x4d, 0x01}, ErrDataTooSmall},
		{"pushdata4 short data", []byte{0x4e, 0x02, 0, 0, 0, 0x01}, ErrDataTooSmall},
		{"first unrecognized", []byte{0xba}, ErrUnrecognizedOpCode},
		{"last unrecognized", []byte{0xff}, ErrUnrecognizedOpCode},
	}
	for _, test := range tests {
		_, _, err := DecodeOp(test.buf)
		require.True(t, IsErrorCode(err, test.code), "%s: %v", test.name, err)
	}
}

func TestDecodeAliases(t *testing.T) {
	for _, v := range []byte{0x50, 0x89, 0x8a} {
		op, _, err := DecodeOp([]byte{v})
		require.NoError(t, err)
		require.Equal(t, OP_RESERVED, op.Code)
	}
	for _, v := range []byte{0x61, 0xb0, 0xb3, 0xb4, 0xb5, 0xb6, 0xb7, 0xb8, 0xb9} {
		op, _, err := DecodeOp([]byte{v})
		require.NoError(t, err)
		require.Equal(t, OP_NOP, op.Code, "0x%02x", v)
	}

	op, _, err := DecodeOp([]byte{0x00})
	require.NoError(t, err)
	require.Equal(t, OP_0, op.Code)
	require.True(t, op.AliasEqual(NewOp(OP_FALSE)))
	require.False(t, op.Equal(NewOp(OP_FALSE)))

	op, _, err = DecodeOp([]byte{0x51})
	require.NoError(t, err)
	require.Equal(t, OP_1, op.Code)
	require.True(t, op.AliasEqual(NewOp(OP_TRUE)))
}

func TestOpcodeByName(t *testing.T) {
	for code := OPCODE(0); code < numOpcodes; code++ {
		got, ok := OpcodeByName[code.String()]
		require.True(t, ok, code.String())
		require.Equal(t, code, got)
	}
	require.Equal(t, "OP_UNKNOWN(255)", OPCODE(255).String())
}

func TestSmallNumPushed(t *testing.T) {
	n, ok := NewOp(OP_1NEGATE).SmallNumPushed()
	require.True(t, ok)
	require.Equal(t, -1, n)

	n, ok = NewOp(OP_TRUE).SmallNumPushed()
	require.True(t, ok)
	require.Equal(t, 1, n)

	n, ok = NewOp(OP_16).SmallNumPushed()
	require.True(t, ok)
	require.Equal(t, 16, n)

	_, ok = NewOp(OP_NOP).SmallNumPushed()
	require.False(t, ok)

	data, ok := NewPushOp([]byte{1, 2}).DataPushed()
	require.True(t, ok)
	require.Equal(t, []byte{1, 2}, data)
	_, ok = NewOp(OP_1).DataPushed()
	require.False(t, ok)
}
