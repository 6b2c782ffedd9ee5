package script

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
)

// Op 一条解码后的指令：固定操作码，或者携带压栈数据的 push 操作
type Op struct {
	Code OPCODE
	Data []byte
}

// NewOp 不携带数据的指令
func NewOp(code OPCODE) Op {
	return Op{Code: code}
}

// NewPushOp 选择能容纳 data 的最短 push 形式。空数据使用 OP_0
func NewPushOp(data []byte) Op {
	n := len(data)
	switch {
	case n == 0:
		return Op{Code: OP_0}
	case n <= opcodePushMax:
		return Op{Code: OP_PUSH, Data: data}
	case n <= math.MaxUint8:
		return Op{Code: OP_PUSHDATA1, Data: data}
	case n <= math.MaxUint16:
		return Op{Code: OP_PUSHDATA2, Data: data}
	default:
		return Op{Code: OP_PUSHDATA4, Data: data}
	}
}

// prefixSize push 操作码与长度前缀占用的字节数
func (op Op) prefixSize() int {
	return prefixSize(op.Code)
}

func prefixSize(code OPCODE) int {
	switch code {
	case OP_PUSHDATA1:
		return 2
	case OP_PUSHDATA2:
		return 3
	case OP_PUSHDATA4:
		return 5
	}
	return 1
}

// EncodedSize 编码后的字节数
func (op Op) EncodedSize() int {
	return op.prefixSize() + len(op.Data)
}

// check 检查数据长度是否与操作码相符
func (op Op) check() error {
	if !op.Code.IsValid() {
		return scriptError(ErrUnrecognizedOpCode,
			fmt.Sprintf("unrecognized opcode tag %d", uint8(op.Code)))
	}

	n := uint64(len(op.Data))
	var lo, hi uint64
	switch op.Code {
	case OP_PUSH:
		lo, hi = 1, opcodePushMax
	case OP_PUSHDATA1:
		hi = math.MaxUint8
	case OP_PUSHDATA2:
		hi = math.MaxUint16
	case OP_PUSHDATA4:
		hi = math.MaxUint32
	default:
		hi = 0
	}
	if n < lo || n > hi {
		str := fmt.Sprintf("%s carries %d bytes of data, allowed %d..%d",
			op.Code, n, lo, hi)
		return scriptError(ErrInvalidPushSize, str)
	}
	return nil
}

// Encode 将指令编码到 buf 中，返回写入的字节数
func (op Op) Encode(buf []byte) (int, error) {
	if err := op.check(); err != nil {
		return 0, err
	}

	size := op.EncodedSize()
	if len(buf) < size {
		str := fmt.Sprintf("encoding %s requires %d bytes, buffer has %d",
			op.Code, size, len(buf))
		return 0, scriptError(ErrDataTooSmall, str)
	}

	n := len(op.Data)
	switch op.Code {
	case OP_PUSH:
		buf[0] = byte(n)
	case OP_PUSHDATA1:
		buf[0] = op.Code.Value()
		buf[1] = byte(n)
	case OP_PUSHDATA2:
		buf[0] = op.Code.Value()
		binary.LittleEndian.PutUint16(buf[1:], uint16(n))
	case OP_PUSHDATA4:
		buf[0] = op.Code.Value()
		binary.LittleEndian.PutUint32(buf[1:], uint32(n))
	default:
		buf[0] = op.Code.Value()
	}
	copy(buf[op.prefixSize():], op.Data)

	return size, nil
}

// Bytes 编码后的字节
func (op Op) Bytes() ([]byte, error) {
	buf := make([]byte, op.EncodedSize())
	if _, err := op.Encode(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// DecodeOp 从 buf 头部解码一条指令，返回指令与消耗的字节数
func DecodeOp(buf []byte) (Op, int, error) {
	if len(buf) == 0 {
		return Op{}, 0, scriptError(ErrDataTooSmall, "no bytes left to decode an opcode")
	}

	value := buf[0]
	if !validOpcode[value] {
		str := fmt.Sprintf("unrecognized opcode 0x%02x", value)
		return Op{}, 0, scriptError(ErrUnrecognizedOpCode, str)
	}

	code := opcodeByValue[value]
	var n uint64
	switch code {
	case OP_PUSH:
		n = uint64(value)
	case OP_PUSHDATA1, OP_PUSHDATA2, OP_PUSHDATA4:
		prefix := prefixSize(code)
		if len(buf) < prefix {
			str := fmt.Sprintf("%s requires %d length bytes, only %d remain",
				code, prefix-1, len(buf)-1)
			return Op{}, 0, scriptError(ErrDataTooSmall, str)
		}
		switch code {
		case OP_PUSHDATA1:
			n = uint64(buf[1])
		case OP_PUSHDATA2:
			n = uint64(binary.LittleEndian.Uint16(buf[1:3]))
		default:
			n = uint64(binary.LittleEndian.Uint32(buf[1:5]))
		}
	default:
		return Op{Code: code}, 1, nil
	}

	prefix := prefixSize(code)
	remain := uint64(len(buf) - prefix)
	if n > remain {
		str := fmt.Sprintf("%s pushes %d bytes, only %d remain", code, n, remain)
		return Op{}, 0, scriptError(ErrDataTooSmall, str)
	}

	data := make([]byte, n)
	copy(data, buf[prefix:prefix+int(n)])
	return Op{Code: code, Data: data}, prefix + int(n), nil
}

// IsDataPush 是否是携带数据的 push 操作
func (op Op) IsDataPush() bool {
	return op.Code.isPush()
}

// DataPushed push 操作压入的数据
func (op Op) DataPushed() ([]byte, bool) {
	if !op.IsDataPush() {
		return nil, false
	}
	return op.Data, true
}

// SmallNumPushed OP_0、OP_1NEGATE、OP_1~OP_16 压入的整数
func (op Op) SmallNumPushed() (int, bool) {
	switch code := op.Code.canonical(); {
	case code == OP_0:
		return 0, true
	case code == OP_1NEGATE:
		return -1, true
	case code >= OP_1 && code <= OP_16:
		return int(code.Value()-opcodeArray[OP_1].value) + 1, true
	}
	return 0, false
}

// Equal 普通相等：标签与数据都相同。OP_0 与 OP_FALSE 不相等
func (op Op) Equal(other Op) bool {
	return op.Code == other.Code && bytes.Equal(op.Data, other.Data)
}

// AliasEqual 别名相等：OP_0≡OP_FALSE，OP_1≡OP_TRUE
func (op Op) AliasEqual(other Op) bool {
	return op.Code.canonical() == other.Code.canonical() &&
		bytes.Equal(op.Data, other.Data)
}

func (op Op) String() string {
	if op.IsDataPush() {
		return hex.EncodeToString(op.Data)
	}
	return op.Code.String()
}
