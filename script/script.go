package script

import (
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// Script 不可变的脚本字节。零值为空脚本
type Script struct {
	raw []byte
}

// NewScript 拷贝 b 构造脚本
func NewScript(b []byte) Script {
	if len(b) == 0 {
		return Script{}
	}
	raw := make([]byte, len(b))
	copy(raw, b)
	return Script{raw: raw}
}

// NewScriptFromHex 从十六进制字符串构造脚本
func NewScriptFromHex(s string) (Script, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return Script{}, errors.Wrap(err, "decode script hex")
	}
	return NewScript(b), nil
}

// Bytes 返回脚本字节的拷贝
func (s Script) Bytes() []byte {
	if len(s.raw) == 0 {
		return nil
	}
	b := make([]byte, len(s.raw))
	copy(b, s.raw)
	return b
}

// Len 脚本字节长度
func (s Script) Len() int {
	return len(s.raw)
}

// IsEmpty 是否为空脚本
func (s Script) IsEmpty() bool {
	return len(s.raw) == 0
}

// Hex 十六进制表示
func (s Script) Hex() string {
	return hex.EncodeToString(s.raw)
}

// Equal 字节是否相同
func (s Script) Equal(other Script) bool {
	return bytes.Equal(s.raw, other.raw)
}

// Decode 解码脚本，返回指令序列以及 OP_RETURN 之后的附加数据。
// 只有不在任何未闭合的 IF/NOTIF 中的 OP_RETURN 才会截断脚本，其后的字节不再解析为指令。
func (s Script) Decode() ([]Op, []byte, error) {
	ops := make([]Op, 0, len(s.raw)/2+1)
	trailing, err := s.walk(func(op Op) {
		ops = append(ops, op)
	})
	if err != nil {
		return nil, nil, err
	}
	return ops, trailing, nil
}

// walk 依次解码每条指令并回调 fn，出错前已解码的指令都会回调
func (s Script) walk(fn func(op Op)) ([]byte, error) {
	ifDepth, offset := 0, 0
	for offset < len(s.raw) {
		op, n, err := DecodeOp(s.raw[offset:])
		if err != nil {
			return nil, err
		}
		offset += n
		fn(op)

		switch op.Code {
		case OP_IF, OP_NOTIF:
			ifDepth++
		case OP_ENDIF:
			if ifDepth > 0 {
				ifDepth--
			}
		case OP_RETURN:
			if ifDepth != 0 {
				continue
			}
			if offset == len(s.raw) {
				return nil, nil
			}
			trailing := make([]byte, len(s.raw)-offset)
			copy(trailing, s.raw[offset:])
			return trailing, nil
		}
	}
	return nil, nil
}

// String 反汇编。附加数据输出为 [hex]，无法解码的部分输出为 [error]
func (s Script) String() string {
	parts := make([]string, 0, len(s.raw)/2+1)
	trailing, err := s.walk(func(op Op) {
		parts = append(parts, op.String())
	})
	if err != nil {
		parts = append(parts, "[error]")
	} else if len(trailing) > 0 {
		parts = append(parts, "["+hex.EncodeToString(trailing)+"]")
	}
	return strings.Join(parts, " ")
}
