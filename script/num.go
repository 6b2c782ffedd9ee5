package script

import "fmt"

const (
	// MaxNumLen 通用的数值最大字节数
	MaxNumLen = 8

	// defaultArithNumLen 解释器算术运算操作数的最大字节数
	defaultArithNumLen = 4

	// lockTimeNumLen OP_CHECKLOCKTIMEVERIFY/OP_CHECKSEQUENCEVERIFY 操作数的最大字节数
	lockTimeNumLen = 5
)

// Number 脚本中的数值。采用小端序的符号-数值表示，最后一个字节的最高位为符号位。
// 空字节序列表示0，同时也表示false。
type Number []byte

// NumberFromInt 将整数编码为最小长度的 Number，0 编码为空序列
func NumberFromInt(v int64) Number {
	if v == 0 {
		return Number{}
	}

	negative := v < 0
	// 对 math.MinInt64 取反会溢出，但转换为uint64后的值正好是它的绝对值
	magnitude := uint64(v)
	if negative {
		magnitude = uint64(-v)
	}

	result := make(Number, 0, 9)
	for magnitude > 0 {
		result = append(result, byte(magnitude&0xff))
		magnitude >>= 8
	}

	// 最高字节的最高位已被占用时，需要额外补一个字节存放符号位
	if result[len(result)-1]&0x80 != 0 {
		extra := byte(0x00)
		if negative {
			extra = 0x80
		}
		result = append(result, extra)
	} else if negative {
		result[len(result)-1] |= 0x80
	}

	return result
}

// Int 按最大字节数 maxLen 将 Number 解码为整数
func (n Number) Int(maxLen int) (int64, error) {
	if len(n) > maxLen {
		str := fmt.Sprintf("numeric value encoded as %x is %d bytes which "+
			"exceeds the max allowed of %d", []byte(n), len(n), maxLen)
		return 0, scriptError(ErrDataTooLarge, str)
	}
	if len(n) == 0 {
		return 0, nil
	}

	var magnitude uint64
	for i, b := range n {
		magnitude |= uint64(b) << uint(8*i)
	}

	// 清除符号位
	signBit := uint64(0x80) << uint(8*(len(n)-1))
	if magnitude&signBit != 0 {
		magnitude &^= signBit
		return -int64(magnitude), nil
	}
	return int64(magnitude), nil
}

// Int64 使用通用的8字节上限解码
func (n Number) Int64() (int64, error) {
	return n.Int(MaxNumLen)
}

// Bool 返回 Number 的布尔值。全0字节以及"负0"（除最后一个字节为0x80外其余全为0）为false
func (n Number) Bool() bool {
	return asBool(n)
}

// Bytes 返回底层字节
func (n Number) Bytes() []byte {
	return []byte(n)
}

func asBool(t []byte) bool {
	for i := range t {
		if t[i] != 0 {
			// 负0同样为false
			if i == len(t)-1 && t[i] == 0x80 {
				return false
			}
			return true
		}
	}
	return false
}

func fromBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return nil
}
