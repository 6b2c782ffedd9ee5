package script

import "fmt"

// Builder 脚本构建器。依次添加指令，最后调用 Build 生成脚本。
// 设置了附加数据时，若最后一条指令不是 OP_RETURN，Build 会自动补上 OP_RETURN。
//
//	script, err := NewBuilder().AddOp(OP_DUP).AddOp(OP_HASH160).
//		AddData(pubKeyHash).AddOp(OP_EQUALVERIFY).AddOp(OP_CHECKSIG).Build()
type Builder struct {
	ops         []Op
	trailing    []byte
	hasTrailing bool
	err         error
}

// NewBuilder 创建脚本构建器
func NewBuilder() *Builder {
	return &Builder{ops: make([]Op, 0, 8)}
}

// Add 添加一条指令
func (b *Builder) Add(op Op) *Builder {
	if b.err != nil {
		return b
	}
	if err := op.check(); err != nil {
		b.err = err
		return b
	}
	b.ops = append(b.ops, op)
	return b
}

// AddOp 添加不携带数据的操作码。push 类操作码请使用 AddData
func (b *Builder) AddOp(code OPCODE) *Builder {
	if b.err != nil {
		return b
	}
	if code.isPush() {
		b.err = scriptError(ErrInvalidPushSize,
			fmt.Sprintf("%s must be added with AddData", code))
		return b
	}
	return b.Add(NewOp(code))
}

// AddOps 依次添加多个操作码
func (b *Builder) AddOps(codes ...OPCODE) *Builder {
	for _, code := range codes {
		b.AddOp(code)
	}
	return b
}

// AddData 使用最短的 push 形式压入数据
func (b *Builder) AddData(data []byte) *Builder {
	return b.Add(NewPushOp(data))
}

// AddInt64 压入整数：0、-1、1~16 使用对应的小整数操作码，其余按最小编码压入
func (b *Builder) AddInt64(v int64) *Builder {
	switch {
	case v == 0:
		return b.AddOp(OP_0)
	case v == -1:
		return b.AddOp(OP_1NEGATE)
	case v >= 1 && v <= 16:
		return b.AddOp(smallIntOps[v-1])
	}
	return b.AddData(NumberFromInt(v))
}

var smallIntOps = [16]OPCODE{OP_1, OP_2, OP_3, OP_4, OP_5, OP_6, OP_7, OP_8,
	OP_9, OP_10, OP_11, OP_12, OP_13, OP_14, OP_15, OP_16}

// SetTrailing 设置 OP_RETURN 之后的附加数据
func (b *Builder) SetTrailing(data []byte) *Builder {
	b.trailing = data
	b.hasTrailing = true
	return b
}

// Reset 清空构建器
func (b *Builder) Reset() *Builder {
	b.ops = b.ops[:0]
	b.trailing = nil
	b.hasTrailing = false
	b.err = nil
	return b
}

// Build 生成脚本
func (b *Builder) Build() (Script, error) {
	if b.err != nil {
		return Script{}, b.err
	}

	ops := b.ops
	if b.hasTrailing && (len(ops) == 0 || ops[len(ops)-1].Code != OP_RETURN) {
		ops = append(ops[:len(ops):len(ops)], NewOp(OP_RETURN))
	}

	size := len(b.trailing)
	for _, op := range ops {
		size += op.EncodedSize()
	}
	if size == 0 {
		return Script{}, nil
	}

	raw := make([]byte, size)
	offset := 0
	for _, op := range ops {
		n, err := op.Encode(raw[offset:])
		if err != nil {
			return Script{}, err
		}
		offset += n
	}
	copy(raw[offset:], b.trailing)

	return Script{raw: raw}, nil
}
