package script

const (
	// MaxScriptSize 单个脚本的最大字节数
	MaxScriptSize = 10000

	// MaxOpsPerScript 单个脚本的最大操作数（不含 push 操作）
	MaxOpsPerScript = 201

	// MaxStackSize 主栈与备用栈元素总数上限
	MaxStackSize = 1000

	// MaxScriptElementSize 单个栈元素的最大字节数
	MaxScriptElementSize = 520
)

// Limits 解释器的资源限制。构造 Engine 时传入，运行期间不可修改
type Limits struct {
	MaxScriptSize        int
	MaxOps               int
	MaxStackSize         int
	MaxScriptElementSize int
	MaxNumLen            int // 算术运算操作数的最大字节数
}

// DefaultLimits 比特币共识规则的默认限制
func DefaultLimits() Limits {
	return Limits{
		MaxScriptSize:        MaxScriptSize,
		MaxOps:               MaxOpsPerScript,
		MaxStackSize:         MaxStackSize,
		MaxScriptElementSize: MaxScriptElementSize,
		MaxNumLen:            defaultArithNumLen,
	}
}

// normalize 未设置(<=0)的字段使用默认值
func (l Limits) normalize() Limits {
	def := DefaultLimits()
	if l.MaxScriptSize <= 0 {
		l.MaxScriptSize = def.MaxScriptSize
	}
	if l.MaxOps <= 0 {
		l.MaxOps = def.MaxOps
	}
	if l.MaxStackSize <= 0 {
		l.MaxStackSize = def.MaxStackSize
	}
	if l.MaxScriptElementSize <= 0 {
		l.MaxScriptElementSize = def.MaxScriptElementSize
	}
	if l.MaxNumLen <= 0 {
		l.MaxNumLen = def.MaxNumLen
	}
	if l.MaxNumLen > MaxNumLen {
		l.MaxNumLen = MaxNumLen
	}
	return l
}
