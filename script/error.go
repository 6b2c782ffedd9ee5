package script

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCode 脚本错误码
type ErrorCode int

const (
	// ErrInternal 内部错误，正常情况下不会出现
	ErrInternal ErrorCode = iota

	// 数据格式错误

	// ErrDataTooSmall 数据不足：push操作声明的长度超过剩余字节，或者目标缓冲区容量不足
	ErrDataTooSmall
	// ErrDataTooLarge 数值字节数超过允许的最大长度
	ErrDataTooLarge
	// ErrUnrecognizedOpCode 无法识别的操作码
	ErrUnrecognizedOpCode
	// ErrInvalidPushSize push操作携带的数据长度与其操作码不匹配
	ErrInvalidPushSize
	// ErrInvalidSigHashType 无效的签名哈希类型
	ErrInvalidSigHashType
	// ErrInvalidIndex 交易输入/输出索引越界
	ErrInvalidIndex

	// 资源限制

	// ErrScriptTooBig 脚本长度超过限制
	ErrScriptTooBig
	// ErrTooManyOperations 操作数超过限制
	ErrTooManyOperations
	// ErrStackOverflow 主栈与备用栈元素总数超过限制
	ErrStackOverflow
	// ErrElementTooBig 入栈数据超过单个元素的最大长度
	ErrElementTooBig

	// 脚本逻辑失败

	// ErrEarlyReturn 执行到 OP_RETURN
	ErrEarlyReturn
	// ErrVerifyFailed VERIFY 系列操作校验失败
	ErrVerifyFailed
	// ErrUnbalancedConditional IF/ELSE/ENDIF 不配对
	ErrUnbalancedConditional
	// ErrStackUnderflow 栈中元素不足
	ErrStackUnderflow
	// ErrInvalidStackOperation PICK/ROLL 等操作的索引越界
	ErrInvalidStackOperation
	// ErrNegativeLockTime 锁定时间为负数
	ErrNegativeLockTime
	// ErrUnsatisfiedLockTime 锁定时间条件不满足
	ErrUnsatisfiedLockTime

	// 能力缺失

	// ErrRequiresContext 签名、锁定时间类操作需要交易上下文
	ErrRequiresContext
	// ErrUnimplementedOpcode 未实现的操作码（多重签名、OP_CODESEPARATOR）
	ErrUnimplementedOpcode
	// ErrDisabledOpcode 已禁用的操作码
	ErrDisabledOpcode
	// ErrReservedOpcode 保留操作码
	ErrReservedOpcode

	numErrorCodes
)

var errorCodeStrings = map[ErrorCode]string{
	ErrInternal:              "ErrInternal",
	ErrDataTooSmall:          "ErrDataTooSmall",
	ErrDataTooLarge:          "ErrDataTooLarge",
	ErrUnrecognizedOpCode:    "ErrUnrecognizedOpCode",
	ErrInvalidPushSize:       "ErrInvalidPushSize",
	ErrInvalidSigHashType:    "ErrInvalidSigHashType",
	ErrInvalidIndex:          "ErrInvalidIndex",
	ErrScriptTooBig:          "ErrScriptTooBig",
	ErrTooManyOperations:     "ErrTooManyOperations",
	ErrStackOverflow:         "ErrStackOverflow",
	ErrElementTooBig:         "ErrElementTooBig",
	ErrEarlyReturn:           "ErrEarlyReturn",
	ErrVerifyFailed:          "ErrVerifyFailed",
	ErrUnbalancedConditional: "ErrUnbalancedConditional",
	ErrStackUnderflow:        "ErrStackUnderflow",
	ErrInvalidStackOperation: "ErrInvalidStackOperation",
	ErrNegativeLockTime:      "ErrNegativeLockTime",
	ErrUnsatisfiedLockTime:   "ErrUnsatisfiedLockTime",
	ErrRequiresContext:       "ErrRequiresContext",
	ErrUnimplementedOpcode:   "ErrUnimplementedOpcode",
	ErrDisabledOpcode:        "ErrDisabledOpcode",
	ErrReservedOpcode:        "ErrReservedOpcode",
}

func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// ErrorKind 错误分类
type ErrorKind int

const (
	// KindMalformed 输入数据格式错误
	KindMalformed ErrorKind = iota
	// KindResource 超出资源限制
	KindResource
	// KindLogic 脚本运行失败
	KindLogic
	// KindCapability 缺少上下文或者操作码不被允许
	KindCapability
)

func (k ErrorKind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindResource:
		return "resource"
	case KindLogic:
		return "logic"
	case KindCapability:
		return "capability"
	}
	return fmt.Sprintf("Unknown ErrorKind (%d)", int(k))
}

// Kind 返回错误码所属的分类
func (e ErrorCode) Kind() ErrorKind {
	switch {
	case e >= ErrRequiresContext:
		return KindCapability
	case e >= ErrEarlyReturn:
		return KindLogic
	case e >= ErrScriptTooBig:
		return KindResource
	default:
		return KindMalformed
	}
}

// Error 脚本错误，包含错误码和描述
type Error struct {
	ErrorCode   ErrorCode
	Description string
}

func (e Error) Error() string {
	return e.Description
}

// Kind 错误分类
func (e Error) Kind() ErrorKind {
	return e.ErrorCode.Kind()
}

func scriptError(c ErrorCode, desc string) Error {
	return Error{ErrorCode: c, Description: desc}
}

// IsErrorCode 判断err（或其包装的错误）是否是指定错误码的脚本错误
func IsErrorCode(err error, c ErrorCode) bool {
	var serr Error
	return errors.As(err, &serr) && serr.ErrorCode == c
}

// KindOf 返回脚本错误的分类，非脚本错误返回false
func KindOf(err error) (ErrorKind, bool) {
	var serr Error
	if !errors.As(err, &serr) {
		return 0, false
	}
	return serr.Kind(), true
}
