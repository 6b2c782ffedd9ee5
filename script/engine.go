package script

import (
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"github.com/davecgh/go-spew/spew"
	"github.com/treeforest/easyscript/script/stack"
	log "github.com/treeforest/logger"
	"golang.org/x/crypto/ripemd160"
)

// LockTimeThreshold 小于该值的锁定时间表示区块高度，否则表示时间戳
const LockTimeThreshold = 500000000

// Engine 基于堆栈的脚本执行引擎。
// 主栈与备用栈在多次 Execute 之间保留，直到调用 Clear；条件栈与操作计数在每次 Execute 开始时重置。
// Engine 不是并发安全的，并发验证时每个任务使用独立的 Engine。
type Engine struct {
	limits    Limits
	sigCache  SigCache
	dstack    *stack.Stack // 主栈
	astack    *stack.Stack // 备用栈
	condStack []bool       // 未闭合的条件分支
	numOps    int          // 当前脚本已执行的操作数
}

// NewEngine 创建执行引擎，sigCache 可以为 nil
func NewEngine(limits Limits, sigCache SigCache) *Engine {
	return &Engine{
		limits:    limits.normalize(),
		sigCache:  sigCache,
		dstack:    stack.New(),
		astack:    stack.New(),
		condStack: make([]bool, 0, 4),
	}
}

// Limits 引擎使用的资源限制
func (e *Engine) Limits() Limits {
	return e.limits
}

// Clear 清空引擎状态
func (e *Engine) Clear() {
	e.dstack.Clear()
	e.astack.Clear()
	e.condStack = e.condStack[:0]
	e.numOps = 0
}

// Stack 主栈拷贝，栈底在前
func (e *Engine) Stack() [][]byte {
	return e.dstack.Items()
}

// AltStack 备用栈拷贝，栈底在前
func (e *Engine) AltStack() [][]byte {
	return e.astack.Items()
}

// Result 栈非空且栈顶为 true
func (e *Engine) Result() bool {
	top, err := e.dstack.Top()
	if err != nil {
		return false
	}
	return asBool(top)
}

// Run 执行脚本并返回结果
func (e *Engine) Run(s Script, ctx *TxContext) (bool, error) {
	if err := e.Execute(s, ctx); err != nil {
		return false, err
	}
	return e.Result(), nil
}

// Execute 执行脚本。ctx 仅签名与锁定时间类操作码需要，可以为 nil
func (e *Engine) Execute(s Script, ctx *TxContext) error {
	if s.Len() > e.limits.MaxScriptSize {
		str := fmt.Sprintf("script size %d is larger than max allowed size %d",
			s.Len(), e.limits.MaxScriptSize)
		return scriptError(ErrScriptTooBig, str)
	}

	// OP_RETURN 之后的附加数据不会被执行：执行到 OP_RETURN 时脚本已失败
	ops, _, err := s.Decode()
	if err != nil {
		log.Debug("decode script failed:", err)
		return err
	}

	e.condStack = e.condStack[:0]
	e.numOps = 0

	for i, op := range ops {
		if err = e.step(op, ctx); err != nil {
			log.Debugf("script failed at op #%d (%s): %v\nstack: %salt stack: %s",
				i, op, err, spew.Sdump(e.dstack.Items()), spew.Sdump(e.astack.Items()))
			return err
		}
	}

	if len(e.condStack) != 0 {
		return scriptError(ErrUnbalancedConditional,
			fmt.Sprintf("end of script reached in conditional execution, %d branches open",
				len(e.condStack)))
	}
	return nil
}

// isBranchExecuting 所有未闭合的条件分支都为 true 时才执行
func (e *Engine) isBranchExecuting() bool {
	for _, cond := range e.condStack {
		if !cond {
			return false
		}
	}
	return true
}

// step 执行一条指令
func (e *Engine) step(op Op, ctx *TxContext) error {
	if len(op.Data) > e.limits.MaxScriptElementSize {
		str := fmt.Sprintf("element size %d exceeds max allowed size %d",
			len(op.Data), e.limits.MaxScriptElementSize)
		return scriptError(ErrElementTooBig, str)
	}

	// 未执行分支中的操作同样计数
	if op.Code.counted() {
		e.numOps++
		if e.numOps > e.limits.MaxOps {
			str := fmt.Sprintf("exceeded max operation limit of %d", e.limits.MaxOps)
			return scriptError(ErrTooManyOperations, str)
		}
	}

	// 禁用与保留的操作码在未执行分支中同样失败
	if op.Code.isDisabled() {
		return scriptError(ErrDisabledOpcode,
			fmt.Sprintf("attempt to execute disabled opcode %s", op.Code))
	}
	if op.Code == OP_VERIF || op.Code == OP_VERNOTIF {
		return scriptError(ErrReservedOpcode,
			fmt.Sprintf("attempt to execute reserved opcode %s", op.Code))
	}

	executing := e.isBranchExecuting()
	if !executing && !op.Code.isConditional() {
		return nil
	}

	if err := e.executeOp(op, ctx, executing); err != nil {
		return err
	}

	if n := e.dstack.Len() + e.astack.Len(); n > e.limits.MaxStackSize {
		str := fmt.Sprintf("combined stack size %d > max allowed %d", n, e.limits.MaxStackSize)
		return scriptError(ErrStackOverflow, str)
	}
	return nil
}

// executeOp 按标签分派。标签集合是封闭的，每个标签都必须出现在下面的分支中
func (e *Engine) executeOp(op Op, ctx *TxContext, executing bool) error {
	switch op.Code {
	// 压栈
	case OP_0, OP_FALSE:
		e.dstack.Push(nil)
	case OP_PUSH, OP_PUSHDATA1, OP_PUSHDATA2, OP_PUSHDATA4:
		e.dstack.Push(op.Data)
	case OP_1NEGATE, OP_1, OP_TRUE, OP_2, OP_3, OP_4, OP_5, OP_6, OP_7, OP_8,
		OP_9, OP_10, OP_11, OP_12, OP_13, OP_14, OP_15, OP_16:
		n, _ := op.SmallNumPushed()
		e.dstack.Push(NumberFromInt(int64(n)))

	// 流程控制
	case OP_NOP:
	case OP_VER, OP_RESERVED, OP_VERIF, OP_VERNOTIF:
		return scriptError(ErrReservedOpcode,
			fmt.Sprintf("attempt to execute reserved opcode %s", op.Code))
	case OP_IF, OP_NOTIF:
		return e.opIf(op, executing)
	case OP_ELSE:
		if len(e.condStack) == 0 {
			return scriptError(ErrUnbalancedConditional,
				"encountered OP_ELSE with no matching OP_IF")
		}
		top := len(e.condStack) - 1
		e.condStack[top] = !e.condStack[top]
	case OP_ENDIF:
		if len(e.condStack) == 0 {
			return scriptError(ErrUnbalancedConditional,
				"encountered OP_ENDIF with no matching OP_IF")
		}
		e.condStack = e.condStack[:len(e.condStack)-1]
	case OP_VERIFY:
		return e.opVerify(op)
	case OP_RETURN:
		return scriptError(ErrEarlyReturn, "script returned early")

	// 栈操作
	case OP_TOALTSTACK:
		v, err := e.popBytes(op)
		if err != nil {
			return err
		}
		e.astack.Push(v)
	case OP_FROMALTSTACK:
		v, err := e.astack.Pop()
		if err != nil {
			return scriptError(ErrStackUnderflow, "OP_FROMALTSTACK on an empty alt stack")
		}
		e.dstack.Push(v)
	case OP_2DROP:
		return e.stackOp(op, 2, func() error { return e.dstack.DropN(2) })
	case OP_2DUP:
		return e.stackOp(op, 2, func() error { return e.dstack.DupN(2) })
	case OP_3DUP:
		return e.stackOp(op, 3, func() error { return e.dstack.DupN(3) })
	case OP_2OVER:
		return e.stackOp(op, 4, func() error { return e.dstack.OverN(2) })
	case OP_2ROT:
		return e.stackOp(op, 6, func() error { return e.dstack.RotN(2) })
	case OP_2SWAP:
		return e.stackOp(op, 4, func() error { return e.dstack.SwapN(2) })
	case OP_IFDUP:
		return e.stackOp(op, 1, func() error {
			top, err := e.dstack.Top()
			if err == nil && asBool(top) {
				e.dstack.Push(top)
			}
			return err
		})
	case OP_DEPTH:
		e.dstack.Push(NumberFromInt(int64(e.dstack.Len())))
	case OP_DROP:
		return e.stackOp(op, 1, func() error { return e.dstack.DropN(1) })
	case OP_DUP:
		return e.stackOp(op, 1, func() error { return e.dstack.DupN(1) })
	case OP_NIP:
		return e.stackOp(op, 2, func() error {
			_, err := e.dstack.Nip(1)
			return err
		})
	case OP_OVER:
		return e.stackOp(op, 2, func() error { return e.dstack.OverN(1) })
	case OP_PICK, OP_ROLL:
		return e.opPickRoll(op)
	case OP_ROT:
		return e.stackOp(op, 3, func() error { return e.dstack.RotN(1) })
	case OP_SWAP:
		return e.stackOp(op, 2, func() error { return e.dstack.SwapN(1) })
	case OP_TUCK:
		return e.stackOp(op, 2, func() error {
			top, err := e.dstack.Top()
			if err != nil {
				return err
			}
			return e.dstack.Insert(2, top)
		})

	// 字节串
	case OP_SIZE:
		return e.stackOp(op, 1, func() error {
			top, err := e.dstack.Top()
			if err == nil {
				e.dstack.Push(NumberFromInt(int64(len(top))))
			}
			return err
		})
	case OP_EQUAL, OP_EQUALVERIFY:
		return e.opEqual(op)

	// 禁用的操作码在 step 中已经拦截
	case OP_CAT, OP_SUBSTR, OP_LEFT, OP_RIGHT, OP_INVERT, OP_AND, OP_OR, OP_XOR,
		OP_2MUL, OP_2DIV, OP_MUL, OP_DIV, OP_MOD, OP_LSHIFT, OP_RSHIFT:
		return scriptError(ErrDisabledOpcode,
			fmt.Sprintf("attempt to execute disabled opcode %s", op.Code))

	// 算术
	case OP_1ADD, OP_1SUB, OP_NEGATE, OP_ABS, OP_NOT, OP_0NOTEQUAL:
		return e.opUnaryNum(op)
	case OP_ADD, OP_SUB, OP_BOOLAND, OP_BOOLOR, OP_NUMEQUAL, OP_NUMEQUALVERIFY,
		OP_NUMNOTEQUAL, OP_LESSTHAN, OP_GREATERTHAN, OP_LESSTHANOREQUAL,
		OP_GREATERTHANOREQUAL, OP_MIN, OP_MAX:
		return e.opBinaryNum(op)
	case OP_WITHIN:
		return e.opWithin(op)

	// 哈希
	case OP_RIPEMD160, OP_SHA1, OP_SHA256, OP_HASH160, OP_HASH256:
		return e.opHash(op)

	// 签名
	case OP_CHECKSIG, OP_CHECKSIGVERIFY:
		return e.opCheckSig(op, ctx)
	case OP_CODESEPARATOR, OP_CHECKMULTISIG, OP_CHECKMULTISIGVERIFY:
		return scriptError(ErrUnimplementedOpcode,
			fmt.Sprintf("opcode %s is not supported", op.Code))

	// 锁定时间
	case OP_CHECKLOCKTIMEVERIFY:
		return e.opCheckLockTimeVerify(op, ctx)
	case OP_CHECKSEQUENCEVERIFY:
		return e.opCheckSequenceVerify(op, ctx)

	default:
		return scriptError(ErrUnrecognizedOpCode,
			fmt.Sprintf("unrecognized opcode %s", op.Code))
	}
	return nil
}

// requireDepth 栈中至少需要 n 个元素
func (e *Engine) requireDepth(op Op, n int) error {
	if !e.dstack.Has(n) {
		str := fmt.Sprintf("%s requires %d stack items, stack has %d",
			op.Code, n, e.dstack.Len())
		return scriptError(ErrStackUnderflow, str)
	}
	return nil
}

// stackOp 检查栈深度后执行栈操作
func (e *Engine) stackOp(op Op, depth int, fn func() error) error {
	if err := e.requireDepth(op, depth); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return scriptError(ErrStackUnderflow, fmt.Sprintf("%s: %v", op.Code, err))
	}
	return nil
}

func (e *Engine) popBytes(op Op) ([]byte, error) {
	if err := e.requireDepth(op, 1); err != nil {
		return nil, err
	}
	return e.dstack.Pop()
}

func (e *Engine) popBool(op Op) (bool, error) {
	v, err := e.popBytes(op)
	if err != nil {
		return false, err
	}
	return asBool(v), nil
}

// popInt 弹出栈顶元素并按算术操作数长度限制解码为整数
func (e *Engine) popInt(op Op) (int64, error) {
	v, err := e.popBytes(op)
	if err != nil {
		return 0, err
	}
	return Number(v).Int(e.limits.MaxNumLen)
}

func (e *Engine) opIf(op Op, executing bool) error {
	cond := false
	if executing {
		v, err := e.popBool(op)
		if err != nil {
			return err
		}
		cond = v
		if op.Code == OP_NOTIF {
			cond = !cond
		}
	}
	e.condStack = append(e.condStack, cond)
	return nil
}

func (e *Engine) opVerify(op Op) error {
	ok, err := e.popBool(op)
	if err != nil {
		return err
	}
	if !ok {
		return scriptError(ErrVerifyFailed, fmt.Sprintf("%s failed", op.Code))
	}
	return nil
}

func (e *Engine) opPickRoll(op Op) error {
	if err := e.requireDepth(op, 2); err != nil {
		return err
	}
	n, err := e.popInt(op)
	if err != nil {
		return err
	}
	if n < 0 || n >= int64(e.dstack.Len()) {
		str := fmt.Sprintf("%s index %d is invalid for stack size %d",
			op.Code, n, e.dstack.Len())
		return scriptError(ErrInvalidStackOperation, str)
	}

	var v []byte
	if op.Code == OP_PICK {
		v, err = e.dstack.Peek(int(n))
	} else {
		v, err = e.dstack.Nip(int(n))
	}
	if err != nil {
		return scriptError(ErrInvalidStackOperation, fmt.Sprintf("%s: %v", op.Code, err))
	}
	e.dstack.Push(v)
	return nil
}

func (e *Engine) opEqual(op Op) error {
	if err := e.requireDepth(op, 2); err != nil {
		return err
	}
	b, _ := e.dstack.Pop()
	a, _ := e.dstack.Pop()
	equal := bytes.Equal(a, b)
	if op.Code == OP_EQUALVERIFY {
		if !equal {
			return scriptError(ErrVerifyFailed, "OP_EQUALVERIFY failed")
		}
		return nil
	}
	e.dstack.Push(fromBool(equal))
	return nil
}

func (e *Engine) opUnaryNum(op Op) error {
	a, err := e.popInt(op)
	if err != nil {
		return err
	}

	var r int64
	switch op.Code {
	case OP_1ADD:
		r, err = addInt64(a, 1)
	case OP_1SUB:
		r, err = addInt64(a, -1)
	case OP_NEGATE:
		r = -a
	case OP_ABS:
		r = a
		if a < 0 {
			r = -a
		}
	case OP_NOT:
		r = boolToInt(a == 0)
	case OP_0NOTEQUAL:
		r = boolToInt(a != 0)
	}
	if err != nil {
		return err
	}
	e.dstack.Push(NumberFromInt(r))
	return nil
}

func (e *Engine) opBinaryNum(op Op) error {
	if err := e.requireDepth(op, 2); err != nil {
		return err
	}
	b, err := e.popInt(op)
	if err != nil {
		return err
	}
	a, err := e.popInt(op)
	if err != nil {
		return err
	}

	var r int64
	switch op.Code {
	case OP_ADD:
		r, err = addInt64(a, b)
	case OP_SUB:
		r, err = addInt64(a, -b)
	case OP_BOOLAND:
		r = boolToInt(a != 0 && b != 0)
	case OP_BOOLOR:
		r = boolToInt(a != 0 || b != 0)
	case OP_NUMEQUAL, OP_NUMEQUALVERIFY:
		r = boolToInt(a == b)
	case OP_NUMNOTEQUAL:
		r = boolToInt(a != b)
	case OP_LESSTHAN:
		r = boolToInt(a < b)
	case OP_GREATERTHAN:
		r = boolToInt(a > b)
	case OP_LESSTHANOREQUAL:
		r = boolToInt(a <= b)
	case OP_GREATERTHANOREQUAL:
		r = boolToInt(a >= b)
	case OP_MIN:
		r = a
		if b < a {
			r = b
		}
	case OP_MAX:
		r = a
		if b > a {
			r = b
		}
	}
	if err != nil {
		return err
	}

	if op.Code == OP_NUMEQUALVERIFY {
		if r == 0 {
			return scriptError(ErrVerifyFailed, "OP_NUMEQUALVERIFY failed")
		}
		return nil
	}
	e.dstack.Push(NumberFromInt(r))
	return nil
}

// opWithin [... x min max] -> [... min<=x<max]
func (e *Engine) opWithin(op Op) error {
	if err := e.requireDepth(op, 3); err != nil {
		return err
	}
	hi, err := e.popInt(op)
	if err != nil {
		return err
	}
	lo, err := e.popInt(op)
	if err != nil {
		return err
	}
	x, err := e.popInt(op)
	if err != nil {
		return err
	}
	e.dstack.Push(fromBool(lo <= x && x < hi))
	return nil
}

func (e *Engine) opHash(op Op) error {
	data, err := e.popBytes(op)
	if err != nil {
		return err
	}

	var hash []byte
	switch op.Code {
	case OP_RIPEMD160:
		r := ripemd160.New()
		r.Write(data)
		hash = r.Sum(nil)
	case OP_SHA1:
		h := sha1.Sum(data)
		hash = h[:]
	case OP_SHA256:
		h := sha256.Sum256(data)
		hash = h[:]
	case OP_HASH160:
		hash = btcutil.Hash160(data)
	case OP_HASH256:
		hash = chainhash.DoubleHashB(data)
	}
	e.dstack.Push(hash)
	return nil
}

// opCheckSig [... sig pubkey] -> [... bool]
func (e *Engine) opCheckSig(op Op, ctx *TxContext) error {
	if ctx == nil || ctx.Tx == nil {
		return scriptError(ErrRequiresContext,
			fmt.Sprintf("%s requires a transaction context", op.Code))
	}
	if err := e.requireDepth(op, 2); err != nil {
		return err
	}
	pubKey, _ := e.dstack.Pop()
	sig, _ := e.dstack.Pop()

	valid, err := checkSignature(sig, pubKey, ctx, e.sigCache)
	if err != nil {
		return err
	}

	if op.Code == OP_CHECKSIGVERIFY {
		if !valid {
			return scriptError(ErrVerifyFailed, "OP_CHECKSIGVERIFY failed")
		}
		return nil
	}
	e.dstack.Push(fromBool(valid))
	return nil
}

// lockTimeOperand 读取栈顶的锁定时间（不出栈）
func (e *Engine) lockTimeOperand(op Op, ctx *TxContext) (int64, *wire.TxIn, error) {
	if ctx == nil || ctx.Tx == nil {
		return 0, nil, scriptError(ErrRequiresContext,
			fmt.Sprintf("%s requires a transaction context", op.Code))
	}
	if ctx.InputIndex < 0 || ctx.InputIndex >= len(ctx.Tx.TxIn) {
		return 0, nil, scriptError(ErrInvalidIndex,
			fmt.Sprintf("input index %d out of range", ctx.InputIndex))
	}
	if err := e.requireDepth(op, 1); err != nil {
		return 0, nil, err
	}
	top, _ := e.dstack.Top()
	v, err := Number(top).Int(lockTimeNumLen)
	if err != nil {
		return 0, nil, err
	}
	if v < 0 {
		return 0, nil, scriptError(ErrNegativeLockTime,
			fmt.Sprintf("negative lock time %d", v))
	}
	return v, ctx.Tx.TxIn[ctx.InputIndex], nil
}

// verifyLockTime 两个锁定时间必须同为高度或同为时间，且 lockTime 不晚于 txLockTime
func verifyLockTime(txLockTime, threshold, lockTime int64) error {
	if !((txLockTime < threshold && lockTime < threshold) ||
		(txLockTime >= threshold && lockTime >= threshold)) {
		str := fmt.Sprintf("mismatched locktime types -- tx locktime %d, stack locktime %d",
			txLockTime, lockTime)
		return scriptError(ErrUnsatisfiedLockTime, str)
	}
	if lockTime > txLockTime {
		str := fmt.Sprintf("locktime requirement not satisfied -- locktime is "+
			"greater than the transaction locktime: %d > %d", lockTime, txLockTime)
		return scriptError(ErrUnsatisfiedLockTime, str)
	}
	return nil
}

// opCheckLockTimeVerify BIP65
func (e *Engine) opCheckLockTimeVerify(op Op, ctx *TxContext) error {
	lockTime, txIn, err := e.lockTimeOperand(op, ctx)
	if err != nil {
		return err
	}
	if err = verifyLockTime(int64(ctx.Tx.LockTime), LockTimeThreshold, lockTime); err != nil {
		return err
	}
	// 输入已最终确认时交易的锁定时间不生效
	if txIn.Sequence == wire.MaxTxInSequenceNum {
		return scriptError(ErrUnsatisfiedLockTime, "transaction input is finalized")
	}
	return nil
}

// opCheckSequenceVerify BIP112
func (e *Engine) opCheckSequenceVerify(op Op, ctx *TxContext) error {
	sequence, txIn, err := e.lockTimeOperand(op, ctx)
	if err != nil {
		return err
	}
	// 栈上的相对锁定时间被禁用时相当于 NOP
	if sequence&int64(wire.SequenceLockTimeDisabled) != 0 {
		return nil
	}
	if ctx.Tx.Version < 2 {
		return scriptError(ErrUnsatisfiedLockTime,
			fmt.Sprintf("invalid transaction version: %d", ctx.Tx.Version))
	}
	txSequence := int64(txIn.Sequence)
	if txSequence&int64(wire.SequenceLockTimeDisabled) != 0 {
		str := fmt.Sprintf("transaction sequence has sequence locktime disabled bit set: 0x%x",
			txSequence)
		return scriptError(ErrUnsatisfiedLockTime, str)
	}
	mask := int64(wire.SequenceLockTimeIsSeconds | wire.SequenceLockTimeMask)
	return verifyLockTime(txSequence&mask, int64(wire.SequenceLockTimeIsSeconds), sequence&mask)
}

// addInt64 带溢出检查的加法
func addInt64(a, b int64) (int64, error) {
	r := a + b
	if (b > 0 && r < a) || (b < 0 && r > a) {
		return 0, scriptError(ErrDataTooLarge, fmt.Sprintf("integer overflow in %d + %d", a, b))
	}
	return r, nil
}

func boolToInt(v bool) int64 {
	if v {
		return 1
	}
	return 0
}
