package script

import (
	"github.com/btcsuite/btcd/wire"
)

// Verify 使用默认限制验证解锁脚本能否花费锁定脚本
func Verify(unlock, lock Script, tx *wire.MsgTx, idx int) (bool, error) {
	return NewEngine(DefaultLimits(), nil).Verify(unlock, lock, tx, idx)
}

// Verify 先在无交易上下文的情况下执行解锁脚本，栈顶为 true 时再以同一组栈执行锁定脚本，
// 锁定脚本同时作为签名的 subscript。
// 两个脚本各自拥有独立的条件栈与操作计数。
func (e *Engine) Verify(unlock, lock Script, tx *wire.MsgTx, idx int) (bool, error) {
	e.Clear()

	ok, err := e.Run(unlock, nil)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	return e.Run(lock, NewTxContext(tx, idx, lock))
}
