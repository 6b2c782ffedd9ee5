package easyscript

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"github.com/pkg/errors"
	"github.com/treeforest/easyscript/script"
	log "github.com/treeforest/logger"
)

var (
	// ErrScriptFalse 脚本执行完成但结果为 false
	ErrScriptFalse = errors.New("script evaluated to false")
	// ErrNoInputs 交易没有输入
	ErrNoInputs = errors.New("transaction has no inputs")
	// ErrDuplicateInput 交易重复花费同一个输出
	ErrDuplicateInput = errors.New("transaction spends the same output twice")
	// ErrInsufficientFunds 输出金额大于输入金额
	ErrInsufficientFunds = errors.New("outputs exceed inputs")
	// ErrNegativeOutput 输出金额为负数
	ErrNegativeOutput = errors.New("negative output value")
	// ErrOutputValueRange 金额或累计金额超过 MaxSatoshi
	ErrOutputValueRange = errors.New("output value out of range")
)

// OutputFetcher 查询被花费的输出
type OutputFetcher interface {
	GetOutput(op wire.OutPoint) (*wire.TxOut, error)
}

// TxRuleError 交易验证失败，InputIndex 为 -1 表示与具体输入无关
type TxRuleError struct {
	InputIndex int
	Err        error
}

func (e *TxRuleError) Error() string {
	if e.InputIndex < 0 {
		return fmt.Sprintf("invalid transaction: %v", e.Err)
	}
	return fmt.Sprintf("invalid transaction input %d: %v", e.InputIndex, e.Err)
}

func (e *TxRuleError) Unwrap() error {
	return e.Err
}

func (e *TxRuleError) Cause() error {
	return e.Err
}

// Validator 交易验证器，验证交易的每个输入能否花费其引用的输出
type Validator struct {
	outputs  OutputFetcher
	limits   script.Limits
	sigCache script.SigCache
	workers  int
}

// NewValidator sigCache 可以为 nil
func NewValidator(outputs OutputFetcher, limits script.Limits, sigCache script.SigCache) *Validator {
	return &Validator{
		outputs:  outputs,
		limits:   limits,
		sigCache: sigCache,
		workers:  runtime.NumCPU(),
	}
}

// ValidateTransaction 检查金额后并发验证所有输入的脚本，每个输入使用独立的 Engine。
// 返回第一个（按输入顺序）失败的 *TxRuleError。
func (v *Validator) ValidateTransaction(tx *wire.MsgTx) error {
	prevOuts, err := v.fetchInputs(tx)
	if err != nil {
		return err
	}
	if err = checkAmounts(tx, prevOuts); err != nil {
		return err
	}

	errs := make([]error, len(tx.TxIn))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < v.workers && w < len(tx.TxIn); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				errs[i] = v.verifyInput(tx, i, prevOuts[i])
			}
		}()
	}
	for i := range tx.TxIn {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			log.Warnf("reject transaction %s: %v", tx.TxHash(), err)
			return err
		}
	}
	return nil
}

func (v *Validator) fetchInputs(tx *wire.MsgTx) ([]*wire.TxOut, error) {
	if len(tx.TxIn) == 0 {
		return nil, &TxRuleError{InputIndex: -1, Err: ErrNoInputs}
	}

	seen := make(map[wire.OutPoint]struct{}, len(tx.TxIn))
	prevOuts := make([]*wire.TxOut, len(tx.TxIn))
	for i, in := range tx.TxIn {
		if _, ok := seen[in.PreviousOutPoint]; ok {
			return nil, &TxRuleError{InputIndex: i, Err: ErrDuplicateInput}
		}
		seen[in.PreviousOutPoint] = struct{}{}

		out, err := v.outputs.GetOutput(in.PreviousOutPoint)
		if err != nil {
			return nil, &TxRuleError{InputIndex: i, Err: err}
		}
		prevOuts[i] = out
	}
	return prevOuts, nil
}

// CheckOutputValue 金额必须在 0..MaxSatoshi 范围内
func CheckOutputValue(value int64) error {
	if value < 0 {
		return errors.Wrapf(ErrNegativeOutput, "value %d", value)
	}
	if value > btcutil.MaxSatoshi {
		return errors.Wrapf(ErrOutputValueRange, "value %d > %d", value, int64(btcutil.MaxSatoshi))
	}
	return nil
}

// checkAmounts 每个金额以及累计金额都不能超过 MaxSatoshi，输出总额不能大于输入总额
func checkAmounts(tx *wire.MsgTx, prevOuts []*wire.TxOut) error {
	var in, out int64
	for i, prev := range prevOuts {
		if err := CheckOutputValue(prev.Value); err != nil {
			return &TxRuleError{InputIndex: i, Err: err}
		}
		in += prev.Value
		if in > btcutil.MaxSatoshi {
			return &TxRuleError{InputIndex: i,
				Err: errors.Wrapf(ErrOutputValueRange, "total input value %d", in)}
		}
	}
	for _, o := range tx.TxOut {
		if err := CheckOutputValue(o.Value); err != nil {
			return &TxRuleError{InputIndex: -1, Err: err}
		}
		out += o.Value
		if out > btcutil.MaxSatoshi {
			return &TxRuleError{InputIndex: -1,
				Err: errors.Wrapf(ErrOutputValueRange, "total output value %d", out)}
		}
	}
	if out > in {
		return &TxRuleError{InputIndex: -1,
			Err: errors.Wrapf(ErrInsufficientFunds, "in %d, out %d", in, out)}
	}
	return nil
}

func (v *Validator) verifyInput(tx *wire.MsgTx, idx int, prevOut *wire.TxOut) error {
	unlock := script.NewScript(tx.TxIn[idx].SignatureScript)
	lock := script.NewScript(prevOut.PkScript)

	ok, err := script.NewEngine(v.limits, v.sigCache).Verify(unlock, lock, tx, idx)
	if err != nil {
		return &TxRuleError{InputIndex: idx, Err: err}
	}
	if !ok {
		return &TxRuleError{InputIndex: idx, Err: ErrScriptFalse}
	}
	return nil
}
