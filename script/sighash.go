package script

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// SigHashType 签名哈希类型，决定交易中哪些部分被签名。序列化时附加在签名末尾
type SigHashType uint32

const (
	SigHashAll          SigHashType = 0x1
	SigHashNone         SigHashType = 0x2
	SigHashSingle       SigHashType = 0x3
	SigHashAnyOneCanPay SigHashType = 0x80

	SigHashAllAnyOneCanPay    = SigHashAll | SigHashAnyOneCanPay
	SigHashNoneAnyOneCanPay   = SigHashNone | SigHashAnyOneCanPay
	SigHashSingleAnyOneCanPay = SigHashSingle | SigHashAnyOneCanPay

	// sigHashMask 基础类型所占的位
	sigHashMask = 0x1f
)

// IsValid 只有 All/None/Single 以及它们与 AnyOneCanPay 的组合是有效的
func (t SigHashType) IsValid() bool {
	switch t {
	case SigHashAll, SigHashNone, SigHashSingle,
		SigHashAllAnyOneCanPay, SigHashNoneAnyOneCanPay, SigHashSingleAnyOneCanPay:
		return true
	}
	return false
}

func (t SigHashType) String() string {
	var base string
	switch t & sigHashMask {
	case SigHashAll:
		base = "ALL"
	case SigHashNone:
		base = "NONE"
	case SigHashSingle:
		base = "SINGLE"
	default:
		return fmt.Sprintf("SigHashType(0x%x)", uint32(t))
	}
	if t&SigHashAnyOneCanPay != 0 {
		return base + "|ANYONECANPAY"
	}
	return base
}

// ParseSigHashType 解析签名末尾的哈希类型字节
func ParseSigHashType(b byte) (SigHashType, error) {
	t := SigHashType(b)
	if !t.IsValid() {
		return 0, scriptError(ErrInvalidSigHashType,
			fmt.Sprintf("invalid signature hash type 0x%02x", b))
	}
	return t, nil
}

// TxContext 签名校验类操作码所需的交易上下文
type TxContext struct {
	Tx         *wire.MsgTx // 正在验证的交易
	InputIndex int         // 正在验证的输入索引
	Subscript  Script      // 参与签名的锁定脚本
}

// NewTxContext 使用完整的锁定脚本作为 subscript
func NewTxContext(tx *wire.MsgTx, idx int, subscript Script) *TxContext {
	return &TxContext{Tx: tx, InputIndex: idx, Subscript: subscript}
}

// SigCache 签名校验结果缓存，实现必须是并发安全的
type SigCache interface {
	Exists(sigHash, sig, pubKey []byte) bool
	Add(sigHash, sig, pubKey []byte)
}

// CalcSignatureHash 计算交易第 idx 个输入在 hashType 下的签名哈希。
// 在交易副本上：其余输入的解锁脚本清空，当前输入的解锁脚本替换为 subscript，
// 再按 hashType 裁剪输入输出，序列化后追加4字节小端序的 hashType，最后做双重SHA256。
func CalcSignatureHash(tx *wire.MsgTx, idx int, subscript Script, hashType SigHashType) ([]byte, error) {
	if !hashType.IsValid() {
		return nil, scriptError(ErrInvalidSigHashType,
			fmt.Sprintf("invalid signature hash type 0x%x", uint32(hashType)))
	}
	if tx == nil {
		return nil, scriptError(ErrRequiresContext, "signature hash requires a transaction")
	}
	if idx < 0 || idx >= len(tx.TxIn) {
		str := fmt.Sprintf("input index %d out of range, transaction has %d inputs",
			idx, len(tx.TxIn))
		return nil, scriptError(ErrInvalidIndex, str)
	}
	if hashType&sigHashMask == SigHashSingle && idx >= len(tx.TxOut) {
		str := fmt.Sprintf("SIGHASH_SINGLE input index %d has no matching output, "+
			"transaction has %d outputs", idx, len(tx.TxOut))
		return nil, scriptError(ErrInvalidIndex, str)
	}

	txCopy := shallowCopyTx(tx)
	for i := range txCopy.TxIn {
		if i == idx {
			txCopy.TxIn[i].SignatureScript = subscript.raw
		} else {
			txCopy.TxIn[i].SignatureScript = nil
		}
		txCopy.TxIn[i].Witness = nil
	}

	switch hashType & sigHashMask {
	case SigHashNone:
		txCopy.TxOut = txCopy.TxOut[0:0]
		zeroOtherSequences(&txCopy, idx)

	case SigHashSingle:
		// 保留到当前索引为止的输出，之前的输出置为最大值、空脚本的占位
		txCopy.TxOut = txCopy.TxOut[:idx+1]
		for i := 0; i < idx; i++ {
			txCopy.TxOut[i] = &wire.TxOut{Value: -1, PkScript: nil}
		}
		zeroOtherSequences(&txCopy, idx)

	case SigHashAll:
	}

	if hashType&SigHashAnyOneCanPay != 0 {
		txCopy.TxIn = txCopy.TxIn[idx : idx+1]
	}

	var buf bytes.Buffer
	buf.Grow(txCopy.SerializeSizeStripped() + 4)
	if err := txCopy.SerializeNoWitness(&buf); err != nil {
		return nil, scriptError(ErrInternal, fmt.Sprintf("serialize transaction: %v", err))
	}
	var typ [4]byte
	binary.LittleEndian.PutUint32(typ[:], uint32(hashType))
	buf.Write(typ[:])

	return chainhash.DoubleHashB(buf.Bytes()), nil
}

// shallowCopyTx 交易的浅拷贝：输入输出重新分配，脚本字节共享
func shallowCopyTx(tx *wire.MsgTx) wire.MsgTx {
	txCopy := wire.MsgTx{
		Version:  tx.Version,
		TxIn:     make([]*wire.TxIn, len(tx.TxIn)),
		TxOut:    make([]*wire.TxOut, len(tx.TxOut)),
		LockTime: tx.LockTime,
	}
	txIns := make([]wire.TxIn, len(tx.TxIn))
	for i, oldTxIn := range tx.TxIn {
		txIns[i] = *oldTxIn
		txCopy.TxIn[i] = &txIns[i]
	}
	txOuts := make([]wire.TxOut, len(tx.TxOut))
	for i, oldTxOut := range tx.TxOut {
		txOuts[i] = *oldTxOut
		txCopy.TxOut[i] = &txOuts[i]
	}
	return txCopy
}

func zeroOtherSequences(tx *wire.MsgTx, idx int) {
	for i := range tx.TxIn {
		if i != idx {
			tx.TxIn[i].Sequence = 0
		}
	}
}

// RawTxInSignature 对交易第 idx 个输入签名，返回 DER 编码的签名并在末尾附加 hashType
func RawTxInSignature(tx *wire.MsgTx, idx int, subscript Script, key *btcec.PrivateKey,
	hashType SigHashType) ([]byte, error) {

	hash, err := CalcSignatureHash(tx, idx, subscript, hashType)
	if err != nil {
		return nil, err
	}
	signature, err := key.Sign(hash)
	if err != nil {
		return nil, fmt.Errorf("cannot sign tx input: %s", err)
	}

	return append(signature.Serialize(), byte(hashType)), nil
}

// VerifySignature 校验附带 hashType 的签名。空签名直接视为无效，返回 false 而不是错误
func VerifySignature(sig, pubKey []byte, tx *wire.MsgTx, idx int, subscript Script) (bool, error) {
	return checkSignature(sig, pubKey, &TxContext{Tx: tx, InputIndex: idx, Subscript: subscript}, nil)
}

func checkSignature(sig, pubKey []byte, ctx *TxContext, cache SigCache) (bool, error) {
	if len(sig) == 0 {
		return false, nil
	}

	hashType, err := ParseSigHashType(sig[len(sig)-1])
	if err != nil {
		return false, err
	}
	der := sig[:len(sig)-1]

	hash, err := CalcSignatureHash(ctx.Tx, ctx.InputIndex, ctx.Subscript, hashType)
	if err != nil {
		return false, err
	}

	if cache != nil && cache.Exists(hash, der, pubKey) {
		return true, nil
	}

	pk, err := btcec.ParsePubKey(pubKey, btcec.S256())
	if err != nil {
		return false, nil
	}
	signature, err := btcec.ParseDERSignature(der, btcec.S256())
	if err != nil {
		return false, nil
	}

	valid := signature.Verify(hash, pk)
	if valid && cache != nil {
		cache.Add(hash, der, pubKey)
	}
	return valid, nil
}
