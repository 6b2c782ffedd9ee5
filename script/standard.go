package script

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/treeforest/easyscript/base58check"
	log "github.com/treeforest/logger"
)

const (
	// MaxDataCarrierSize 空数据脚本 OP_RETURN 之后附加数据的最大字节数
	MaxDataCarrierSize = 80

	pubKeyHashLen         = 20
	compressedPubKeyLen   = 33
	uncompressedPubKeyLen = 65
)

// ErrNotPubKeyHash 脚本不是支付到公钥哈希脚本
var ErrNotPubKeyHash = errors.New("script is not a pay-to-pubkey-hash script")

// ScriptClass 标准脚本类型
type ScriptClass byte

const (
	NonStandardTy ScriptClass = iota // 非标准脚本
	PubKeyHashTy                     // 支付到公钥哈希
	PubKeyTy                         // 支付到公钥
	NullDataTy                       // 只携带数据，不可花费
)

var scriptClassToName = []string{
	NonStandardTy: "nonstandard",
	PubKeyHashTy:  "pubkeyhash",
	PubKeyTy:      "pubkey",
	NullDataTy:    "nulldata",
}

func (t ScriptClass) String() string {
	if int(t) >= len(scriptClassToName) {
		return "Invalid"
	}
	return scriptClassToName[t]
}

// PayToPubKeyHashScript 生成交易输出脚本
//
//	OP_DUP OP_HASH160 <pubKeyHash> OP_EQUALVERIFY OP_CHECKSIG
func PayToPubKeyHashScript(pubKeyHash []byte) (Script, error) {
	if len(pubKeyHash) != pubKeyHashLen {
		return Script{}, scriptError(ErrInvalidPushSize,
			fmt.Sprintf("public key hash must be %d bytes, got %d", pubKeyHashLen, len(pubKeyHash)))
	}
	return NewBuilder().AddOps(OP_DUP, OP_HASH160).AddData(pubKeyHash).
		AddOps(OP_EQUALVERIFY, OP_CHECKSIG).Build()
}

// PayToAddrScript 由 base58check 地址生成交易输出脚本
func PayToAddrScript(address []byte) (Script, error) {
	hash160, err := base58check.Decode(address)
	if err != nil {
		return Script{}, err
	}
	return PayToPubKeyHashScript(hash160)
}

// PayToPubKeyScript <pubKey> OP_CHECKSIG
func PayToPubKeyScript(pubKey []byte) (Script, error) {
	return NewBuilder().AddData(pubKey).AddOp(OP_CHECKSIG).Build()
}

// NullDataScript OP_RETURN 后附加任意数据，该输出不可花费
func NullDataScript(data []byte) (Script, error) {
	if len(data) > MaxDataCarrierSize {
		str := fmt.Sprintf("data size %d is larger than max allowed size %d",
			len(data), MaxDataCarrierSize)
		return Script{}, scriptError(ErrDataTooLarge, str)
	}
	return NewBuilder().SetTrailing(data).Build()
}

// SignatureScript 生成交易输入脚本 <sig> <pubKey>
func SignatureScript(tx *wire.MsgTx, idx int, subscript Script, key *btcec.PrivateKey,
	hashType SigHashType, compress bool) (Script, error) {

	sig, err := RawTxInSignature(tx, idx, subscript, key, hashType)
	if err != nil {
		return Script{}, err
	}

	pk := key.PubKey()
	var pkData []byte
	if compress {
		pkData = pk.SerializeCompressed()
	} else {
		pkData = pk.SerializeUncompressed()
	}

	return NewBuilder().AddData(sig).AddData(pkData).Build()
}

// GetScriptClass 识别标准脚本类型，无法解码的脚本视为非标准
func GetScriptClass(s Script) ScriptClass {
	ops, trailing, err := s.Decode()
	if err != nil {
		log.Debug("decode script failed:", err)
		return NonStandardTy
	}
	switch {
	case isPubKeyHash(ops, trailing):
		return PubKeyHashTy
	case isPubKey(ops, trailing):
		return PubKeyTy
	case isNullData(ops, trailing):
		return NullDataTy
	}
	return NonStandardTy
}

func isPubKeyHash(ops []Op, trailing []byte) bool {
	return len(ops) == 5 && trailing == nil &&
		ops[0].Code == OP_DUP &&
		ops[1].Code == OP_HASH160 &&
		ops[2].IsDataPush() && len(ops[2].Data) == pubKeyHashLen &&
		ops[3].Code == OP_EQUALVERIFY &&
		ops[4].Code == OP_CHECKSIG
}

func isPubKey(ops []Op, trailing []byte) bool {
	return len(ops) == 2 && trailing == nil &&
		ops[0].IsDataPush() &&
		(len(ops[0].Data) == compressedPubKeyLen || len(ops[0].Data) == uncompressedPubKeyLen) &&
		ops[1].Code == OP_CHECKSIG
}

func isNullData(ops []Op, trailing []byte) bool {
	return len(ops) == 1 && ops[0].Code == OP_RETURN && len(trailing) <= MaxDataCarrierSize
}

// ExtractPubKeyHash 取出支付到公钥哈希脚本中的公钥哈希
func ExtractPubKeyHash(s Script) ([]byte, error) {
	ops, trailing, err := s.Decode()
	if err != nil {
		return nil, err
	}
	if !isPubKeyHash(ops, trailing) {
		return nil, ErrNotPubKeyHash
	}
	return ops[2].Data, nil
}

// IsPushOnly 脚本是否只包含压栈操作（包括小整数操作码）
func IsPushOnly(s Script) bool {
	ops, trailing, err := s.Decode()
	if err != nil || trailing != nil {
		return false
	}
	for _, op := range ops {
		if op.Code == OP_RESERVED {
			return false
		}
		if _, ok := op.SmallNumPushed(); !ok && !op.IsDataPush() {
			return false
		}
	}
	return true
}
