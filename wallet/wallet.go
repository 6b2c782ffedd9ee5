package wallet

import (
	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"github.com/pkg/errors"
	"github.com/treeforest/easyscript/base58check"
	"github.com/treeforest/easyscript/script"
)

// Wallet 钱包
type Wallet struct {
	Key []byte // 私钥
	Pub []byte // 压缩格式的公钥
}

func New() (*Wallet, error) {
	key, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		return nil, errors.Wrap(err, "generate secp256k1 key")
	}
	return &Wallet{Key: key.Serialize(), Pub: key.PubKey().SerializeCompressed()}, nil
}

// FromPrivateKey 从32字节私钥恢复钱包
func FromPrivateKey(b []byte) (*Wallet, error) {
	if len(b) != btcec.PrivKeyBytesLen {
		return nil, errors.Errorf("private key must be %d bytes, got %d", btcec.PrivKeyBytesLen, len(b))
	}
	key, pub := btcec.PrivKeyFromBytes(btcec.S256(), b)
	return &Wallet{Key: key.Serialize(), Pub: pub.SerializeCompressed()}, nil
}

// PrivateKey 私钥
func (w *Wallet) PrivateKey() *btcec.PrivateKey {
	key, _ := btcec.PrivKeyFromBytes(btcec.S256(), w.Key)
	return key
}

// GetAddress 钱包地址
func (w *Wallet) GetAddress() []byte {
	return base58check.Encode(w.PubKeyHash160())
}

// Sign 对32字节的摘要签名，返回 DER 编码的签名
func (w *Wallet) Sign(hash []byte) ([]byte, error) {
	sig, err := w.PrivateKey().Sign(hash)
	if err != nil {
		return nil, errors.Wrap(err, "sign")
	}
	return sig.Serialize(), nil
}

func (w *Wallet) PubKeyHash160() []byte {
	return btcutil.Hash160(w.Pub)
}

func (w *Wallet) PubKey() []byte {
	pub := make([]byte, len(w.Pub))
	copy(pub, w.Pub)
	return pub
}

// LockScript 支付到本钱包地址的锁定脚本
func (w *Wallet) LockScript() (script.Script, error) {
	return script.PayToPubKeyHashScript(w.PubKeyHash160())
}

// UnlockScript 为交易第 idx 个输入生成解锁脚本，lock 为被花费输出的锁定脚本
func (w *Wallet) UnlockScript(tx *wire.MsgTx, idx int, lock script.Script,
	hashType script.SigHashType) (script.Script, error) {
	return script.SignatureScript(tx, idx, lock, w.PrivateKey(), hashType, true)
}
