package script

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// newTestTx 3个输入、3个输出的交易
func newTestTx() *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	for i := 0; i < 3; i++ {
		prev := wire.NewOutPoint(&chainhash.Hash{byte(i + 1)}, uint32(i))
		in := wire.NewTxIn(prev, []byte{0x51, byte(i)}, nil)
		in.Sequence = uint32(100 + i)
		tx.AddTxIn(in)
	}
	for i := 0; i < 3; i++ {
		tx.AddTxOut(wire.NewTxOut(int64(1000*(i+1)), []byte{0x51}))
	}
	return tx
}

func sigHash(t *testing.T, tx *wire.MsgTx, idx int, hashType SigHashType) []byte {
	subscript := mustParseShortForm(t, "DUP HASH160 EQUALVERIFY CHECKSIG")
	hash, err := CalcSignatureHash(tx, idx, subscript, hashType)
	require.NoError(t, err)
	require.Len(t, hash, chainhash.HashSize)
	return hash
}

func TestSigHashTypes(t *testing.T) {
	tx := newTestTx()
	types := []SigHashType{SigHashAll, SigHashNone, SigHashSingle, SigHashAllAnyOneCanPay,
		SigHashNoneAnyOneCanPay, SigHashSingleAnyOneCanPay}

	seen := make(map[string]SigHashType)
	for _, typ := range types {
		h := string(sigHash(t, tx, 1, typ))
		other, dup := seen[h]
		require.False(t, dup, "%v and %v produce the same digest", typ, other)
		seen[h] = typ
	}
}

func TestSigHashCoverage(t *testing.T) {
	t.Run("all commits to every output", func(t *testing.T) {
		tx := newTestTx()
		before := sigHash(t, tx, 1, SigHashAll)
		tx.TxOut[2].Value++
		require.NotEqual(t, before, sigHash(t, tx, 1, SigHashAll))
	})

	t.Run("none ignores outputs and other sequences", func(t *testing.T) {
		tx := newTestTx()
		before := sigHash(t, tx, 1, SigHashNone)
		tx.TxOut[1].Value++
		tx.TxIn[0].Sequence = 7
		require.Equal(t, before, sigHash(t, tx, 1, SigHashNone))

		tx.TxIn[1].Sequence = 7
		require.NotEqual(t, before, sigHash(t, tx, 1, SigHashNone))
	})

	t.Run("single commits to the matching output only", func(t *testing.T) {
		tx := newTestTx()
		before := sigHash(t, tx, 1, SigHashSingle)
		tx.TxOut[0].Value++
		tx.TxOut[2].Value++
		require.Equal(t, before, sigHash(t, tx, 1, SigHashSingle))

		tx.TxOut[1].Value++
		require.NotEqual(t, before, sigHash(t, tx, 1, SigHashSingle))
	})

	t.Run("anyonecanpay ignores other inputs", func(t *testing.T) {
		tx := newTestTx()
		before := sigHash(t, tx, 1, SigHashAllAnyOneCanPay)
		tx.TxIn[0].PreviousOutPoint.Index = 99
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{9}, 0), nil, nil))
		require.Equal(t, before, sigHash(t, tx, 1, SigHashAllAnyOneCanPay))

		allBefore := sigHash(t, newTestTx(), 1, SigHashAll)
		require.NotEqual(t, allBefore, sigHash(t, tx, 1, SigHashAll))
	})

	t.Run("unlock scripts are not committed", func(t *testing.T) {
		tx := newTestTx()
		before := sigHash(t, tx, 1, SigHashAll)
		tx.TxIn[0].SignatureScript = []byte{0x00}
		tx.TxIn[1].SignatureScript = []byte{0x00}
		require.Equal(t, before, sigHash(t, tx, 1, SigHashAll))
	})

	t.Run("subscript is committed", func(t *testing.T) {
		tx := newTestTx()
		a, err := CalcSignatureHash(tx, 0, mustParseShortForm(t, "1"), SigHashAll)
		require.NoError(t, err)
		b, err := CalcSignatureHash(tx, 0, mustParseShortForm(t, "2"), SigHashAll)
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})
}

func TestCalcSignatureHashLeavesTxUntouched(t *testing.T) {
	tx := newTestTx()
	var before bytes.Buffer
	require.NoError(t, tx.Serialize(&before))

	for _, typ := range []SigHashType{SigHashAll, SigHashNoneAnyOneCanPay, SigHashSingle} {
		sigHash(t, tx, 1, typ)
	}

	var after bytes.Buffer
	require.NoError(t, tx.Serialize(&after))
	require.Equal(t, before.Bytes(), after.Bytes())
}

func TestCalcSignatureHashErrors(t *testing.T) {
	tx := newTestTx()
	subscript := mustParseShortForm(t, "1")

	_, err := CalcSignatureHash(tx, 0, subscript, 0)
	require.True(t, IsErrorCode(err, ErrInvalidSigHashType))
	_, err = CalcSignatureHash(tx, 0, subscript, SigHashAnyOneCanPay)
	require.True(t, IsErrorCode(err, ErrInvalidSigHashType))
	_, err = CalcSignatureHash(tx, 0, subscript, 0x04)
	require.True(t, IsErrorCode(err, ErrInvalidSigHashType))

	_, err = CalcSignatureHash(nil, 0, subscript, SigHashAll)
	require.True(t, IsErrorCode(err, ErrRequiresContext))

	_, err = CalcSignatureHash(tx, 3, subscript, SigHashAll)
	require.True(t, IsErrorCode(err, ErrInvalidIndex))
	_, err = CalcSignatureHash(tx, -1, subscript, SigHashAll)
	require.True(t, IsErrorCode(err, ErrInvalidIndex))

	tx.TxOut = tx.TxOut[:2]
	_, err = CalcSignatureHash(tx, 2, subscript, SigHashSingle)
	require.True(t, IsErrorCode(err, ErrInvalidIndex))
	_, err = CalcSignatureHash(tx, 2, subscript, SigHashNone)
	require.NoError(t, err)
}

func TestParseSigHashType(t *testing.T) {
	for _, b := range []byte{0x01, 0x02, 0x03, 0x81, 0x82, 0x83} {
		typ, err := ParseSigHashType(b)
		require.NoError(t, err)
		require.Equal(t, SigHashType(b), typ)
	}
	for _, b := range []byte{0x00, 0x04, 0x80, 0x84, 0x41, 0xff} {
		_, err := ParseSigHashType(b)
		require.True(t, IsErrorCode(err, ErrInvalidSigHashType), "0x%02x", b)
	}
	require.Equal(t, "SINGLE|ANYONECANPAY", SigHashSingleAnyOneCanPay.String())
	require.Equal(t, "ALL", SigHashAll.String())
}

func TestSignAndVerifySignature(t *testing.T) {
	key, err := btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)
	pubKey := key.PubKey().SerializeCompressed()

	tx := newTestTx()
	subscript := mustParseShortForm(t, "DUP HASH160 EQUALVERIFY CHECKSIG")

	sig, err := RawTxInSignature(tx, 1, subscript, key, SigHashAll)
	require.NoError(t, err)
	require.Equal(t, byte(SigHashAll), sig[len(sig)-1])

	valid, err := VerifySignature(sig, pubKey, tx, 1, subscript)
	require.NoError(t, err)
	require.True(t, valid)

	// 其他输入的签名哈希不同
	valid, err = VerifySignature(sig, pubKey, tx, 0, subscript)
	require.NoError(t, err)
	require.False(t, valid)

	// 无法解析的公钥与签名视为无效而不是错误
	valid, err = VerifySignature(sig, []byte{0x02, 0x01}, tx, 1, subscript)
	require.NoError(t, err)
	require.False(t, valid)
	valid, err = VerifySignature([]byte{0x30, 0x01, byte(SigHashAll)}, pubKey, tx, 1, subscript)
	require.NoError(t, err)
	require.False(t, valid)

	valid, err = VerifySignature(nil, pubKey, tx, 1, subscript)
	require.NoError(t, err)
	require.False(t, valid)

	bad := append([]byte(nil), sig...)
	bad[len(bad)-1] = 0x04
	_, err = VerifySignature(bad, pubKey, tx, 1, subscript)
	require.True(t, IsErrorCode(err, ErrInvalidSigHashType))

	_, err = RawTxInSignature(tx, 1, subscript, key, SigHashAnyOneCanPay)
	require.True(t, IsErrorCode(err, ErrInvalidSigHashType))
}

// mapSigCache 记录命中次数的签名缓存
type mapSigCache struct {
	entries map[string]struct{}
	hits    int
}

func newMapSigCache() *mapSigCache {
	return &mapSigCache{entries: make(map[string]struct{})}
}

func (c *mapSigCache) key(sigHash, sig, pubKey []byte) string {
	return string(sigHash) + string(sig) + string(pubKey)
}

func (c *mapSigCache) Exists(sigHash, sig, pubKey []byte) bool {
	_, ok := c.entries[c.key(sigHash, sig, pubKey)]
	if ok {
		c.hits++
	}
	return ok
}

func (c *mapSigCache) Add(sigHash, sig, pubKey []byte) {
	c.entries[c.key(sigHash, sig, pubKey)] = struct{}{}
}

func TestCheckSignatureCache(t *testing.T) {
	key, err := btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)
	pubKey := key.PubKey().SerializeCompressed()
	tx := newTestTx()
	subscript := mustParseShortForm(t, "CHECKSIG")
	ctx := NewTxContext(tx, 0, subscript)

	sig, err := RawTxInSignature(tx, 0, subscript, key, SigHashAll)
	require.NoError(t, err)

	cache := newMapSigCache()
	valid, err := checkSignature(sig, pubKey, ctx, cache)
	require.NoError(t, err)
	require.True(t, valid)
	require.Equal(t, 0, cache.hits)
	require.Len(t, cache.entries, 1)

	valid, err = checkSignature(sig, pubKey, ctx, cache)
	require.NoError(t, err)
	require.True(t, valid)
	require.Equal(t, 1, cache.hits)

	// 无效签名不会写入缓存
	other, err := btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)
	valid, err = checkSignature(sig, other.PubKey().SerializeCompressed(), ctx, cache)
	require.NoError(t, err)
	require.False(t, valid)
	require.Len(t, cache.entries, 1)
}
