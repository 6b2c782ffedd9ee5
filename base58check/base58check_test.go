package base58check

import (
	"testing"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcutil"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestBase58check(t *testing.T) {
	key, err := btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)
	hash160 := btcutil.Hash160(key.PubKey().SerializeCompressed())

	address := Encode(hash160)
	require.Equal(t, byte('1'), address[0])

	decoded, err := Decode(address)
	require.NoError(t, err)
	require.Equal(t, hash160, decoded)
}

func TestKnownAddress(t *testing.T) {
	// 全零公钥哈希对应的地址
	hash160 := make([]byte, 20)
	require.Equal(t, "1111111111111111111114oLvT2", string(Encode(hash160)))
}

func TestDecodeErrors(t *testing.T) {
	hash160 := make([]byte, 20)
	hash160[19] = 1
	address := Encode(hash160)

	tampered := append([]byte(nil), address...)
	last := len(tampered) - 1
	if tampered[last] == 'z' {
		tampered[last] = 'y'
	} else {
		tampered[last] = 'z'
	}
	_, err := Decode(tampered)
	require.True(t, errors.Is(err, ErrChecksum))

	_, err = Decode([]byte("1"))
	require.True(t, errors.Is(err, ErrInvalidFormat))

	// 长度不是20字节
	_, err = Decode(Encode([]byte{1, 2, 3}))
	require.True(t, errors.Is(err, ErrInvalidFormat))
}
