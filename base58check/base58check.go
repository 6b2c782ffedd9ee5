package base58check

import (
	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"
)

const (
	// Version 地址版本号，0x00 对应主网以 1 开头的地址
	Version = byte(0x00)

	hash160Len = 20
)

var (
	// ErrChecksum 校验码不匹配
	ErrChecksum = errors.New("checksum error")
	// ErrInvalidFormat 地址格式或长度错误
	ErrInvalidFormat = errors.New("invalid address format")
)

// Encode 将公钥哈希编码为地址。base58 编码会丢弃前导的0，比特币用'1'补位，所以地址以1开头
func Encode(hash160 []byte) []byte {
	return []byte(base58.CheckEncode(hash160, Version))
}

// Decode 解码地址，校验版本号与校验码并返回公钥哈希
func Decode(address []byte) ([]byte, error) {
	hash160, version, err := base58.CheckDecode(string(address))
	switch err {
	case nil:
	case base58.ErrChecksum:
		return nil, errors.Wrapf(ErrChecksum, "decode address %q", address)
	default:
		return nil, errors.Wrapf(ErrInvalidFormat, "decode address %q: %v", address, err)
	}
	if version != Version {
		return nil, errors.Wrapf(ErrInvalidFormat, "unsupported address version 0x%02x", version)
	}
	if len(hash160) != hash160Len {
		return nil, errors.Wrapf(ErrInvalidFormat, "public key hash is %d bytes", len(hash160))
	}
	return hash160, nil
}
