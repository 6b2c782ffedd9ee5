package sigcache

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// DefaultSize 默认缓存的签名数量
const DefaultSize = 10000

type entry struct {
	sigHash chainhash.Hash
	sig     string
	pubKey  string
}

// SigCache 已验证通过的签名缓存，可被多个 Engine 并发使用。
// 超出容量时淘汰最久未使用的记录。
type SigCache struct {
	lru *lru.Cache
}

// New 创建容量为 size 的签名缓存，size<=0 时使用默认容量
func New(size int) (*SigCache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "create lru cache")
	}
	return &SigCache{lru: c}, nil
}

func newEntry(sigHash, sig, pubKey []byte) (entry, bool) {
	var e entry
	if len(sigHash) != chainhash.HashSize {
		return e, false
	}
	copy(e.sigHash[:], sigHash)
	e.sig = string(sig)
	e.pubKey = string(pubKey)
	return e, true
}

// Exists 签名是否已验证过，命中的记录会被标记为最近使用
func (c *SigCache) Exists(sigHash, sig, pubKey []byte) bool {
	e, ok := newEntry(sigHash, sig, pubKey)
	if !ok {
		return false
	}
	_, ok = c.lru.Get(e)
	return ok
}

// Add 记录验证通过的签名
func (c *SigCache) Add(sigHash, sig, pubKey []byte) {
	e, ok := newEntry(sigHash, sig, pubKey)
	if !ok {
		return
	}
	c.lru.Add(e, struct{}{})
}

// Len 缓存中的记录数
func (c *SigCache) Len() int {
	return c.lru.Len()
}
