package dao

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/treeforest/easyscript/script"
	log "github.com/treeforest/logger"
)

const (
	dbName       = "UTXO"  // 数据库名
	outputPrefix = "utxo_" // 未花费输出的key前缀
	maxPkScript  = script.MaxScriptSize
)

// ErrNotFound 未找到未花费输出
var ErrNotFound = errors.New("output not found")

func IsNotExistDB(path string) bool {
	_, err := os.Stat(filepath.Join(path, dbName))
	return os.IsNotExist(err)
}

// DAO 未花费输出存储对象
type DAO struct {
	*leveldb.DB
}

func New(dbPath string) (*DAO, error) {
	log.Debug("db path:", filepath.Join(dbPath, dbName))
	levelDB, err := leveldb.OpenFile(filepath.Join(dbPath, dbName), &opt.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open leveldb [%s]", dbName)
	}
	return &DAO{DB: levelDB}, nil
}

func (o *DAO) Close() error {
	return o.DB.Close()
}

// keyOutput utxo_ + 交易哈希 + 4字节大端序索引
func keyOutput(op wire.OutPoint) []byte {
	key := make([]byte, len(outputPrefix)+chainhash.HashSize+4)
	n := copy(key, outputPrefix)
	n += copy(key[n:], op.Hash[:])
	binary.BigEndian.PutUint32(key[n:], op.Index)
	return key
}

func encodeOutput(out *wire.TxOut) ([]byte, error) {
	var buf bytes.Buffer
	var value [8]byte
	binary.LittleEndian.PutUint64(value[:], uint64(out.Value))
	buf.Write(value[:])
	if err := wire.WriteVarBytes(&buf, 0, out.PkScript); err != nil {
		return nil, errors.Wrap(err, "encode output script")
	}
	return buf.Bytes(), nil
}

func decodeOutput(data []byte) (*wire.TxOut, error) {
	if len(data) < 8 {
		return nil, errors.Errorf("output record is %d bytes", len(data))
	}
	value := int64(binary.LittleEndian.Uint64(data[:8]))
	pkScript, err := wire.ReadVarBytes(bytes.NewReader(data[8:]), 0, maxPkScript, "PkScript")
	if err != nil {
		return nil, errors.Wrap(err, "decode output script")
	}
	return wire.NewTxOut(value, pkScript), nil
}

// PutOutput 保存可花费的输出
func (o *DAO) PutOutput(op wire.OutPoint, out *wire.TxOut) error {
	value, err := encodeOutput(out)
	if err != nil {
		return err
	}
	if err = o.DB.Put(keyOutput(op), value, &opt.WriteOptions{Sync: true}); err != nil {
		return errors.Wrapf(err, "insert output %v failed", op)
	}
	return nil
}

// GetOutput 查询未花费输出，不存在时返回 ErrNotFound
func (o *DAO) GetOutput(op wire.OutPoint) (*wire.TxOut, error) {
	value, err := o.DB.Get(keyOutput(op), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, errors.Wrapf(ErrNotFound, "%v", op)
		}
		return nil, errors.Wrapf(err, "get output %v failed", op)
	}
	return decodeOutput(value)
}

// HasOutput 输出是否存在且未被花费
func (o *DAO) HasOutput(op wire.OutPoint) (bool, error) {
	return o.DB.Has(keyOutput(op), nil)
}

// RemoveOutput 删除输出
func (o *DAO) RemoveOutput(op wire.OutPoint) error {
	return o.DB.Delete(keyOutput(op), nil)
}

// CountOutputs 未花费输出的数量
func (o *DAO) CountOutputs() (int, error) {
	iter := o.DB.NewIterator(util.BytesPrefix([]byte(outputPrefix)), nil)
	defer iter.Release()
	n := 0
	for iter.Next() {
		n++
	}
	return n, errors.WithStack(iter.Error())
}

// ApplyTransaction 在一个事务中删除交易花费的输出并保存交易产生的新输出
func (o *DAO) ApplyTransaction(tx *wire.MsgTx) error {
	txHash := tx.TxHash()
	return o.DoTransaction(func(trans *leveldb.Transaction) error {
		wo := &opt.WriteOptions{Sync: true}
		for _, in := range tx.TxIn {
			key := keyOutput(in.PreviousOutPoint)
			has, err := trans.Has(key, nil)
			if err != nil {
				return errors.Wrap(err, "check spent output failed")
			}
			if !has {
				return errors.Wrapf(ErrNotFound, "%v", in.PreviousOutPoint)
			}
			if err = trans.Delete(key, wo); err != nil {
				return errors.Wrap(err, "delete spent output failed")
			}
		}
		for i, out := range tx.TxOut {
			value, err := encodeOutput(out)
			if err != nil {
				return err
			}
			op := wire.OutPoint{Hash: txHash, Index: uint32(i)}
			if err = trans.Put(keyOutput(op), value, wo); err != nil {
				return errors.Wrap(err, "insert output failed")
			}
		}
		return nil
	})
}

// DoTransaction 事务操作
func (o *DAO) DoTransaction(fn func(trans *leveldb.Transaction) error) error {
	trans, err := o.DB.OpenTransaction()
	if err != nil {
		return errors.Wrap(err, "open transaction failed")
	}
	defer func() {
		if err != nil {
			// 事务提交失败，销毁事务
			trans.Discard()
		}
	}()

	if err = fn(trans); err != nil {
		return err
	}

	err = trans.Commit()
	if err != nil {
		return errors.Wrap(err, "commit failed")
	}

	return nil
}
