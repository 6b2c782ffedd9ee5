package walletmgr

import (
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	"github.com/treeforest/easyscript/pkg/gob"
	"github.com/treeforest/easyscript/wallet"
	log "github.com/treeforest/logger"
)

const (
	// DefaultWalletFile 默认的钱包文件
	DefaultWalletFile = "wallets.dat"
)

// WalletManager 钱包管理器
type WalletManager struct {
	Keys    map[string]int   // address => index 快速删除
	Wallets []*wallet.Wallet // 链表确保有序

	filename string
}

// New 加载钱包文件，文件不存在时创建空的管理器
func New(filename string) (*WalletManager, error) {
	mgr := &WalletManager{Keys: map[string]int{}, Wallets: []*wallet.Wallet{}, filename: filename}
	if err := mgr.load(); err != nil {
		return nil, err
	}
	return mgr, nil
}

func (m *WalletManager) load() error {
	if !m.isExistWalletFile() {
		log.Debug("wallet file not found, start with an empty one:", m.filename)
		return nil
	}
	data, err := ioutil.ReadFile(m.filename)
	if err != nil {
		return errors.Wrap(err, "read wallet file failed")
	}
	if err = gob.Decode(data, m); err != nil {
		return errors.Wrap(err, "decode wallet file failed")
	}
	return nil
}

func (m *WalletManager) CreateWallet() (*wallet.Wallet, error) {
	w, err := wallet.New()
	if err != nil {
		return nil, err
	}
	address := string(w.GetAddress())
	m.Keys[address] = len(m.Wallets)
	m.Wallets = append(m.Wallets, w)
	if err = m.save(); err != nil {
		return nil, err
	}
	return w, nil
}

func (m *WalletManager) RemoveWallet(address string) error {
	i, ok := m.Keys[address]
	if !ok {
		return errors.New("address not exist")
	}
	m.Wallets = append(m.Wallets[:i], m.Wallets[i+1:]...)
	delete(m.Keys, address)
	// 后面的钱包索引前移
	for addr, idx := range m.Keys {
		if idx > i {
			m.Keys[addr] = idx - 1
		}
	}
	return m.save()
}

func (m *WalletManager) Addresses() []string {
	var addresses []string
	for _, w := range m.Wallets {
		addresses = append(addresses, string(w.GetAddress()))
	}
	return addresses
}

func (m *WalletManager) GetWallet(address string) (*wallet.Wallet, error) {
	i, has := m.Keys[address]
	if !has {
		return nil, errors.Errorf("not found address %s", address)
	}
	return m.Wallets[i], nil
}

func (m *WalletManager) Has(address string) bool {
	_, has := m.Keys[address]
	return has
}

func (m *WalletManager) save() error {
	data, err := gob.Encode(m)
	if err != nil {
		return err
	}
	if err = ioutil.WriteFile(m.filename, data, 0600); err != nil {
		return errors.Wrap(err, "write wallet file failed")
	}
	return nil
}

func (m *WalletManager) isExistWalletFile() bool {
	if _, err := os.Stat(m.filename); os.IsNotExist(err) {
		return false
	}
	return true
}
