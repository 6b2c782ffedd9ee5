package walletmgr

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWalletManager(t *testing.T) {
	filename := filepath.Join(t.TempDir(), DefaultWalletFile)
	mgr, err := New(filename)
	require.NoError(t, err)
	require.Empty(t, mgr.Addresses())

	var addresses []string
	for i := 0; i < 3; i++ {
		w, err := mgr.CreateWallet()
		require.NoError(t, err)
		addresses = append(addresses, string(w.GetAddress()))
	}
	require.Equal(t, addresses, mgr.Addresses())

	// 重新加载
	loaded, err := New(filename)
	require.NoError(t, err)
	require.Equal(t, addresses, loaded.Addresses())

	w, err := loaded.GetWallet(addresses[2])
	require.NoError(t, err)
	require.Equal(t, addresses[2], string(w.GetAddress()))

	require.NoError(t, loaded.RemoveWallet(addresses[0]))
	require.False(t, loaded.Has(addresses[0]))
	w, err = loaded.GetWallet(addresses[2])
	require.NoError(t, err)
	require.Equal(t, addresses[2], string(w.GetAddress()))

	require.Error(t, loaded.RemoveWallet(addresses[0]))
	_, err = loaded.GetWallet("unknown")
	require.Error(t, err)
}
