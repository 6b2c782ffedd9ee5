package client_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/treeforest/easyscript"
	"github.com/treeforest/easyscript/dao"
	"github.com/treeforest/easyscript/internal/client"
	"github.com/treeforest/easyscript/script"
	"github.com/treeforest/easyscript/wallet"
)

func newTestServer(t *testing.T) *client.HttpClient {
	gin.SetMode(gin.TestMode)
	store, err := dao.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	srv := httptest.NewServer(easyscript.NewHttpServer(0, store, script.DefaultLimits(), nil).Handler())
	t.Cleanup(srv.Close)
	return client.NewHttpClient(srv.URL + "/")
}

func TestDecode(t *testing.T) {
	c := newTestServer(t)

	res, err := c.Decode("6a0102")
	require.NoError(t, err)
	require.Equal(t, "nulldata", res.Class)
	require.Equal(t, "0102", res.Trailing)
	require.Equal(t, []client.Op{{Opcode: "OP_RETURN"}}, res.Ops)

	_, err = c.Decode("4c")
	var serr *client.StatusError
	require.True(t, errors.As(err, &serr))
	require.Equal(t, http.StatusBadRequest, serr.StatusCode)
	require.Equal(t, "ErrDataTooSmall", serr.Code)
}

func TestSpend(t *testing.T) {
	c := newTestServer(t)

	w, err := wallet.New()
	require.NoError(t, err)
	lock, err := w.LockScript()
	require.NoError(t, err)

	prev := wire.OutPoint{Hash: chainhash.Hash{0xaa}, Index: 3}
	require.NoError(t, c.PutOutput(prev, wire.NewTxOut(50, lock.Bytes())))

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&prev, nil, nil))
	tx.AddTxOut(wire.NewTxOut(50, lock.Bytes()))
	unlock, err := w.UnlockScript(tx, 0, lock, script.SigHashAll)
	require.NoError(t, err)
	tx.TxIn[0].SignatureScript = unlock.Bytes()

	res, err := c.Verify(unlock.Bytes(), lock.Bytes(), tx, 0)
	require.NoError(t, err)
	require.True(t, res.Valid)

	res, err = c.Verify(unlock.Bytes(), lock.Bytes(), nil, 0)
	require.NoError(t, err)
	require.False(t, res.Valid)
	require.Equal(t, "ErrRequiresContext", res.Code)

	txid, err := c.SubmitTx(tx)
	require.NoError(t, err)
	require.Equal(t, tx.TxHash().String(), txid)

	_, err = c.SubmitTx(tx)
	var serr *client.StatusError
	require.True(t, errors.As(err, &serr))
	require.Equal(t, http.StatusBadRequest, serr.StatusCode)
	require.Contains(t, serr.Message, "invalid transaction input 0")
}

func TestOutputs(t *testing.T) {
	c := newTestServer(t)
	op := wire.OutPoint{Hash: chainhash.Hash{0xbb}, Index: 1}

	err := c.PutOutput(op, wire.NewTxOut(-5, []byte{script.OP_TRUE.Value()}))
	var serr *client.StatusError
	require.True(t, errors.As(err, &serr))
	require.Equal(t, http.StatusBadRequest, serr.StatusCode)

	require.NoError(t, c.PutOutput(op, wire.NewTxOut(5, []byte{script.OP_TRUE.Value()})))
	err = c.PutOutput(op, wire.NewTxOut(5, []byte{script.OP_TRUE.Value()}))
	require.True(t, errors.As(err, &serr))
	require.Equal(t, http.StatusConflict, serr.StatusCode)

	require.NoError(t, c.RemoveOutput(op))
	require.NoError(t, c.PutOutput(op, wire.NewTxOut(5, []byte{script.OP_TRUE.Value()})))
}
