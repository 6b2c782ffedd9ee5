package easyscript

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/gin-gonic/gin"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	"github.com/treeforest/easyscript/dao"
	"github.com/treeforest/easyscript/script"
	log "github.com/treeforest/logger"
)

const requestIDKey = "request_id"

type HttpServer struct {
	port      int
	store     *dao.DAO
	validator *Validator
	limits    script.Limits
	sigCache  script.SigCache
	srv       *http.Server
}

func NewHttpServer(port int, store *dao.DAO, limits script.Limits, sigCache script.SigCache) *HttpServer {
	s := &HttpServer{
		port:      port,
		store:     store,
		validator: NewValidator(store, limits, sigCache),
		limits:    limits,
		sigCache:  sigCache,
	}
	s.srv = &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: s.Handler()}
	return s
}

// Handler 路由
func (s *HttpServer) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestID())

	r.POST("/decode", s.handleDecode)
	r.POST("/verify", s.handleVerify)
	r.POST("/utxo", s.handlePostUtxo)
	r.DELETE("/utxo", s.handleDeleteUtxo)
	r.POST("/tx", s.handlePostTx)

	return r
}

func (s *HttpServer) Run() {
	log.Infof("http server listening on :%d", s.port)
	err := s.srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("http server run failed:", err)
	}
}

func (s *HttpServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Warn("http server shutdown:", err)
	}
	log.Info("http server stopped")
}

// requestID 为每个请求分配一个id，用于关联日志
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.New()
		c.Set(requestIDKey, id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

func decodeHexScript(s string) (script.Script, error) {
	return script.NewScriptFromHex(s)
}

func decodeHexTx(s string) (*wire.MsgTx, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode transaction hex")
	}
	tx := new(wire.MsgTx)
	if err = tx.Deserialize(bytes.NewReader(b)); err != nil {
		return nil, errors.Wrap(err, "deserialize transaction")
	}
	return tx, nil
}

// scriptErrorResponse 脚本错误附带错误码与分类
func scriptErrorResponse(err error) gin.H {
	h := gin.H{"error": err.Error()}
	var serr script.Error
	if errors.As(err, &serr) {
		h["code"] = serr.ErrorCode.String()
		h["kind"] = serr.Kind().String()
	}
	return h
}

type OpJSON struct {
	Opcode string `json:"opcode"`
	Data   string `json:"data,omitempty"`
}

type DecodeResponse struct {
	Ops      []OpJSON `json:"ops"`
	Trailing string   `json:"trailing,omitempty"`
	Disasm   string   `json:"disasm"`
	Class    string   `json:"class"`
}

func decodeScript(sc script.Script) (*DecodeResponse, error) {
	ops, trailing, err := sc.Decode()
	if err != nil {
		return nil, err
	}
	resp := &DecodeResponse{
		Ops:      make([]OpJSON, 0, len(ops)),
		Trailing: hex.EncodeToString(trailing),
		Disasm:   sc.String(),
		Class:    script.GetScriptClass(sc).String(),
	}
	for _, op := range ops {
		resp.Ops = append(resp.Ops, OpJSON{Opcode: op.Code.String(), Data: hex.EncodeToString(op.Data)})
	}
	return resp, nil
}

func (s *HttpServer) handleDecode(c *gin.Context) {
	type Request struct {
		Script string `json:"script"`
	}
	req := Request{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request obj error"})
		return
	}

	sc, err := decodeHexScript(req.Script)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := decodeScript(sc)
	if err != nil {
		c.JSON(http.StatusBadRequest, scriptErrorResponse(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *HttpServer) handleVerify(c *gin.Context) {
	type Request struct {
		Unlock string `json:"unlock"`
		Lock   string `json:"lock"`
		Tx     string `json:"tx"`
		Index  int    `json:"index"`
	}
	req := Request{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request obj error"})
		return
	}

	unlock, err := decodeHexScript(req.Unlock)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	lock, err := decodeHexScript(req.Lock)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var tx *wire.MsgTx
	if req.Tx != "" {
		if tx, err = decodeHexTx(req.Tx); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	ok, err := script.NewEngine(s.limits, s.sigCache).Verify(unlock, lock, tx, req.Index)
	if err != nil {
		log.Debugf("[%s] verify failed: %v", c.GetString(requestIDKey), err)
		resp := scriptErrorResponse(err)
		resp["valid"] = false
		c.JSON(http.StatusOK, resp)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": ok})
}

type utxoRequest struct {
	TxID   string `json:"txid"`
	Index  uint32 `json:"index"`
	Value  int64  `json:"value"`
	Script string `json:"script"`
}

func (r *utxoRequest) outPoint() (wire.OutPoint, error) {
	hash, err := chainhash.NewHashFromStr(r.TxID)
	if err != nil {
		return wire.OutPoint{}, err
	}
	return wire.OutPoint{Hash: *hash, Index: r.Index}, nil
}

func (s *HttpServer) handlePostUtxo(c *gin.Context) {
	req := utxoRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request obj error"})
		return
	}

	op, err := req.outPoint()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err = CheckOutputValue(req.Value); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	lock, err := decodeHexScript(req.Script)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	has, err := s.store.HasOutput(op)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if has {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("output %v already exists", op)})
		return
	}

	if err = s.store.PutOutput(op, wire.NewTxOut(req.Value, lock.Bytes())); err != nil {
		log.Errorf("[%s] put output: %v", c.GetString(requestIDKey), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

func (s *HttpServer) handleDeleteUtxo(c *gin.Context) {
	req := utxoRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request obj error"})
		return
	}
	op, err := req.outPoint()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err = s.store.RemoveOutput(op); err != nil {
		log.Errorf("[%s] remove output: %v", c.GetString(requestIDKey), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

func (s *HttpServer) handlePostTx(c *gin.Context) {
	type Request struct {
		Tx string `json:"tx"`
	}
	req := Request{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request obj error"})
		return
	}

	tx, err := decodeHexTx(req.Tx)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err = s.validator.ValidateTransaction(tx); err != nil {
		log.Infof("[%s] reject tx %s: %v", c.GetString(requestIDKey), tx.TxHash(), err)
		c.JSON(http.StatusBadRequest, scriptErrorResponse(err))
		return
	}
	if err = s.store.ApplyTransaction(tx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"txid": tx.TxHash().String()})
}
