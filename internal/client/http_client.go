package client

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
)

// HttpClient 访问脚本验证服务的 http 接口
type HttpClient struct {
	baseUrl string
	hc      *http.Client
}

func NewHttpClient(baseUrl string) *HttpClient {
	return &HttpClient{baseUrl: strings.TrimRight(baseUrl, "/"), hc: http.DefaultClient}
}

type Op struct {
	Opcode string `json:"opcode"`
	Data   string `json:"data,omitempty"`
}

type DecodeResult struct {
	Ops      []Op   `json:"ops"`
	Trailing string `json:"trailing,omitempty"`
	Disasm   string `json:"disasm"`
	Class    string `json:"class"`
}

type VerifyResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

// StatusError 服务端返回的非200响应
type StatusError struct {
	StatusCode int
	Message    string
	Code       string // 脚本错误码，非脚本错误时为空
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("status code:%d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("status code:%d %s", e.StatusCode, e.Message)
}

func serializeTx(tx *wire.MsgTx) (string, error) {
	if tx == nil {
		return "", nil
	}
	var buf bytes.Buffer
	buf.Grow(tx.SerializeSize())
	if err := tx.Serialize(&buf); err != nil {
		return "", errors.Wrap(err, "serialize transaction")
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

func (c *HttpClient) Decode(scriptHex string) (*DecodeResult, error) {
	resp := &DecodeResult{}
	if err := c.post("/decode", map[string]interface{}{"script": scriptHex}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Verify tx 为 nil 时在没有交易上下文的情况下验证
func (c *HttpClient) Verify(unlock, lock []byte, tx *wire.MsgTx, idx int) (*VerifyResult, error) {
	rawTx, err := serializeTx(tx)
	if err != nil {
		return nil, err
	}
	req := map[string]interface{}{
		"unlock": hex.EncodeToString(unlock),
		"lock":   hex.EncodeToString(lock),
		"tx":     rawTx,
		"index":  idx,
	}
	resp := &VerifyResult{}
	if err = c.post("/verify", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// PutOutput 向服务端登记一个可花费的输出
func (c *HttpClient) PutOutput(op wire.OutPoint, out *wire.TxOut) error {
	req := map[string]interface{}{
		"txid":   op.Hash.String(),
		"index":  op.Index,
		"value":  out.Value,
		"script": hex.EncodeToString(out.PkScript),
	}
	return c.post("/utxo", req, nil)
}

// RemoveOutput 删除服务端登记的输出
func (c *HttpClient) RemoveOutput(op wire.OutPoint) error {
	req := map[string]interface{}{
		"txid":  op.Hash.String(),
		"index": op.Index,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return errors.WithStack(err)
	}
	r, err := http.NewRequest(http.MethodDelete, c.Url("/utxo"), bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "create delete request failed")
	}
	r.Header.Set("Content-Type", "application/json")
	_, err = c.Do(r)
	return err
}

// SubmitTx 提交交易，返回交易哈希
func (c *HttpClient) SubmitTx(tx *wire.MsgTx) (string, error) {
	rawTx, err := serializeTx(tx)
	if err != nil {
		return "", err
	}
	resp := struct {
		TxID string `json:"txid"`
	}{}
	if err = c.post("/tx", map[string]interface{}{"tx": rawTx}, &resp); err != nil {
		return "", err
	}
	return resp.TxID, nil
}

func (c *HttpClient) Url(route string) string {
	return fmt.Sprintf("%s%s", c.baseUrl, route)
}

func (c *HttpClient) post(route string, body, result interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.WithStack(err)
	}
	b, err := c.Post(route, data)
	if err != nil {
		return err
	}
	if result == nil || len(b) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(b, result), "unmarshal response")
}

func (c *HttpClient) Post(route string, body []byte) ([]byte, error) {
	req, err := http.NewRequest(http.MethodPost, c.Url(route), bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create post request failed")
	}
	req.Header.Set("Content-Type", "application/json")

	return c.Do(req)
}

func (c *HttpClient) Do(req *http.Request) ([]byte, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	b, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read resp body failed")
	}

	if resp.StatusCode != http.StatusOK {
		serr := &StatusError{StatusCode: resp.StatusCode, Message: string(b)}
		msg := struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}{}
		if json.Unmarshal(b, &msg) == nil && msg.Error != "" {
			serr.Message, serr.Code = msg.Error, msg.Code
		}
		return nil, serr
	}

	return b, nil
}
