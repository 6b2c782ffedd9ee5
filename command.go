package easyscript

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/treeforest/easyscript/base58check"
	"github.com/treeforest/easyscript/config"
	"github.com/treeforest/easyscript/dao"
	"github.com/treeforest/easyscript/internal/client"
	"github.com/treeforest/easyscript/pkg/graceful"
	"github.com/treeforest/easyscript/script"
	"github.com/treeforest/easyscript/sigcache"
	"github.com/treeforest/easyscript/walletmgr"
	log "github.com/treeforest/logger"
	"gopkg.in/urfave/cli.v1"
)

type Command struct {
	app  *cli.App
	conf *config.Config
}

func NewCommand(w io.Writer) *Command {
	c := &Command{conf: config.DefaultConfig()}

	app := cli.NewApp()
	app.Name = "easyscript"
	app.Usage = "比特币脚本解释器"
	app.Writer = w
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config", Usage: "配置文件路径"},
	}
	app.Before = c.loadConfig

	txFlags := []cli.Flag{
		cli.StringFlag{Name: "tx", Usage: "十六进制编码的交易"},
		cli.IntFlag{Name: "index", Usage: "输入索引"},
		cli.StringFlag{Name: "lock", Usage: "被花费输出的锁定脚本（十六进制）"},
		cli.StringFlag{Name: "hashtype", Value: "ALL", Usage: "ALL/NONE/SINGLE，可附加 |ANYONECANPAY"},
	}

	app.Commands = []cli.Command{
		{
			Name:      "decode",
			Usage:     "解码脚本，逐行输出指令",
			ArgsUsage: "SCRIPT_HEX",
			Action:    c.decode,
		},
		{
			Name:      "disasm",
			Usage:     "反汇编脚本",
			ArgsUsage: "SCRIPT_HEX",
			Action:    c.disasm,
		},
		{
			Name:  "verify",
			Usage: "验证解锁脚本能否花费锁定脚本",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "unlock", Usage: "解锁脚本（十六进制）"},
				cli.StringFlag{Name: "lock", Usage: "锁定脚本（十六进制）"},
				cli.StringFlag{Name: "tx", Usage: "十六进制编码的交易，可选"},
				cli.IntFlag{Name: "index", Usage: "输入索引"},
			},
			Action: c.verify,
		},
		{
			Name:   "sighash",
			Usage:  "计算交易输入的签名哈希",
			Flags:  txFlags,
			Action: c.sighash,
		},
		{
			Name:   "createwallet",
			Usage:  "创建钱包",
			Action: c.createWallet,
		},
		{
			Name:  "removewallet",
			Usage: "删除钱包",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "address", Usage: "钱包地址"},
			},
			Action: c.removeWallet,
		},
		{
			Name:   "addresses",
			Usage:  "获取钱包地址列表",
			Action: c.addresses,
		},
		{
			Name:      "p2pkh",
			Usage:     "生成支付到地址的锁定脚本",
			ArgsUsage: "ADDRESS",
			Action:    c.p2pkh,
		},
		{
			Name:  "sign",
			Usage: "使用钱包为交易输入生成解锁脚本",
			Flags: append([]cli.Flag{
				cli.StringFlag{Name: "address", Usage: "钱包地址"},
			}, txFlags...),
			Action: c.sign,
		},
		{
			Name:  "submit",
			Usage: "向运行中的服务提交交易",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "server", Value: "http://127.0.0.1:8080", Usage: "服务地址"},
				cli.StringFlag{Name: "tx", Usage: "十六进制编码的交易"},
			},
			Action: c.submit,
		},
		{
			Name:   "serve",
			Usage:  "启动 http 服务",
			Action: c.serve,
		},
	}

	c.app = app
	return c
}

func (c *Command) Run(args []string) error {
	return c.app.Run(args)
}

func (c *Command) loadConfig(ctx *cli.Context) error {
	if path := ctx.GlobalString("config"); path != "" {
		conf, err := config.Load(path)
		if err != nil {
			return errors.Wrap(err, "load config failed")
		}
		c.conf = conf
	}
	if strings.ToLower(c.conf.LogLevel) == "debug" {
		log.SetLevel(log.DEBUG)
	}
	return nil
}

func (c *Command) printf(format string, a ...interface{}) {
	_, _ = fmt.Fprintf(c.app.Writer, format, a...)
}

func scriptArg(ctx *cli.Context) (script.Script, error) {
	if ctx.NArg() != 1 {
		return script.Script{}, errors.New("expect exactly one hex encoded script")
	}
	return script.NewScriptFromHex(ctx.Args().First())
}

func (c *Command) decode(ctx *cli.Context) error {
	sc, err := scriptArg(ctx)
	if err != nil {
		return err
	}
	resp, err := decodeScript(sc)
	if err != nil {
		return err
	}
	for i, op := range resp.Ops {
		if op.Data != "" {
			c.printf("%d\t%s\t%s\n", i, op.Opcode, op.Data)
		} else {
			c.printf("%d\t%s\n", i, op.Opcode)
		}
	}
	if resp.Trailing != "" {
		c.printf("trailing\t%s\n", resp.Trailing)
	}
	c.printf("class\t%s\n", resp.Class)
	return nil
}

func (c *Command) disasm(ctx *cli.Context) error {
	sc, err := scriptArg(ctx)
	if err != nil {
		return err
	}
	c.printf("%s\n", sc)
	return nil
}

func (c *Command) verify(ctx *cli.Context) error {
	unlock, err := script.NewScriptFromHex(ctx.String("unlock"))
	if err != nil {
		return err
	}
	lock, err := script.NewScriptFromHex(ctx.String("lock"))
	if err != nil {
		return err
	}
	tx, err := optionalTx(ctx.String("tx"))
	if err != nil {
		return err
	}

	ok, err := script.NewEngine(c.conf.Limits(), nil).Verify(unlock, lock, tx, ctx.Int("index"))
	if err != nil {
		kind, _ := script.KindOf(err)
		c.printf("false\t%s\t%v\n", kind, err)
		return nil
	}
	c.printf("%t\n", ok)
	return nil
}

func optionalTx(s string) (*wire.MsgTx, error) {
	if s == "" {
		return nil, nil
	}
	return decodeHexTx(s)
}

// parseHashType 与 SigHashType.String 的格式相同，例如 "SINGLE|ANYONECANPAY"
func parseHashType(s string) (script.SigHashType, error) {
	parts := strings.Split(strings.ToUpper(s), "|")
	var t script.SigHashType
	switch parts[0] {
	case "ALL":
		t = script.SigHashAll
	case "NONE":
		t = script.SigHashNone
	case "SINGLE":
		t = script.SigHashSingle
	default:
		return 0, errors.Errorf("unknown hash type %q", s)
	}
	switch {
	case len(parts) == 1:
	case len(parts) == 2 && parts[1] == "ANYONECANPAY":
		t |= script.SigHashAnyOneCanPay
	default:
		return 0, errors.Errorf("unknown hash type %q", s)
	}
	return t, nil
}

type txInputArgs struct {
	tx       *wire.MsgTx
	index    int
	lock     script.Script
	hashType script.SigHashType
}

func parseTxInputArgs(ctx *cli.Context) (*txInputArgs, error) {
	tx, err := decodeHexTx(ctx.String("tx"))
	if err != nil {
		return nil, err
	}
	lock, err := script.NewScriptFromHex(ctx.String("lock"))
	if err != nil {
		return nil, err
	}
	hashType, err := parseHashType(ctx.String("hashtype"))
	if err != nil {
		return nil, err
	}
	return &txInputArgs{tx: tx, index: ctx.Int("index"), lock: lock, hashType: hashType}, nil
}

func (c *Command) sighash(ctx *cli.Context) error {
	args, err := parseTxInputArgs(ctx)
	if err != nil {
		return err
	}
	hash, err := script.CalcSignatureHash(args.tx, args.index, args.lock, args.hashType)
	if err != nil {
		return err
	}
	c.printf("%x\n", hash)
	return nil
}

func (c *Command) createWallet(ctx *cli.Context) error {
	mgr, err := walletmgr.New(c.conf.WalletFile)
	if err != nil {
		return err
	}
	w, err := mgr.CreateWallet()
	if err != nil {
		return err
	}
	c.printf("%s\n", w.GetAddress())
	return nil
}

func (c *Command) removeWallet(ctx *cli.Context) error {
	address := ctx.String("address")
	if address == "" {
		return errors.New("address is required")
	}
	mgr, err := walletmgr.New(c.conf.WalletFile)
	if err != nil {
		return err
	}
	return mgr.RemoveWallet(address)
}

func (c *Command) addresses(ctx *cli.Context) error {
	mgr, err := walletmgr.New(c.conf.WalletFile)
	if err != nil {
		return err
	}
	for _, address := range mgr.Addresses() {
		c.printf("%s\n", address)
	}
	return nil
}

func (c *Command) p2pkh(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("expect exactly one address")
	}
	lock, err := script.PayToAddrScript([]byte(ctx.Args().First()))
	if err != nil {
		return err
	}
	c.printf("%s\n", lock.Hex())
	return nil
}

func (c *Command) sign(ctx *cli.Context) error {
	address := ctx.String("address")
	if _, err := base58check.Decode([]byte(address)); err != nil {
		return err
	}
	args, err := parseTxInputArgs(ctx)
	if err != nil {
		return err
	}

	mgr, err := walletmgr.New(c.conf.WalletFile)
	if err != nil {
		return err
	}
	w, err := mgr.GetWallet(address)
	if err != nil {
		return err
	}

	unlock, err := w.UnlockScript(args.tx, args.index, args.lock, args.hashType)
	if err != nil {
		return err
	}
	c.printf("%s\n", hex.EncodeToString(unlock.Bytes()))
	return nil
}

func (c *Command) submit(ctx *cli.Context) error {
	tx, err := decodeHexTx(ctx.String("tx"))
	if err != nil {
		return err
	}
	txid, err := client.NewHttpClient(ctx.String("server")).SubmitTx(tx)
	if err != nil {
		return err
	}
	c.printf("%s\n", txid)
	return nil
}

// openStore 打开未花费输出数据库，返回其中的输出数量用于启动日志
func openStore(path string) (*dao.DAO, error) {
	if dao.IsNotExistDB(path) {
		log.Info("create utxo database in", path)
	}
	store, err := dao.New(path)
	if err != nil {
		return nil, err
	}
	n, err := store.CountOutputs()
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	log.Infof("utxo database loaded, %d spendable outputs", n)
	return store, nil
}

func (c *Command) serve(ctx *cli.Context) error {
	store, err := openStore(c.conf.LevelDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	cache, err := sigcache.New(c.conf.SigCacheSize)
	if err != nil {
		return err
	}

	srv := NewHttpServer(c.conf.HttpServerPort, store, c.conf.Limits(), cache)
	go srv.Run()

	graceful.Stop(srv.Stop)
	return nil
}

// Main 命令行入口
func Main() {
	if err := NewCommand(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
