package config

import (
	"io/ioutil"

	"github.com/pkg/errors"
	"github.com/treeforest/easyscript/script"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// 对外服务配置
	HttpServerPort int `yaml:"http_server_port"` // web监听端口

	// 存储配置
	LevelDBPath string `yaml:"leveldb_path"` // 未花费输出数据库路径
	WalletFile  string `yaml:"wallet_file"`  // 钱包文件

	SigCacheSize int    `yaml:"sig_cache_size"` // 签名缓存容量
	LogLevel     string `yaml:"log_level"`      // debug/info/warn/error

	// 脚本解释器限制，未设置的字段使用默认值
	Script ScriptConfig `yaml:"script"`
}

type ScriptConfig struct {
	MaxScriptSize  int `yaml:"max_script_size"`
	MaxOps         int `yaml:"max_ops"`
	MaxStackSize   int `yaml:"max_stack_size"`
	MaxElementSize int `yaml:"max_element_size"`
	MaxNumLen      int `yaml:"max_num_len"`
}

func DefaultConfig() *Config {
	limits := script.DefaultLimits()
	return &Config{
		HttpServerPort: 8080,
		LevelDBPath:    ".",
		WalletFile:     "wallets.dat",
		SigCacheSize:   10000,
		LogLevel:       "info",
		Script: ScriptConfig{
			MaxScriptSize:  limits.MaxScriptSize,
			MaxOps:         limits.MaxOps,
			MaxStackSize:   limits.MaxStackSize,
			MaxElementSize: limits.MaxScriptElementSize,
			MaxNumLen:      limits.MaxNumLen,
		},
	}
}

// Limits 解释器的资源限制
func (c *Config) Limits() script.Limits {
	return script.Limits{
		MaxScriptSize:        c.Script.MaxScriptSize,
		MaxOps:               c.Script.MaxOps,
		MaxStackSize:         c.Script.MaxStackSize,
		MaxScriptElementSize: c.Script.MaxElementSize,
		MaxNumLen:            c.Script.MaxNumLen,
	}
}

func (c *Config) Unmarshal(b []byte) error {
	return yaml.Unmarshal(b, c)
}

func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Load 读取配置文件，文件中未出现的字段保留默认值
func Load(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	conf := DefaultConfig()
	if err = conf.Unmarshal(data); err != nil {
		return nil, errors.WithStack(err)
	}

	return conf, nil
}
