package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/treeforest/easyscript/script"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
http_server_port: 9090
leveldb_path: /tmp/utxo
log_level: debug
script:
  max_ops: 500
  max_num_len: 5
`)
	require.NoError(t, ioutil.WriteFile(path, data, 0644))

	conf, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, conf.HttpServerPort)
	require.Equal(t, "/tmp/utxo", conf.LevelDBPath)
	require.Equal(t, "debug", conf.LogLevel)
	require.Equal(t, 10000, conf.SigCacheSize)

	limits := conf.Limits()
	require.Equal(t, 500, limits.MaxOps)
	require.Equal(t, 5, limits.MaxNumLen)
	require.Equal(t, script.MaxScriptSize, limits.MaxScriptSize)
	require.Equal(t, script.MaxStackSize, limits.MaxStackSize)
	require.Equal(t, script.MaxScriptElementSize, limits.MaxScriptElementSize)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestMarshal(t *testing.T) {
	conf := DefaultConfig()
	data, err := conf.Marshal()
	require.NoError(t, err)

	decoded := new(Config)
	require.NoError(t, decoded.Unmarshal(data))
	require.Equal(t, conf, decoded)
	require.Equal(t, script.DefaultLimits(), decoded.Limits())
}
