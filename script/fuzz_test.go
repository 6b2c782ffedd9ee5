package script

import (
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/require"
)

// 任意输入都不能导致崩溃，只能返回错误
func TestFuzzExecute(t *testing.T) {
	f := fuzz.New().NilChance(0).NumElements(0, 128)
	tx := newTestTx()

	for i := 0; i < 5000; i++ {
		var raw []byte
		f.Fuzz(&raw)
		s := NewScript(raw)

		require.NotPanics(t, func() {
			_, _ = NewEngine(DefaultLimits(), nil).Run(s, nil)
			_, _ = NewEngine(DefaultLimits(), nil).Run(s, NewTxContext(tx, 0, s))
			_, _ = Verify(s, s, tx, 1)
			_ = s.String()
			GetScriptClass(s)
		}, "script %x", raw)
	}
}

// 只由合法操作码组成的脚本，解码后重新编码可以得到相同的指令序列
func TestFuzzDecodeRoundTrip(t *testing.T) {
	values := make([]byte, 0, 256)
	for v := 0; v < 256; v++ {
		if validOpcode[v] && !(v >= 0x01 && v <= 0x4e) {
			values = append(values, byte(v))
		}
	}

	f := fuzz.New().NilChance(0).NumElements(0, 64)
	for i := 0; i < 2000; i++ {
		var picks []uint8
		var payloads [][]byte
		f.Fuzz(&picks)
		f.Fuzz(&payloads)

		b := NewBuilder()
		for j, p := range picks {
			if p%4 == 0 && j < len(payloads) {
				b.AddData(payloads[j])
				continue
			}
			op, _, err := DecodeOp([]byte{values[int(p)%len(values)]})
			require.NoError(t, err)
			b.Add(op)
		}
		s, err := b.Build()
		require.NoError(t, err)

		ops, trailing, err := s.Decode()
		require.NoError(t, err)

		rb := NewBuilder()
		for _, op := range ops {
			rb.Add(op)
		}
		if trailing != nil {
			rb.SetTrailing(trailing)
		}
		rebuilt, err := rb.Build()
		require.NoError(t, err)

		again, trailingAgain, err := rebuilt.Decode()
		require.NoError(t, err)
		require.Equal(t, trailing, trailingAgain)
		require.Equal(t, len(ops), len(again))
		for j := range ops {
			require.True(t, ops[j].AliasEqual(again[j]))
		}
	}
}
