package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keystone/internal/ir"
)

func TestParseParameters(t *testing.T) {
	params, err := ParseParameters([]byte(`
IPMarket:
  storyHelper: "0x7cb1D6f46cb3E99D7BAf7bF9f7FA8Eb88313D8e2"
  fee: 250
  enabled: true
  tiers: [1, 2, 3]
  limits:
    daily: 10
`))
	require.NoError(t, err)

	m := params["IPMarket"]
	assert.Equal(t, ir.IRString("0x7cb1D6f46cb3E99D7BAf7bF9f7FA8Eb88313D8e2"), m["storyHelper"])
	assert.Equal(t, ir.IRInt(250), m["fee"])
	assert.Equal(t, ir.IRBool(true), m["enabled"])
	assert.Equal(t, ir.IRArray{ir.IRInt(1), ir.IRInt(2), ir.IRInt(3)}, m["tiers"])
	assert.Equal(t, ir.IRObject{"daily": ir.IRInt(10)}, m["limits"])
}

func TestParseParametersRejectsFloat(t *testing.T) {
	_, err := ParseParameters([]byte("M:\n  ratio: 0.5\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "M.ratio")
}

func TestLoadParameters(t *testing.T) {
	params, err := LoadParameters("")
	require.NoError(t, err)
	assert.Empty(t, params)

	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("M:\n  a: x\n"), 0o644))
	params, err = LoadParameters(path)
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("x"), params["M"]["a"])

	_, err = LoadParameters(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
