package network

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSecrets_FileAndEnviron(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DEPLOYER_PRIVATE_KEY=0xfile\nOPSCAN_API_KEY=from-file\n"), 0o600))

	secrets, err := LoadSecrets(path, []string{"OPSCAN_API_KEY=from-env", "MALFORMED", "=nokey"})
	require.NoError(t, err)

	assert.Equal(t, "0xfile", secrets["DEPLOYER_PRIVATE_KEY"])
	assert.Equal(t, "from-env", secrets["OPSCAN_API_KEY"])
	assert.NotContains(t, secrets, "MALFORMED")
	assert.NotContains(t, secrets, "")
}

func TestLoadSecrets_MissingFileIgnored(t *testing.T) {
	secrets, err := LoadSecrets(filepath.Join(t.TempDir(), "absent.env"), []string{"A=b"})
	require.NoError(t, err)
	assert.Equal(t, Secrets{"A": "b"}, secrets)
}

func TestLoadSecrets_ValueContainingEquals(t *testing.T) {
	secrets, err := LoadSecrets("", []string{"RPC=https://x.io/?k=v"})
	require.NoError(t, err)
	assert.Equal(t, "https://x.io/?k=v", secrets["RPC"])
}
