package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/keystone/internal/config"
	"github.com/roach88/keystone/internal/engine"
	"github.com/roach88/keystone/internal/journal"
	"github.com/roach88/keystone/internal/module"
	"github.com/roach88/keystone/internal/network"
	"github.com/roach88/keystone/internal/testutil"
)

const testModules = `
module: Price: {
	futures: [{kind: "deploy", artifact: "PriceModel"}]
	outputs: model: "PriceModel"
}

module: Market: {
	futures: [
		{kind: "deploy", artifact: "MarketCore", args: [{ref: "Price.model"}, 100]},
		{kind: "call", target: "MarketCore", method: "setFee", args: [{param: "fee", default: 250}]},
	]
	outputs: core: "MarketCore"
}
`

const testConfig = `
networks:
  local:
    url: http://127.0.0.1:8545/v1/secret-api-key
    chain_id: 31337
    signer_ref: LOCAL_KEY
    verification_ref: LOCAL_SCAN
journal:
  dir: {{dir}}/deployments
modules:
  dir: {{dir}}/modules
  parameters: {{dir}}/parameters.yaml
artifacts:
  dir: {{dir}}/out
log:
  level: error
`

const testSecrets = `LOCAL_KEY=0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318
LOCAL_SCAN=scan-key
`

// testEnv is a project directory with a config, secrets, CUE modules and a
// fake transport.
type testEnv struct {
	dir       string
	transport *testutil.FakeTransport
	dials     int
	environ   []string
	registry  *module.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := strings.ReplaceAll(testConfig, "{{dir}}", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keystone.yaml"), []byte(cfg), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(testSecrets), 0600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "modules"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "modules", "market.cue"), []byte(testModules), 0644))
	return &testEnv{dir: dir, transport: testutil.NewFakeTransport()}
}

func (e *testEnv) writeModules(t *testing.T, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, "modules", "market.cue"), []byte(src), 0644))
}

func (e *testEnv) writeParameters(t *testing.T, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, "parameters.yaml"), []byte(src), 0644))
}

// run executes the keystone root command with args and returns stdout.
func (e *testEnv) run(args ...string) (string, error) {
	opts := &RootOptions{
		TransportFactory: func(ctx context.Context, p *network.Profile, cfg *config.Config, logger *slog.Logger) (engine.Transport, func(), error) {
			e.dials++
			return e.transport, nil, nil
		},
		RunIDs:   testutil.NewFixedRunID("run-cli"),
		Environ:  func() []string { return e.environ },
		Registry: e.registry,
	}
	cmd := NewRootCommandWith(opts)

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{
		"--config", filepath.Join(e.dir, "keystone.yaml"),
		"--env-file", filepath.Join(e.dir, ".env"),
	}, args...))

	err := cmd.Execute()
	return out.String(), err
}

// journal opens the local network's journal.
func (e *testEnv) journal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.Open(filepath.Join(e.dir, "deployments", "chain-31337.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}
