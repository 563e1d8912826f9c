package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keystone/internal/ir"
	"github.com/roach88/keystone/internal/module"
)

func TestValidate_AllModulesValid(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run("validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Market")
	assert.Contains(t, out, "3 futures")
	assert.Contains(t, out, "All 2 modules valid")
}

func TestValidate_ExplicitDirectory(t *testing.T) {
	env := newTestEnv(t)
	dir := filepath.Join(env.dir, "other")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.cue"), []byte(`
module: Solo: {
	futures: [{kind: "value", id: "answer", value: 42}]
}
`), 0644))

	out, err := env.run("--format", "json", "validate", dir)
	require.NoError(t, err)

	var resp struct {
		Data ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, []ModuleCheck{{Module: "Solo", Futures: 1}}, resp.Data.Modules)
}

func TestValidate_ReportsEveryBrokenModule(t *testing.T) {
	env := newTestEnv(t)
	env.writeModules(t, `
module: Good: {
	futures: [{kind: "deploy", artifact: "Good"}]
}
module: NeedsOwner: {
	futures: [{kind: "deploy", artifact: "Owned", args: [{param: "owner"}]}]
}
module: UsesMissing: {
	futures: [{kind: "deploy", artifact: "X", args: [{ref: "Missing.out"}]}]
}
`)

	out, err := env.run("--format", "json", "validate")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeModule, resp.Error.Code)

	raw, err := json.Marshal(resp.Error.Details)
	require.NoError(t, err)
	var result ValidationResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.False(t, result.Valid)
	require.Len(t, result.Modules, 3)
	assert.Empty(t, result.Modules[0].Error)
	assert.Contains(t, result.Modules[1].Error, "owner")
	assert.Contains(t, result.Modules[2].Error, "Missing")
}

func TestValidate_GoModulesOnly(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.Remove(filepath.Join(env.dir, "modules", "market.cue")))

	env.registry = module.NewRegistry()
	env.registry.MustRegister("Answer", func(c *module.Context) (module.Outputs, error) {
		v := c.Value("answer", ir.IRInt(42))
		return module.Outputs{"answer": v}, nil
	})

	out, err := env.run("validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Answer")
	assert.Contains(t, out, "All 1 modules valid")
}

func TestDeploy_GoAndCUEModulesTogether(t *testing.T) {
	env := newTestEnv(t)
	env.registry = module.NewRegistry()
	env.registry.MustRegister("Launch", func(c *module.Context) (module.Outputs, error) {
		core := c.Output("Market", "core")
		c.Call(core, "unpause", nil)
		return module.Outputs{"core": core}, nil
	})

	out, err := env.run("deploy", "Launch", "--network", "local")
	require.NoError(t, err)
	assert.Contains(t, out, "executed 4, skipped 0, reconciled 0")
	assert.Equal(t, ir.FutureRef{Module: "Launch", ID: "MarketCore.unpause"}, env.transport.Sent()[3])
}
