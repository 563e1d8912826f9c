package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes a scenario file next to a copy of the market
// modules and returns its path.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	src, err := os.ReadFile(filepath.Join("testdata", "modules", "market.cue"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "market.cue"), src, 0644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
modules:
  - market.cue
parameters:
  Market:
    fee: 300
runs:
  - deploy: Market
    script:
      - fail_send: Market#MarketCore
        error: outcome unknown
    expect:
      error: INTERRUPTED
assertions:
  - type: trace_contains
    ref: Market#MarketCore
    status: executing
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "market.cue"), scenario.Modules[0])
	assert.Equal(t, 300, scenario.Parameters["Market"]["fee"])
	require.Len(t, scenario.Runs, 1)
	assert.Equal(t, "Market#MarketCore", scenario.Runs[0].Script[0].FailSend)
	assert.Equal(t, "INTERRUPTED", scenario.Runs[0].Expect.Error)
	assert.Len(t, scenario.Assertions, 1)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: misspelled assertions key
modules: [market.cue]
runs:
  - deploy: Market
assertion:
  - type: trace_contains
    ref: Market#MarketCore
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing name",
			body: "description: d\nmodules: [market.cue]\nruns: [{deploy: Market}]\n",
			want: "name is required",
		},
		{
			name: "no runs",
			body: "name: n\ndescription: d\nmodules: [market.cue]\n",
			want: "runs list is required",
		},
		{
			name: "missing module file",
			body: "name: n\ndescription: d\nmodules: [nope.cue]\nruns: [{deploy: Market}]\n",
			want: "module file not found",
		},
		{
			name: "bad wipe ref",
			body: "name: n\ndescription: d\nmodules: [market.cue]\nruns: [{deploy: Market, wipe: [MarketCore]}]\n",
			want: "want Module#id",
		},
		{
			name: "two script actions",
			body: "name: n\ndescription: d\nmodules: [market.cue]\nruns:\n  - deploy: Market\n    script:\n      - {fail_send: Market#MarketCore, reconcile: Market#MarketCore, outcome: confirmed, error: x}\n",
			want: "exactly one of",
		},
		{
			name: "fail without error",
			body: "name: n\ndescription: d\nmodules: [market.cue]\nruns:\n  - deploy: Market\n    script:\n      - {fail_prepare: Market#MarketCore}\n",
			want: "error is required",
		},
		{
			name: "unknown outcome",
			body: "name: n\ndescription: d\nmodules: [market.cue]\nruns:\n  - deploy: Market\n    script:\n      - {reconcile: Market#MarketCore, outcome: lost}\n",
			want: `unknown reconcile outcome "lost"`,
		},
		{
			name: "unknown assertion",
			body: "name: n\ndescription: d\nmodules: [market.cue]\nruns: [{deploy: Market}]\nassertions: [{type: state_eq}]\n",
			want: `unknown assertion type "state_eq"`,
		},
		{
			name: "final_state without expect",
			body: "name: n\ndescription: d\nmodules: [market.cue]\nruns: [{deploy: Market}]\nassertions: [{type: final_state, ref: Market#MarketCore}]\n",
			want: "expect is required",
		},
		{
			name: "unknown status",
			body: "name: n\ndescription: d\nmodules: [market.cue]\nruns: [{deploy: Market}]\nassertions: [{type: trace_contains, ref: Market#MarketCore, status: done}]\n",
			want: `unknown status "done"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_Testdata(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := LoadScenario(path)
			require.NoError(t, err)
		})
	}
}
