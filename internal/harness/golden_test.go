package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"deploy_market", "failed_then_wiped"} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadTestdata(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestAssertGolden_ReusesResult(t *testing.T) {
	result, err := Run(loadTestdata(t, "deploy_market"))
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, "deploy_market", result))
}

func TestTraceSnapshot_Canonical(t *testing.T) {
	snapshot := TraceSnapshot{
		ScenarioName: "s",
		Trace: []TraceEvent{
			{Seq: 1, RunID: "r", Ref: "M#x", Status: "confirmed"},
			{Seq: 2, RunID: "w", Ref: "M#y", Status: "pending", Detail: "wiped failed entry"},
		},
		Calls: []string{"send M#x"},
	}

	data, err := snapshot.marshal()
	require.NoError(t, err)
	assert.Equal(t,
		`{"calls":["send M#x"],"scenario_name":"s","trace":[`+
			`{"ref":"M#x","run_id":"r","seq":1,"status":"confirmed"},`+
			`{"detail":"wiped failed entry","ref":"M#y","run_id":"w","seq":2,"status":"pending"}]}`,
		string(data))
}

func TestTraceSnapshot_Empty(t *testing.T) {
	snapshot := TraceSnapshot{ScenarioName: "empty"}
	data, err := snapshot.marshal()
	require.NoError(t, err)
	assert.Equal(t, `{"calls":[],"scenario_name":"empty","trace":[]}`, string(data))
}
