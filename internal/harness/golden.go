package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/keystone/internal/ir"
)

// TraceSnapshot captures the journal trace and transport calls of a
// scenario. It is serialized as canonical JSON.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
	Calls        []string     `json:"calls"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// ir.MarshalCanonical only handles IR types and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"seq":    ev.Seq,
			"run_id": ev.RunID,
			"ref":    ev.Ref,
			"status": ev.Status,
		}
		if ev.Detail != "" {
			m["detail"] = ev.Detail
		}
		traceList[i] = m
	}

	calls := make([]any, len(s.Calls))
	for i, c := range s.Calls {
		calls[i] = c
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"calls":         calls,
	}
}

func (s *TraceSnapshot) marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// Snapshot renders the golden file content for a scenario result.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	s := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Calls:        result.Calls,
	}
	return s.marshal()
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
