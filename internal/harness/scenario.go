package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/keystone/internal/engine"
	"github.com/roach88/keystone/internal/ir"
)

// Scenario defines a deployment scenario: modules, one or more deploys
// against the same journal, and assertions on the final journal.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Modules lists CUE module files, relative to the scenario file.
	Modules []string `yaml:"modules"`

	// Parameters are passed to every build, keyed by module.
	Parameters map[string]map[string]any `yaml:"parameters,omitempty"`

	// Runs are deploys executed in order against one journal.
	Runs []RunStep `yaml:"runs"`

	// Assertions validate the final trace and journal.
	Assertions []Assertion `yaml:"assertions"`

	// RunID prefixes the fixed run ids. Defaults to "run".
	RunID string `yaml:"run_id,omitempty"`
}

// RunStep is one deploy.
type RunStep struct {
	// Deploy is the module to deploy.
	Deploy string `yaml:"deploy"`

	// Wipe lists "Module#id" entries to wipe before the deploy.
	Wipe []string `yaml:"wipe,omitempty"`

	// Script configures the transport for this deploy. Failures scripted by
	// an earlier run are cleared first.
	Script []ScriptStep `yaml:"script,omitempty"`

	// Expect is checked against the run's outcome. Nil expects success.
	Expect *RunExpect `yaml:"expect,omitempty"`
}

// ScriptStep scripts one transport behavior. Exactly one of FailPrepare,
// FailSend, Reconcile and StaticResult is set.
type ScriptStep struct {
	FailPrepare string `yaml:"fail_prepare,omitempty"`
	FailSend    string `yaml:"fail_send,omitempty"`

	// Error is the failure message. For fail_send, "outcome unknown"
	// simulates a crash after broadcast.
	Error string `yaml:"error,omitempty"`

	// Reconcile scripts the reconciliation of ref with Outcome and Result.
	Reconcile string `yaml:"reconcile,omitempty"`
	Outcome   string `yaml:"outcome,omitempty"`
	Reason    string `yaml:"reason,omitempty"`

	StaticResult string `yaml:"static_result,omitempty"`

	// Result is the reconciled or static call result.
	Result any `yaml:"result,omitempty"`
}

// RunExpect is the expected outcome of a deploy. Nil lists and an empty
// Failed are not checked.
type RunExpect struct {
	// Error is the expected error code, e.g. EXECUTION_FAILED or
	// RECONCILIATION_AMBIGUOUS. Empty expects success.
	Error string `yaml:"error,omitempty"`

	Failed     string   `yaml:"failed,omitempty"`
	Executed   []string `yaml:"executed,omitempty"`
	Skipped    []string `yaml:"skipped,omitempty"`
	Reconciled []string `yaml:"reconciled,omitempty"`
}

// Assertion validates the trace or the final journal.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count and
	// final_state.
	Type string `yaml:"type"`

	// Ref is the future (trace_contains, trace_count, final_state).
	Ref string `yaml:"ref,omitempty"`

	// Status filters events (trace_contains, trace_count).
	Status string `yaml:"status,omitempty"`

	// Count is the expected number of events (trace_count).
	Count int `yaml:"count,omitempty"`

	// Refs is the expected confirmation order (trace_order).
	Refs []string `yaml:"refs,omitempty"`

	// Expect holds expected entry fields (final_state): status, result,
	// tx_hash, run_id, error. Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// Error code reported for an ambiguous reconciliation.
const ErrCodeAmbiguous = "RECONCILIATION_AMBIGUOUS"

var validOutcomes = map[engine.Outcome]bool{
	engine.OutcomeConfirmed: true,
	engine.OutcomeFailed:    true,
	engine.OutcomeNotSent:   true,
	engine.OutcomeUnknown:   true,
}

var validStatuses = map[string]bool{
	string(ir.StatusPending):   true,
	string(ir.StatusReady):     true,
	string(ir.StatusExecuting): true,
	string(ir.StatusConfirmed): true,
	string(ir.StatusFailed):    true,
}

// LoadScenario reads and parses a scenario YAML file. Module paths are
// resolved relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving module paths relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" for "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, p := range scenario.Modules {
		if !filepath.IsAbs(p) && basePath != "" {
			scenario.Modules[i] = filepath.Join(basePath, p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Modules) == 0 {
		return fmt.Errorf("modules list is required and must be non-empty")
	}
	if len(s.Runs) == 0 {
		return fmt.Errorf("runs list is required and must be non-empty")
	}

	for _, p := range s.Modules {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("module file not found: %s", p)
		}
	}

	for i, run := range s.Runs {
		if err := validateRun(i, &run); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateRun(index int, r *RunStep) error {
	if r.Deploy == "" {
		return fmt.Errorf("runs[%d]: deploy is required", index)
	}
	for _, w := range r.Wipe {
		if _, err := ir.ParseFutureRef(w); err != nil {
			return fmt.Errorf("runs[%d].wipe: %w", index, err)
		}
	}
	for j, step := range r.Script {
		if err := validateScriptStep(step); err != nil {
			return fmt.Errorf("runs[%d].script[%d]: %w", index, j, err)
		}
	}
	if e := r.Expect; e != nil {
		refs := append(append(append([]string{}, e.Executed...), e.Skipped...), e.Reconciled...)
		if e.Failed != "" {
			refs = append(refs, e.Failed)
		}
		for _, ref := range refs {
			if _, err := ir.ParseFutureRef(ref); err != nil {
				return fmt.Errorf("runs[%d].expect: %w", index, err)
			}
		}
	}
	return nil
}

func validateScriptStep(s ScriptStep) error {
	var ref string
	set := 0
	for _, r := range []string{s.FailPrepare, s.FailSend, s.Reconcile, s.StaticResult} {
		if r != "" {
			ref = r
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("exactly one of fail_prepare, fail_send, reconcile and static_result is required")
	}
	if _, err := ir.ParseFutureRef(ref); err != nil {
		return err
	}
	if (s.FailPrepare != "" || s.FailSend != "") && s.Error == "" {
		return fmt.Errorf("error is required for %s", ref)
	}
	if s.Reconcile != "" && !validOutcomes[engine.Outcome(s.Outcome)] {
		return fmt.Errorf("unknown reconcile outcome %q", s.Outcome)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Status != "" && !validStatuses[a.Status] {
		return fmt.Errorf("assertions[%d]: unknown status %q", index, a.Status)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Ref == "" {
			return fmt.Errorf("assertions[%d]: ref is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Refs) == 0 {
			return fmt.Errorf("assertions[%d]: refs list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Ref == "" {
			return fmt.Errorf("assertions[%d]: ref is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Ref == "" {
			return fmt.Errorf("assertions[%d]: ref is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
