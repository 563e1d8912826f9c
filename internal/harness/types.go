package harness

import "fmt"

// TraceEvent is one journal event recorded during a scenario.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	RunID  string `json:"run_id"`
	Ref    string `json:"ref"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// RunOutcome is what one deploy of a scenario produced.
type RunOutcome struct {
	RunID      string   `json:"run_id"`
	Module     string   `json:"module"`
	Error      string   `json:"error,omitempty"`
	Failed     string   `json:"failed,omitempty"`
	Executed   []string `json:"executed"`
	Skipped    []string `json:"skipped"`
	Reconciled []string `json:"reconciled"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every run matched its expectations and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace is the namespace's journal log after the last run.
	Trace []TraceEvent `json:"trace"`

	// Calls lists transport invocations as "<method> <ref>", in order.
	Calls []string `json:"calls"`

	Runs   []RunOutcome `json:"runs"`
	Errors []string     `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Calls:  []string{},
		Runs:   []RunOutcome{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}
