package harness

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/keystone/internal/ir"
	"github.com/roach88/keystone/internal/journal"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", ev.Seq, ev.Ref, ev.Status, ev.Detail)
		}
	}

	return buf.String()
}

// matches reports whether the event is for ref and, when status is set,
// has that status.
func matches(ev TraceEvent, ref, status string) bool {
	return ev.Ref == ref && (status == "" || ev.Status == status)
}

func describe(ref, status string) string {
	if status == "" {
		return ref
	}
	return ref + " " + status
}

// assertTraceContains checks if the trace has an event for the ref,
// optionally with the given status.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, ev := range trace {
		if matches(ev, assertion.Ref, assertion.Status) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("event %s", describe(assertion.Ref, assertion.Status)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that futures were first confirmed in the
// specified order. Other events may come in between.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, ev := range trace {
		if ev.Status != string(ir.StatusConfirmed) {
			continue
		}
		if _, seen := positions[ev.Ref]; !seen {
			positions[ev.Ref] = i + 1
		}
	}

	for _, ref := range assertion.Refs {
		if positions[ref] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all futures confirmed: %v", assertion.Refs),
				Actual:   fmt.Sprintf("never confirmed: %s", ref),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Refs); i++ {
		prev, curr := assertion.Refs[i-1], assertion.Refs[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("confirmed in order: %v", assertion.Refs),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks the number of events for the ref, optionally
// filtered by status.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, ev := range trace {
		if matches(ev, assertion.Ref, assertion.Status) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d events for %s", assertion.Count, describe(assertion.Ref, assertion.Status)),
			Actual:   fmt.Sprintf("%d events", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState checks the journal entry for the ref. Only the fields
// named in Expect are compared.
func assertFinalState(ctx context.Context, j *journal.Journal, namespace string, assertion Assertion) error {
	ref, err := ir.ParseFutureRef(assertion.Ref)
	if err != nil {
		return err
	}

	entry, err := j.Get(ctx, namespace, ref)
	if errors.Is(err, journal.ErrNotFound) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("journal entry for %s", ref),
			Actual:   "entry not found",
		}
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", ref, err)
	}

	actual := entryFields(entry)
	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		got, known := actual[key]
		if !known {
			return fmt.Errorf("final_state: unknown field %q", key)
		}
		want := fmt.Sprint(assertion.Expect[key])
		if got != want {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s %s = %q", ref, key, want),
				Actual:   fmt.Sprintf("%s %s = %q", ref, key, got),
			}
		}
	}

	return nil
}

// entryFields renders the comparable fields of an entry as strings.
func entryFields(e *ir.JournalEntry) map[string]string {
	fields := map[string]string{
		"kind":    string(e.Kind),
		"status":  string(e.Status),
		"result":  ir.Format(e.Result),
		"run_id":  e.RunID,
		"error":   e.Error,
		"tx_hash": "",
	}
	if e.Pending != nil {
		fields["tx_hash"] = e.Pending.TxHash
	}
	return fields
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Journal   *journal.Journal
	Namespace string
	Ctx       context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides journal access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Journal == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires journal context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Journal, actx.Namespace, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
