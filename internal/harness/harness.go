package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/roach88/keystone/internal/compiler"
	"github.com/roach88/keystone/internal/engine"
	"github.com/roach88/keystone/internal/ir"
	"github.com/roach88/keystone/internal/journal"
	"github.com/roach88/keystone/internal/module"
	"github.com/roach88/keystone/internal/testutil"
)

// Namespace is the journal namespace every scenario deploys into.
const Namespace = "chain-31337"

// WipeHolder is the run id recorded on wipe events.
const WipeHolder = "harness-wipe"

// OutcomeUnknownError, used as a fail_send error, simulates a crash after
// the transaction was broadcast.
const OutcomeUnknownError = "outcome unknown"

// Harness executes the runs of one scenario.
type Harness struct {
	journal   *journal.Journal
	transport *testutil.FakeTransport
	registry  *module.Registry
	params    module.Parameters
	runIDs    *engine.FixedGenerator
	logger    *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario gets a fresh in-memory journal and fake transport. Runs
// share both, so later runs see what earlier runs journaled.
func Run(scenario *Scenario) (*Result, error) {
	j, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer j.Close()

	registry, err := loadModules(scenario.Modules)
	if err != nil {
		return nil, fmt.Errorf("failed to load modules: %w", err)
	}
	params, err := convertParameters(scenario.Parameters)
	if err != nil {
		return nil, fmt.Errorf("failed to convert parameters: %w", err)
	}

	prefix := scenario.RunID
	if prefix == "" {
		prefix = "run"
	}
	ids := make([]string, len(scenario.Runs))
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-%d", prefix, i+1)
	}

	h := &Harness{
		journal:   j,
		transport: testutil.NewFakeTransport(),
		registry:  registry,
		params:    params,
		runIDs:    engine.NewFixedGenerator(ids...),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Runs {
		if err := h.executeRun(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("runs[%d]: %w", i, err)
		}
	}

	events, err := j.Events(ctx, Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	for _, ev := range events {
		result.Trace = append(result.Trace, TraceEvent{
			Seq:    ev.Seq,
			RunID:  ev.RunID,
			Ref:    ev.Ref.String(),
			Status: string(ev.Status),
			Detail: ev.Detail,
		})
	}
	for _, c := range h.transport.Calls() {
		result.Calls = append(result.Calls, c.Method+" "+c.Op.Ref.String())
	}

	actx := &AssertionContext{Journal: j, Namespace: Namespace, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError("%s", msg)
	}
	return result, nil
}

// executeRun wipes, scripts the transport, deploys and checks the run's
// expectations.
func (h *Harness) executeRun(ctx context.Context, index int, step RunStep, result *Result) error {
	for _, w := range step.Wipe {
		if err := h.wipe(ctx, w); err != nil {
			return err
		}
	}

	h.transport.ClearFailures()
	for _, s := range step.Script {
		if err := h.script(s); err != nil {
			return err
		}
	}

	session, err := h.registry.Build(step.Deploy, h.params)
	if err != nil {
		return fmt.Errorf("build %s: %w", step.Deploy, err)
	}

	eng := engine.New(h.journal, h.transport, Namespace,
		engine.WithRunIDGenerator(h.runIDs),
		engine.WithLogger(h.logger))
	res, runErr := eng.Run(ctx, session.Futures())

	outcome := RunOutcome{
		Module:     step.Deploy,
		Executed:   []string{},
		Skipped:    []string{},
		Reconciled: []string{},
	}
	if res != nil {
		outcome.RunID = res.RunID
		outcome.Executed = refStrings(res.Executed)
		outcome.Skipped = refStrings(res.Skipped)
		outcome.Reconciled = refStrings(res.Reconciled)
		if res.Failed != nil {
			outcome.Failed = res.Failed.String()
		}
	}
	if runErr != nil {
		outcome.Error = errorCode(runErr)
	}
	result.Runs = append(result.Runs, outcome)

	h.logger.Info("run completed",
		"run", index,
		"module", step.Deploy,
		"error", outcome.Error,
	)
	checkExpect(index, step.Expect, outcome, runErr, result)
	return nil
}

// wipe removes one entry the way the wipe command does.
func (h *Harness) wipe(ctx context.Context, s string) error {
	ref, err := ir.ParseFutureRef(s)
	if err != nil {
		return err
	}
	if err := h.journal.Lock(ctx, Namespace, WipeHolder); err != nil {
		return err
	}
	defer h.journal.Unlock(ctx, Namespace, WipeHolder)

	last, err := h.journal.LastSeq(ctx, Namespace)
	if err != nil {
		return err
	}
	if err := h.journal.Wipe(ctx, Namespace, ref, WipeHolder, last+1); err != nil {
		return fmt.Errorf("wipe %s: %w", ref, err)
	}
	return nil
}

func (h *Harness) script(s ScriptStep) error {
	switch {
	case s.FailPrepare != "":
		ref, err := ir.ParseFutureRef(s.FailPrepare)
		if err != nil {
			return err
		}
		h.transport.FailPrepare(ref, errors.New(s.Error))
	case s.FailSend != "":
		ref, err := ir.ParseFutureRef(s.FailSend)
		if err != nil {
			return err
		}
		if s.Error == OutcomeUnknownError {
			h.transport.FailSend(ref, engine.ErrOutcomeUnknown)
		} else {
			h.transport.FailSend(ref, errors.New(s.Error))
		}
	case s.Reconcile != "":
		ref, err := ir.ParseFutureRef(s.Reconcile)
		if err != nil {
			return err
		}
		rec := engine.Reconciliation{Outcome: engine.Outcome(s.Outcome), Reason: s.Reason}
		if s.Result != nil {
			if rec.Result, err = ir.FromAny(s.Result); err != nil {
				return fmt.Errorf("reconcile %s result: %w", ref, err)
			}
		}
		h.transport.ScriptReconcile(ref, rec)
	case s.StaticResult != "":
		ref, err := ir.ParseFutureRef(s.StaticResult)
		if err != nil {
			return err
		}
		v, err := ir.FromAny(s.Result)
		if err != nil {
			return fmt.Errorf("static result %s: %w", ref, err)
		}
		h.transport.SetStaticResult(ref, v)
	}
	return nil
}

// checkExpect records a result error for every expectation the outcome
// misses. A nil expect requires success.
func checkExpect(index int, expect *RunExpect, got RunOutcome, runErr error, result *Result) {
	if expect == nil {
		if runErr != nil {
			result.AddError("runs[%d]: unexpected error: %v", index, runErr)
		}
		return
	}
	if got.Error != expect.Error {
		result.AddError("runs[%d]: error = %q, want %q (%v)", index, got.Error, expect.Error, runErr)
	}
	if expect.Failed != "" && got.Failed != expect.Failed {
		result.AddError("runs[%d]: failed = %q, want %q", index, got.Failed, expect.Failed)
	}
	check := func(field string, got, want []string) {
		if want != nil && !slices.Equal(got, want) {
			result.AddError("runs[%d]: %s = %v, want %v", index, field, got, want)
		}
	}
	check("executed", got.Executed, expect.Executed)
	check("skipped", got.Skipped, expect.Skipped)
	check("reconciled", got.Reconciled, expect.Reconciled)
}

// errorCode names a run error by its execution code.
func errorCode(err error) string {
	if engine.IsReconciliationAmbiguous(err) {
		return ErrCodeAmbiguous
	}
	if code := engine.ExecutionErrorCodeOf(err); code != "" {
		return string(code)
	}
	return err.Error()
}

func loadModules(paths []string) (*module.Registry, error) {
	r := module.NewRegistry()
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		defs, err := compiler.CompileString(string(data), p)
		if err != nil {
			return nil, err
		}
		if err := compiler.Register(r, defs); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// convertParameters converts YAML-decoded parameters to IR values.
func convertParameters(raw map[string]map[string]any) (module.Parameters, error) {
	params := make(module.Parameters, len(raw))
	for mod, values := range raw {
		params[mod] = make(map[string]ir.IRValue, len(values))
		for name, v := range values {
			iv, err := ir.FromAny(v)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", mod, name, err)
			}
			params[mod][name] = iv
		}
	}
	return params, nil
}

func refStrings(refs []ir.FutureRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.String()
	}
	return out
}
