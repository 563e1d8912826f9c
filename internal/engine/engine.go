package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/keystone/internal/graph"
	"github.com/roach88/keystone/internal/ir"
	"github.com/roach88/keystone/internal/journal"
)

// Engine executes a future graph against one deployment namespace.
//
// Execution is strictly sequential in resolved order: a single signer has a
// single nonce sequence, so transactions are never reordered or overlapped.
//
// Thread-safety: an Engine may be reused for several runs, but Run must not
// be called concurrently. Other processes are kept out by the namespace lock.
type Engine struct {
	journal   Journal
	transport Transport
	namespace string
	logger    *slog.Logger
	runIDs    RunIDGenerator
	opTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for per-future transitions.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithRunIDGenerator replaces the UUIDv7 run id generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithOperationTimeout bounds each send, static call and reconciliation.
// Zero means no bound beyond the run context.
func WithOperationTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.opTimeout = d
	}
}

// New creates an Engine writing to namespace in j and executing through t.
func New(j Journal, t Transport, namespace string, opts ...Option) *Engine {
	e := &Engine{
		journal:   j,
		transport: t,
		namespace: namespace,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		runIDs:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Namespace returns the deployment namespace the engine writes to.
func (e *Engine) Namespace() string {
	return e.namespace
}

// Result describes one run. It is returned even when the run fails.
type Result struct {
	RunID     string
	Namespace string

	// Order is the resolved execution order.
	Order []ir.FutureRef

	// Statuses holds the status of every future at the end of the run.
	Statuses map[ir.FutureRef]ir.Status

	// Results holds the result of every confirmed future.
	Results map[ir.FutureRef]ir.IRValue

	// Executed lists futures performed by this run, in order.
	Executed []ir.FutureRef

	// Skipped lists futures adopted from the journal.
	Skipped []ir.FutureRef

	// Reconciled lists interrupted futures found confirmed on the network.
	Reconciled []ir.FutureRef

	// Failed is the future that stopped the run, if any.
	Failed *ir.FutureRef
}

// Done reports whether every future is confirmed.
func (r *Result) Done() bool {
	for _, ref := range r.Order {
		if r.Statuses[ref] != ir.StatusConfirmed {
			return false
		}
	}
	return true
}

// run holds the state of one Run call.
type run struct {
	*Engine
	id     string
	clock  *Clock
	result *Result
}

// Run resolves futures and executes every future not already confirmed in
// the journal.
//
// Graph errors are returned before the journal is touched. The run stops at
// the first future that cannot be confirmed; everything after it stays
// pending and is picked up by the next run.
func (e *Engine) Run(ctx context.Context, futures []*ir.Future) (*Result, error) {
	g, err := graph.New(futures)
	if err != nil {
		return nil, err
	}
	order, err := g.Resolve()
	if err != nil {
		return nil, err
	}

	r := &run{
		Engine: e,
		id:     e.runIDs.Generate(),
		result: &Result{
			Namespace: e.namespace,
			Order:     make([]ir.FutureRef, len(order)),
			Statuses:  make(map[ir.FutureRef]ir.Status, len(order)),
			Results:   make(map[ir.FutureRef]ir.IRValue, len(order)),
		},
	}
	r.result.RunID = r.id
	for i, f := range order {
		r.result.Order[i] = f.Ref
		r.result.Statuses[f.Ref] = ir.StatusPending
	}

	if err := e.journal.Lock(ctx, e.namespace, r.id); err != nil {
		return r.result, fmt.Errorf("lock %s: %w", e.namespace, err)
	}
	defer func() {
		if err := e.journal.Unlock(context.WithoutCancel(ctx), e.namespace, r.id); err != nil {
			e.logger.Error("unlock failed", "namespace", e.namespace, "error", err)
		}
	}()

	last, err := e.journal.LastSeq(ctx, e.namespace)
	if err != nil {
		return r.result, fmt.Errorf("resume clock: %w", err)
	}
	r.clock = NewClockAt(last)

	e.logger.Info("run started", "run", r.id, "namespace", e.namespace, "futures", len(order))
	for _, f := range order {
		if err := ctx.Err(); err != nil {
			return r.result, err
		}
		if err := r.step(ctx, f); err != nil {
			if ref, ok := FailedRef(err); ok {
				r.result.Failed = &ref
			}
			e.logger.Error("run stopped", "run", r.id, "error", err)
			return r.result, err
		}
	}
	e.logger.Info("run finished", "run", r.id,
		"executed", len(r.result.Executed),
		"skipped", len(r.result.Skipped),
		"reconciled", len(r.result.Reconciled))
	return r.result, nil
}

// step brings one future to confirmed, adopting a journaled outcome when
// there is one.
func (r *run) step(ctx context.Context, f *ir.Future) error {
	log := r.logger.With("module", f.Ref.Module, "future", f.Ref.ID, "kind", string(f.Kind))

	hash, err := ir.DefinitionHash(f)
	if err != nil {
		return &ExecutionError{Code: ErrCodeUnresolvedInput, Ref: f.Ref, Message: "cannot fingerprint definition", Err: err}
	}

	prev, err := r.journal.Get(ctx, r.namespace, f.Ref)
	switch {
	case errors.Is(err, journal.ErrNotFound):
		prev = nil
	case err != nil:
		return &ExecutionError{Code: ErrCodeJournalWrite, Ref: f.Ref, Message: "cannot read journal", Err: err}
	}

	if prev != nil {
		if prev.DefinitionHash != "" && prev.DefinitionHash != hash &&
			(prev.Status == ir.StatusConfirmed || prev.Status == ir.StatusExecuting) {
			r.result.Statuses[f.Ref] = prev.Status
			return &ExecutionError{
				Code:    ErrCodeDefinitionChanged,
				Ref:     f.Ref,
				Message: fmt.Sprintf("journaled %s entry was produced by a different definition", prev.Status),
			}
		}

		switch prev.Status {
		case ir.StatusConfirmed:
			r.result.Statuses[f.Ref] = ir.StatusConfirmed
			r.result.Results[f.Ref] = prev.Result
			r.result.Skipped = append(r.result.Skipped, f.Ref)
			log.Debug("adopted journaled result", "result", ir.Format(prev.Result))
			return nil
		case ir.StatusFailed:
			r.result.Statuses[f.Ref] = ir.StatusFailed
			return &ExecutionError{
				Code:    ErrCodePreviouslyFailed,
				Ref:     f.Ref,
				Message: "failed in an earlier run; wipe the entry to retry: " + prev.Error,
			}
		case ir.StatusExecuting:
			done, err := r.reconcile(ctx, f, prev, hash, log)
			if err != nil || done {
				return err
			}
		}
	}

	r.result.Statuses[f.Ref] = ir.StatusReady
	op, err := r.operation(f)
	if err != nil {
		return err
	}
	return r.execute(ctx, f, op, hash, log)
}

// operation substitutes every reference in f with its confirmed result.
func (r *run) operation(f *ir.Future) (Operation, error) {
	op := Operation{
		Ref:      f.Ref,
		Kind:     f.Kind,
		Artifact: f.Artifact,
		Method:   f.Method,
		Args:     make([]ir.IRValue, len(f.Inputs)),
	}
	for i, in := range f.Inputs {
		v, err := r.resolve(f.Ref, in)
		if err != nil {
			return op, err
		}
		op.Args[i] = v
	}
	if f.Target != nil {
		v, err := r.resolve(f.Ref, *f.Target)
		if err != nil {
			return op, err
		}
		addr, ok := v.(ir.IRString)
		if !ok || addr == "" {
			return op, &ExecutionError{
				Code:    ErrCodeUnresolvedInput,
				Ref:     f.Ref,
				Message: fmt.Sprintf("target %s is not an address", ir.Format(v)),
			}
		}
		op.Target = string(addr)
	}
	return op, nil
}

func (r *run) resolve(from ir.FutureRef, a ir.Arg) (ir.IRValue, error) {
	if a.Ref == nil {
		if a.Literal == nil {
			return ir.IRNull{}, nil
		}
		return a.Literal, nil
	}
	v, ok := r.result.Results[*a.Ref]
	if !ok {
		return nil, &ExecutionError{
			Code:    ErrCodeUnresolvedInput,
			Ref:     from,
			Message: fmt.Sprintf("input %s is not confirmed", a.Ref),
		}
	}
	return v, nil
}

// execute performs the primitive and journals its outcome.
func (r *run) execute(ctx context.Context, f *ir.Future, op Operation, hash string, log *slog.Logger) error {
	r.result.Statuses[f.Ref] = ir.StatusExecuting
	log.Info("executing", "op", f.Describe())

	var (
		result ir.IRValue
		tx     *ir.PendingTx
		err    error
	)
	switch f.Kind {
	case ir.KindValue:
		result = f.Value
		if result == nil {
			result = ir.IRNull{}
		}
	case ir.KindContractAt:
		result = ir.IRString(op.Target)
	case ir.KindStaticCall:
		opCtx, cancel := r.operationContext(ctx)
		result, err = r.transport.StaticCall(opCtx, op)
		cancel()
	case ir.KindDeploy, ir.KindCall:
		result, tx, err = r.transact(ctx, f, op, hash, log)
	default:
		err = fmt.Errorf("unsupported kind %q", f.Kind)
	}

	if err != nil {
		if interrupted(ctx, err) {
			// Anything broadcast is journaled as executing and reconciled later.
			if tx == nil {
				r.result.Statuses[f.Ref] = ir.StatusPending
			}
			log.Warn("interrupted", "error", err)
			return &ExecutionError{Code: ErrCodeInterrupted, Ref: f.Ref, Message: "outcome not observed", Err: err}
		}
		var ee *ExecutionError
		if errors.As(err, &ee) {
			return err
		}
		return r.fail(ctx, f, hash, tx, err, log)
	}
	return r.confirm(ctx, f, hash, result, tx, log, false)
}

// transact prepares, journals and sends a deploy or call.
func (r *run) transact(ctx context.Context, f *ir.Future, op Operation, hash string, log *slog.Logger) (ir.IRValue, *ir.PendingTx, error) {
	tx, err := r.transport.Prepare(ctx, op)
	if err != nil {
		return nil, nil, fmt.Errorf("prepare: %w", err)
	}

	marker := ir.JournalEntry{
		Namespace:      r.namespace,
		Ref:            f.Ref,
		Kind:           f.Kind,
		Status:         ir.StatusExecuting,
		Pending:        tx,
		DefinitionHash: hash,
		RunID:          r.id,
		Seq:            r.clock.Next(),
	}
	if err := r.journal.Put(ctx, marker); err != nil {
		return nil, tx, &ExecutionError{Code: ErrCodeJournalWrite, Ref: f.Ref, Message: "cannot journal pending transaction", Err: err}
	}
	log.Debug("sending", "tx", tx.TxHash, "nonce", tx.Nonce)

	opCtx, cancel := r.operationContext(ctx)
	defer cancel()
	result, err := r.transport.Send(opCtx, op, tx)
	if err != nil {
		return nil, tx, err
	}
	return result, tx, nil
}

func (r *run) confirm(ctx context.Context, f *ir.Future, hash string, result ir.IRValue, tx *ir.PendingTx, log *slog.Logger, reconciled bool) error {
	entry := ir.JournalEntry{
		Namespace:      r.namespace,
		Ref:            f.Ref,
		Kind:           f.Kind,
		Status:         ir.StatusConfirmed,
		Result:         result,
		Pending:        tx,
		DefinitionHash: hash,
		RunID:          r.id,
		Seq:            r.clock.Next(),
	}
	if err := r.journal.Put(ctx, entry); err != nil {
		return &ExecutionError{Code: ErrCodeJournalWrite, Ref: f.Ref, Message: "cannot journal confirmed result", Err: err}
	}
	r.result.Statuses[f.Ref] = ir.StatusConfirmed
	r.result.Results[f.Ref] = result
	if reconciled {
		r.result.Reconciled = append(r.result.Reconciled, f.Ref)
	} else {
		r.result.Executed = append(r.result.Executed, f.Ref)
	}
	log.Info("confirmed", "result", ir.Format(result))
	return nil
}

func (r *run) fail(ctx context.Context, f *ir.Future, hash string, tx *ir.PendingTx, cause error, log *slog.Logger) error {
	r.result.Statuses[f.Ref] = ir.StatusFailed
	entry := ir.JournalEntry{
		Namespace:      r.namespace,
		Ref:            f.Ref,
		Kind:           f.Kind,
		Status:         ir.StatusFailed,
		Pending:        tx,
		DefinitionHash: hash,
		RunID:          r.id,
		Seq:            r.clock.Next(),
		Error:          cause.Error(),
	}
	if err := r.journal.Put(context.WithoutCancel(ctx), entry); err != nil {
		return &ExecutionError{Code: ErrCodeJournalWrite, Ref: f.Ref, Message: "cannot journal failure", Err: errors.Join(cause, err)}
	}
	log.Error("failed", "error", cause)
	return &ExecutionError{Code: ErrCodeExecutionFailed, Ref: f.Ref, Message: "operation failed", Err: cause}
}

func (r *run) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opTimeout > 0 {
		return context.WithTimeout(ctx, r.opTimeout)
	}
	return context.WithCancel(ctx)
}

// interrupted reports whether err means the outcome was not observed rather
// than that the operation failed.
func interrupted(ctx context.Context, err error) bool {
	if errors.Is(err, ErrOutcomeUnknown) {
		return true
	}
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
