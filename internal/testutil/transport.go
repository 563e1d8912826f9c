package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/keystone/internal/engine"
	"github.com/roach88/keystone/internal/ir"
)

// FakeSender is the account every FakeTransport transaction comes from.
const FakeSender = "0x00000000000000000000000000000000000000a1"

// Call records one Transport method invocation.
type Call struct {
	Method string // "prepare", "send", "static_call" or "reconcile"
	Op     engine.Operation
}

// FakeTransport is an in-memory engine.Transport with scripted outcomes.
//
// Nonces start at 0 and advance on every Prepare. A deploy returns
// DeployAddress(nonce); a call returns TxHash(nonce).
//
// Thread-safety: all methods are safe for concurrent use.
type FakeTransport struct {
	mu              sync.Mutex
	nonce           uint64
	calls           []Call
	prepareErrs     map[ir.FutureRef]error
	sendErrs        map[ir.FutureRef]error
	staticResults   map[ir.FutureRef]ir.IRValue
	reconciliations map[ir.FutureRef]engine.Reconciliation
}

// NewFakeTransport creates a transport where every operation succeeds.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		prepareErrs:     make(map[ir.FutureRef]error),
		sendErrs:        make(map[ir.FutureRef]error),
		staticResults:   make(map[ir.FutureRef]ir.IRValue),
		reconciliations: make(map[ir.FutureRef]engine.Reconciliation),
	}
}

// DeployAddress is the address FakeTransport assigns to the deploy signed
// with nonce.
func DeployAddress(nonce uint64) string {
	return fmt.Sprintf("0x%040x", 0xc0de0000+nonce)
}

// TxHash is the hash FakeTransport assigns to the transaction signed with
// nonce.
func TxHash(nonce uint64) string {
	return fmt.Sprintf("0x%064x", 0x7e000000+nonce)
}

// FailPrepare makes Prepare fail for ref.
func (t *FakeTransport) FailPrepare(ref ir.FutureRef, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prepareErrs[ref] = err
}

// FailSend makes Send fail for ref. Wrap engine.ErrOutcomeUnknown to
// simulate a crash after broadcast.
func (t *FakeTransport) FailSend(ref ir.FutureRef, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendErrs[ref] = err
}

// ClearFailures removes every scripted failure.
func (t *FakeTransport) ClearFailures() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.prepareErrs)
	clear(t.sendErrs)
}

// SetStaticResult sets what StaticCall returns for ref.
func (t *FakeTransport) SetStaticResult(ref ir.FutureRef, v ir.IRValue) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.staticResults[ref] = v
}

// ScriptReconcile sets what Reconcile returns for ref. Unscripted refs
// reconcile as not sent.
func (t *FakeTransport) ScriptReconcile(ref ir.FutureRef, rec engine.Reconciliation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reconciliations[ref] = rec
}

// Calls returns every recorded invocation, in order.
func (t *FakeTransport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Call, len(t.calls))
	copy(out, t.calls)
	return out
}

// Sent returns the futures Send was invoked for, in order.
func (t *FakeTransport) Sent() []ir.FutureRef {
	return t.refs("send")
}

// Reconciled returns the futures Reconcile was invoked for, in order.
func (t *FakeTransport) Reconciled() []ir.FutureRef {
	return t.refs("reconcile")
}

func (t *FakeTransport) refs(method string) []ir.FutureRef {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []ir.FutureRef
	for _, c := range t.calls {
		if c.Method == method {
			out = append(out, c.Op.Ref)
		}
	}
	return out
}

// Prepare implements engine.Transport.
func (t *FakeTransport) Prepare(ctx context.Context, op engine.Operation) (*ir.PendingTx, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, Call{Method: "prepare", Op: op})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := t.prepareErrs[op.Ref]; ok {
		return nil, err
	}
	n := t.nonce
	t.nonce++
	return &ir.PendingTx{TxHash: TxHash(n), From: FakeSender, Nonce: n}, nil
}

// Send implements engine.Transport.
func (t *FakeTransport) Send(ctx context.Context, op engine.Operation, tx *ir.PendingTx) (ir.IRValue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, Call{Method: "send", Op: op})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := t.sendErrs[op.Ref]; ok {
		return nil, err
	}
	if op.Kind == ir.KindDeploy {
		return ir.IRString(DeployAddress(tx.Nonce)), nil
	}
	return ir.IRString(tx.TxHash), nil
}

// StaticCall implements engine.Transport.
func (t *FakeTransport) StaticCall(ctx context.Context, op engine.Operation) (ir.IRValue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, Call{Method: "static_call", Op: op})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := t.sendErrs[op.Ref]; ok {
		return nil, err
	}
	if v, ok := t.staticResults[op.Ref]; ok {
		return v, nil
	}
	return ir.IRNull{}, nil
}

// Reconcile implements engine.Transport.
func (t *FakeTransport) Reconcile(ctx context.Context, op engine.Operation, tx ir.PendingTx) (engine.Reconciliation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, Call{Method: "reconcile", Op: op})
	if err := ctx.Err(); err != nil {
		return engine.Reconciliation{}, err
	}
	if rec, ok := t.reconciliations[op.Ref]; ok {
		return rec, nil
	}
	return engine.Reconciliation{Outcome: engine.OutcomeNotSent}, nil
}
