package engine

import (
	"context"
	"errors"

	"github.com/roach88/keystone/internal/ir"
)

// Journal is the durable outcome store the engine reads and writes.
// *journal.Journal implements it.
type Journal interface {
	// Get returns the entry for ref, or an error wrapping journal.ErrNotFound.
	Get(ctx context.Context, namespace string, ref ir.FutureRef) (*ir.JournalEntry, error)
	// Put writes an entry atomically. It refuses to overwrite a confirmed entry.
	Put(ctx context.Context, e ir.JournalEntry) error
	Lock(ctx context.Context, namespace, holder string) error
	Unlock(ctx context.Context, namespace, holder string) error
	// LastSeq returns the highest seq written to namespace, or 0.
	LastSeq(ctx context.Context, namespace string) (int64, error)
}

// Operation is one primitive with every reference substituted.
type Operation struct {
	Ref      ir.FutureRef
	Kind     ir.Kind
	Artifact string
	Method   string

	// Target is the contract address for call and static_call.
	Target string

	Args []ir.IRValue
}

// Transport performs primitives against a network. Deploys and calls are
// split into Prepare and Send so the engine can journal the pending
// transaction before it is broadcast.
type Transport interface {
	// Prepare builds and signs the transaction for a deploy or call without
	// broadcasting it.
	Prepare(ctx context.Context, op Operation) (*ir.PendingTx, error)

	// Send broadcasts a prepared transaction and blocks until it is mined.
	// It returns the contract address for a deploy and the transaction hash
	// for a call. When the transaction may have been broadcast but its
	// outcome was not observed, the error wraps ErrOutcomeUnknown.
	Send(ctx context.Context, op Operation, tx *ir.PendingTx) (ir.IRValue, error)

	// StaticCall evaluates a read-only method call.
	StaticCall(ctx context.Context, op Operation) (ir.IRValue, error)

	// Reconcile determines what happened to a transaction journaled as
	// executing by an interrupted run.
	Reconcile(ctx context.Context, op Operation, tx ir.PendingTx) (Reconciliation, error)
}

// ErrOutcomeUnknown marks a send whose transaction may be on the network
// but whose receipt was never observed.
var ErrOutcomeUnknown = errors.New("transaction outcome unknown")

// Outcome is what reconciliation found on the network.
type Outcome string

const (
	// OutcomeConfirmed means the transaction was mined successfully.
	OutcomeConfirmed Outcome = "confirmed"
	// OutcomeFailed means the transaction was mined and reverted.
	OutcomeFailed Outcome = "failed"
	// OutcomeNotSent means the transaction never reached the network and the
	// sender nonce is unused, so the future can be executed again.
	OutcomeNotSent Outcome = "not_sent"
	// OutcomeUnknown means the network cannot tell.
	OutcomeUnknown Outcome = "unknown"
)

// Reconciliation is the result of Transport.Reconcile.
type Reconciliation struct {
	Outcome Outcome
	// Result is set for OutcomeConfirmed.
	Result ir.IRValue
	// Reason explains OutcomeFailed and OutcomeUnknown.
	Reason string
}
