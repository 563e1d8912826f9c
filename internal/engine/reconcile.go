package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/keystone/internal/ir"
)

// reconcile settles a future an earlier run left executing. It returns
// done=true when the journaled transaction decided the future, and
// done=false when nothing reached the network and the future must be
// executed again.
func (r *run) reconcile(ctx context.Context, f *ir.Future, prev *ir.JournalEntry, hash string, log *slog.Logger) (bool, error) {
	r.result.Statuses[f.Ref] = ir.StatusExecuting
	if !f.Kind.SideEffecting() {
		// Reads and bindings have nothing on the network to settle.
		log.Info("interrupted read, executing again")
		return false, nil
	}
	if prev.Pending == nil || prev.Pending.TxHash == "" {
		// The marker is written before broadcast, so no hash means no send.
		log.Info("interrupted before broadcast, executing again")
		return false, nil
	}
	pending := *prev.Pending
	log = log.With("tx", pending.TxHash, "nonce", pending.Nonce)

	op, err := r.operation(f)
	if err != nil {
		return true, err
	}

	opCtx, cancel := r.operationContext(ctx)
	rec, err := r.transport.Reconcile(opCtx, op, pending)
	cancel()
	if err != nil {
		if interrupted(ctx, err) {
			return true, &ExecutionError{Code: ErrCodeInterrupted, Ref: f.Ref, Message: "reconciliation not completed", Err: err}
		}
		return true, &ReconciliationAmbiguousError{
			Ref:    f.Ref,
			TxHash: pending.TxHash,
			Nonce:  pending.Nonce,
			Reason: err.Error(),
		}
	}

	switch rec.Outcome {
	case OutcomeConfirmed:
		log.Info("reconciled as confirmed")
		return true, r.confirm(ctx, f, hash, rec.Result, &pending, log, true)
	case OutcomeFailed:
		log.Info("reconciled as failed", "reason", rec.Reason)
		return true, r.fail(ctx, f, hash, &pending, errors.New(rec.Reason), log)
	case OutcomeNotSent:
		log.Info("reconciled as not sent, executing again")
		r.result.Statuses[f.Ref] = ir.StatusPending
		return false, nil
	case OutcomeUnknown:
		return true, &ReconciliationAmbiguousError{
			Ref:    f.Ref,
			TxHash: pending.TxHash,
			Nonce:  pending.Nonce,
			Reason: rec.Reason,
		}
	default:
		return true, &ReconciliationAmbiguousError{
			Ref:    f.Ref,
			TxHash: pending.TxHash,
			Nonce:  pending.Nonce,
			Reason: fmt.Sprintf("unexpected outcome %q", rec.Outcome),
		}
	}
}
