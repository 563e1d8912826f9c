package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/keystone/internal/ir"
)

// ExecutionError reports a future the engine could not bring to confirmed.
// The run stops at the first ExecutionError; futures confirmed before it stay
// in the journal and are adopted on the next run.
type ExecutionError struct {
	// Code identifies the error category.
	Code ExecutionErrorCode

	// Ref identifies the future that stopped the run.
	Ref ir.FutureRef

	// Message is a human-readable description.
	Message string

	// Err is the underlying transport or journal error, if any.
	Err error
}

// ExecutionErrorCode categorizes execution errors.
type ExecutionErrorCode string

const (
	// ErrCodeExecutionFailed indicates the primitive operation failed or reverted.
	ErrCodeExecutionFailed ExecutionErrorCode = "EXECUTION_FAILED"

	// ErrCodeDefinitionChanged indicates a journaled future no longer matches
	// the definition that produced it.
	ErrCodeDefinitionChanged ExecutionErrorCode = "DEFINITION_CHANGED"

	// ErrCodePreviouslyFailed indicates the journal holds a failed entry that
	// must be wiped before the future is attempted again.
	ErrCodePreviouslyFailed ExecutionErrorCode = "PREVIOUSLY_FAILED"

	// ErrCodeInterrupted indicates the run stopped while a transaction was in
	// flight. The entry stays executing and is reconciled on the next run.
	ErrCodeInterrupted ExecutionErrorCode = "INTERRUPTED"

	// ErrCodeUnresolvedInput indicates an input did not resolve to a usable value.
	ErrCodeUnresolvedInput ExecutionErrorCode = "UNRESOLVED_INPUT"

	// ErrCodeJournalWrite indicates an outcome could not be journaled.
	ErrCodeJournalWrite ExecutionErrorCode = "JOURNAL_WRITE_FAILED"
)

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Code, e.Ref, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsExecutionError reports whether err is or wraps an ExecutionError.
func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}

// ExecutionErrorCodeOf returns the code of the ExecutionError in err's chain,
// or "" if there is none.
func ExecutionErrorCodeOf(err error) ExecutionErrorCode {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// ReconciliationAmbiguousError reports an interrupted transaction whose
// outcome the network could not establish. The entry stays executing; an
// operator must inspect the sender account before wiping it.
type ReconciliationAmbiguousError struct {
	Ref    ir.FutureRef
	TxHash string
	Nonce  uint64
	Reason string
}

// Error implements the error interface.
func (e *ReconciliationAmbiguousError) Error() string {
	return fmt.Sprintf("cannot reconcile %s (tx %s, nonce %d): %s", e.Ref, e.TxHash, e.Nonce, e.Reason)
}

// IsReconciliationAmbiguous reports whether err is or wraps a
// ReconciliationAmbiguousError.
func IsReconciliationAmbiguous(err error) bool {
	var re *ReconciliationAmbiguousError
	return errors.As(err, &re)
}

// FailedRef extracts the future identified by an execution or
// reconciliation error.
func FailedRef(err error) (ir.FutureRef, bool) {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Ref, true
	}
	var re *ReconciliationAmbiguousError
	if errors.As(err, &re) {
		return re.Ref, true
	}
	return ir.FutureRef{}, false
}
