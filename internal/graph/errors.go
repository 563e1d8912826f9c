package graph

import (
	"errors"
	"fmt"
	"strings"
)

// Scopes of a CyclicDependencyError.
const (
	ScopeFutures = "futures"
	ScopeModules = "modules"
)

// CyclicDependencyError reports futures (or modules) that can never become
// ready because they depend on each other.
type CyclicDependencyError struct {
	// Scope is ScopeFutures or ScopeModules.
	Scope string

	// Remaining names every node left unordered, in declaration order.
	Remaining []string

	// Cycles are concrete cycle paths, each ending where it started.
	Cycles [][]string
}

// Error implements the error interface.
func (e *CyclicDependencyError) Error() string {
	scope := e.Scope
	if scope == "" {
		scope = ScopeFutures
	}
	msg := fmt.Sprintf("cyclic dependency among %s: %s", scope, strings.Join(e.Remaining, ", "))
	for _, c := range e.Cycles {
		msg += "\n  cycle: " + strings.Join(c, " -> ")
	}
	return msg
}

// IsCyclicDependencyError reports whether err is or wraps a
// CyclicDependencyError.
func IsCyclicDependencyError(err error) bool {
	var ce *CyclicDependencyError
	return errors.As(err, &ce)
}

// UnknownReferenceError reports a future that references a future which
// was never declared.
type UnknownReferenceError struct {
	From string
	Ref  string
}

// Error implements the error interface.
func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("%s references undeclared future %s", e.From, e.Ref)
}

// IsUnknownReferenceError reports whether err is or wraps an
// UnknownReferenceError.
func IsUnknownReferenceError(err error) bool {
	var ue *UnknownReferenceError
	return errors.As(err, &ue)
}

// DuplicateFutureError reports two futures declared under the same ref.
type DuplicateFutureError struct {
	Ref string
}

// Error implements the error interface.
func (e *DuplicateFutureError) Error() string {
	return fmt.Sprintf("future %s declared more than once", e.Ref)
}
