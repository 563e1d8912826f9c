package ir

import (
	"fmt"
	"strings"
)

// Kind identifies the primitive operation a future performs.
type Kind string

const (
	// KindDeploy creates a new contract instance from an artifact.
	KindDeploy Kind = "deploy"
	// KindCall sends a state-changing transaction to a deployed instance.
	KindCall Kind = "call"
	// KindStaticCall reads a method's return value without a transaction.
	KindStaticCall Kind = "static_call"
	// KindContractAt binds an existing address to an artifact.
	KindContractAt Kind = "contract_at"
	// KindValue is a literal with no network effect.
	KindValue Kind = "value"
)

// ValidKinds lists every supported future kind.
var ValidKinds = map[Kind]bool{
	KindDeploy:     true,
	KindCall:       true,
	KindStaticCall: true,
	KindContractAt: true,
	KindValue:      true,
}

// SideEffecting reports whether executing the kind broadcasts a transaction.
func (k Kind) SideEffecting() bool {
	return k == KindDeploy || k == KindCall
}

// Status is the lifecycle state of a future.
//
//	pending → ready → executing → confirmed | failed
type Status string

const (
	StatusPending   Status = "pending"
	StatusReady     Status = "ready"
	StatusExecuting Status = "executing"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// FutureRef identifies a future by its owning module and its id within
// that module. Printed as "Module#id".
type FutureRef struct {
	Module string `json:"module"`
	ID     string `json:"id"`
}

// String returns the "Module#id" form.
func (r FutureRef) String() string {
	return r.Module + "#" + r.ID
}

// IsZero reports whether the ref is unset.
func (r FutureRef) IsZero() bool {
	return r.Module == "" && r.ID == ""
}

// ParseFutureRef parses the "Module#id" form.
func ParseFutureRef(s string) (FutureRef, error) {
	module, id, ok := strings.Cut(s, "#")
	if !ok || module == "" || id == "" {
		return FutureRef{}, fmt.Errorf("invalid future reference %q: want Module#id", s)
	}
	return FutureRef{Module: module, ID: id}, nil
}

// Arg is one argument slot: either a literal value or a reference to
// another future's result.
type Arg struct {
	Literal IRValue    `json:"literal,omitempty"`
	Ref     *FutureRef `json:"ref,omitempty"`
}

// Lit wraps a literal value as an argument.
func Lit(v IRValue) Arg {
	return Arg{Literal: v}
}

// RefArg wraps a future reference as an argument.
func RefArg(ref FutureRef) Arg {
	r := ref
	return Arg{Ref: &r}
}

// IsRef reports whether the argument refers to another future.
func (a Arg) IsRef() bool {
	return a.Ref != nil
}

// Future is a deferred unit of deployment work. Futures are declared by
// module builders and executed later by the engine.
type Future struct {
	Ref  FutureRef `json:"ref"`
	Kind Kind      `json:"kind"`

	// Artifact is the contract name for deploy, contract_at and calls.
	Artifact string `json:"artifact,omitempty"`

	// Method is the contract method for call and static_call.
	Method string `json:"method,omitempty"`

	// Target is the contract a call or static_call is sent to, and the
	// address bound by contract_at.
	Target *Arg `json:"target,omitempty"`

	// Inputs are constructor or method arguments, in order.
	Inputs []Arg `json:"inputs,omitempty"`

	// Value is the literal produced by a value future.
	Value IRValue `json:"value,omitempty"`

	// After lists ordering-only dependencies.
	After []FutureRef `json:"after,omitempty"`

	// Seq is the declaration index within the owning module.
	Seq int `json:"seq"`
}

// Dependencies returns every future this one references, deduplicated, in
// the order they first appear (target, inputs, after).
func (f *Future) Dependencies() []FutureRef {
	seen := make(map[FutureRef]bool)
	var deps []FutureRef
	add := func(ref FutureRef) {
		if !seen[ref] {
			seen[ref] = true
			deps = append(deps, ref)
		}
	}
	if f.Target != nil && f.Target.Ref != nil {
		add(*f.Target.Ref)
	}
	for _, in := range f.Inputs {
		if in.Ref != nil {
			add(*in.Ref)
		}
	}
	for _, ref := range f.After {
		add(ref)
	}
	return deps
}

// Describe renders a one-line summary such as
// "deploy IPMarket(StoryHelper#StoryHelper, 0x61DD...)".
func (f *Future) Describe() string {
	var b strings.Builder
	b.WriteString(string(f.Kind))
	b.WriteByte(' ')
	switch f.Kind {
	case KindValue:
		b.WriteString(Format(f.Value))
		return b.String()
	case KindCall, KindStaticCall:
		b.WriteString(describeArg(*f.Target))
		b.WriteByte('.')
		b.WriteString(f.Method)
	case KindContractAt:
		b.WriteString(f.Artifact)
		b.WriteString(" at ")
		b.WriteString(describeArg(*f.Target))
		return b.String()
	default:
		b.WriteString(f.Artifact)
	}
	b.WriteByte('(')
	for i, in := range f.Inputs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(describeArg(in))
	}
	b.WriteByte(')')
	return b.String()
}

func describeArg(a Arg) string {
	if a.Ref != nil {
		return a.Ref.String()
	}
	return Format(a.Literal)
}
