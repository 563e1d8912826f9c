package module

import (
	"fmt"

	"github.com/roach88/keystone/internal/ir"
)

// Context is handed to a Builder to declare futures. Declaration errors are
// sticky: after the first one every later declaration is ignored and the
// error is returned from the build.
type Context struct {
	session *Session
	module  string
	futures []*ir.Future
	ids     map[string]bool
	err     error
}

// Option adjusts a single declaration.
type Option func(*declaration)

type declaration struct {
	id    string
	after []ir.FutureRef
}

// WithID overrides the default future id.
func WithID(id string) Option {
	return func(d *declaration) { d.id = id }
}

// WithAfter adds ordering-only dependencies.
func WithAfter(refs ...ir.FutureRef) Option {
	return func(d *declaration) { d.after = append(d.after, refs...) }
}

// Module returns the name of the module being built.
func (c *Context) Module() string {
	return c.module
}

// Err returns the first declaration error, if any.
func (c *Context) Err() error {
	return c.err
}

// Contract declares a deploy of artifact with constructor args. The
// default id is the artifact name.
func (c *Context) Contract(artifact string, args []any, opts ...Option) ir.FutureRef {
	if artifact == "" {
		c.fail("contract artifact name is required")
		return ir.FutureRef{}
	}
	return c.declare(&ir.Future{Kind: ir.KindDeploy, Artifact: artifact}, artifact, args, opts)
}

// Call declares a state-changing method call on target. The default id is
// "<target id>.<method>".
func (c *Context) Call(target ir.FutureRef, method string, args []any, opts ...Option) ir.FutureRef {
	return c.invoke(ir.KindCall, target, method, args, opts)
}

// StaticCall declares a read-only method call on target whose return value
// becomes the future's result. The default id is "<target id>.<method>".
func (c *Context) StaticCall(target ir.FutureRef, method string, args []any, opts ...Option) ir.FutureRef {
	return c.invoke(ir.KindStaticCall, target, method, args, opts)
}

func (c *Context) invoke(kind ir.Kind, target ir.FutureRef, method string, args []any, opts []Option) ir.FutureRef {
	if target.IsZero() {
		c.fail(fmt.Sprintf("%s %s: target is required", kind, method))
		return ir.FutureRef{}
	}
	if method == "" {
		c.fail(fmt.Sprintf("%s on %s: method is required", kind, target))
		return ir.FutureRef{}
	}
	t := ir.RefArg(target)
	f := &ir.Future{Kind: kind, Method: method, Target: &t}
	if tf := c.lookup(target); tf != nil {
		f.Artifact = tf.Artifact
	}
	return c.declare(f, target.ID+"."+method, args, opts)
}

// ContractAt binds an existing address to artifact. address is a literal
// hex string or a reference to a future that produces one. The default id
// is the artifact name.
func (c *Context) ContractAt(artifact string, address any, opts ...Option) ir.FutureRef {
	if artifact == "" {
		c.fail("contract_at artifact name is required")
		return ir.FutureRef{}
	}
	arg, err := toArg(address)
	if err != nil {
		c.fail(fmt.Sprintf("contract_at %s: address: %v", artifact, err))
		return ir.FutureRef{}
	}
	if !arg.IsRef() {
		if _, ok := arg.Literal.(ir.IRString); !ok {
			c.fail(fmt.Sprintf("contract_at %s: address must be a string", artifact))
			return ir.FutureRef{}
		}
	}
	return c.declare(&ir.Future{Kind: ir.KindContractAt, Artifact: artifact, Target: &arg}, artifact, nil, opts)
}

// Value declares a literal. The default id is name.
func (c *Context) Value(name string, v any, opts ...Option) ir.FutureRef {
	if name == "" {
		c.fail("value name is required")
		return ir.FutureRef{}
	}
	iv, err := ir.FromAny(v)
	if err != nil {
		c.fail(fmt.Sprintf("value %s: %v", name, err))
		return ir.FutureRef{}
	}
	return c.declare(&ir.Future{Kind: ir.KindValue, Value: iv}, name, nil, opts)
}

// Parameter returns the run parameter name for this module, or def when it
// was not supplied. A nil def makes the parameter required.
func (c *Context) Parameter(name string, def any) ir.IRValue {
	if v, ok := c.session.parameter(c.module, name); ok {
		return v
	}
	if def == nil {
		c.fail(fmt.Sprintf("parameter %q is required", name))
		return ir.IRNull{}
	}
	v, err := ir.FromAny(def)
	if err != nil {
		c.fail(fmt.Sprintf("parameter %q default: %v", name, err))
		return ir.IRNull{}
	}
	return v
}

// Use builds module name (once per session) and returns its outputs.
func (c *Context) Use(name string) Outputs {
	if c.err != nil {
		return Outputs{}
	}
	out, err := c.session.Build(name)
	if err != nil {
		c.err = err
		return Outputs{}
	}
	return out
}

// Output uses module and returns one of its outputs.
func (c *Context) Output(module, output string) ir.FutureRef {
	out := c.Use(module)
	if c.err != nil {
		return ir.FutureRef{}
	}
	ref, ok := out[output]
	if !ok {
		c.fail(fmt.Sprintf("module %s has no output %q", module, output))
		return ir.FutureRef{}
	}
	return ref
}

func (c *Context) declare(f *ir.Future, defaultID string, args []any, opts []Option) ir.FutureRef {
	if c.err != nil {
		return ir.FutureRef{}
	}

	d := declaration{id: defaultID}
	for _, opt := range opts {
		opt(&d)
	}
	if d.id == "" {
		c.fail(fmt.Sprintf("%s: empty future id", f.Kind))
		return ir.FutureRef{}
	}
	if c.ids[d.id] {
		c.fail(fmt.Sprintf("duplicate future id %q", d.id))
		return ir.FutureRef{}
	}

	for i, a := range args {
		arg, err := toArg(a)
		if err != nil {
			c.fail(fmt.Sprintf("%s %s: argument %d: %v", f.Kind, d.id, i, err))
			return ir.FutureRef{}
		}
		f.Inputs = append(f.Inputs, arg)
	}
	for _, ref := range d.after {
		if ref.IsZero() {
			c.fail(fmt.Sprintf("%s %s: empty after reference", f.Kind, d.id))
			return ir.FutureRef{}
		}
	}

	f.Ref = ir.FutureRef{Module: c.module, ID: d.id}
	f.After = d.after
	f.Seq = len(c.futures)
	c.ids[d.id] = true
	c.futures = append(c.futures, f)
	return f.Ref
}

// lookup finds a future declared so far in this module or a built one.
func (c *Context) lookup(ref ir.FutureRef) *ir.Future {
	if ref.Module == c.module {
		for _, f := range c.futures {
			if f.Ref == ref {
				return f
			}
		}
		return nil
	}
	for _, f := range c.session.futures {
		if f.Ref == ref {
			return f
		}
	}
	return nil
}

func (c *Context) fail(msg string) {
	if c.err == nil {
		c.err = &DefinitionError{Module: c.module, Message: msg}
	}
}

func toArg(v any) (ir.Arg, error) {
	switch a := v.(type) {
	case ir.Arg:
		return a, nil
	case ir.FutureRef:
		if a.IsZero() {
			return ir.Arg{}, fmt.Errorf("empty future reference")
		}
		return ir.RefArg(a), nil
	case *ir.FutureRef:
		if a == nil || a.IsZero() {
			return ir.Arg{}, fmt.Errorf("empty future reference")
		}
		return ir.RefArg(*a), nil
	}
	iv, err := ir.FromAny(v)
	if err != nil {
		return ir.Arg{}, err
	}
	return ir.Lit(iv), nil
}
