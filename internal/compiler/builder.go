package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/keystone/internal/ir"
	"github.com/roach88/keystone/internal/module"
)

// Register adds every definition to the registry.
func Register(r *module.Registry, defs []*Definition) error {
	for _, def := range defs {
		if err := r.Register(def.Name, def.Builder()); err != nil {
			return err
		}
	}
	return nil
}

// Builder returns a module builder that declares the definition's futures.
//
// A reference names a future declared earlier in the same module by id.
// Failing that, "Module.output" names another module's output; the module
// is used (built) on first reference.
func (d *Definition) Builder() module.Builder {
	return func(c *module.Context) (module.Outputs, error) {
		local := make(map[string]ir.FutureRef)

		resolve := func(ref string) (ir.FutureRef, error) {
			if r, ok := local[ref]; ok {
				return r, nil
			}
			mod, out, ok := strings.Cut(ref, ".")
			if !ok || mod == "" || out == "" {
				return ir.FutureRef{}, fmt.Errorf("reference %q names no future declared before it", ref)
			}
			r := c.Output(mod, out)
			if err := c.Err(); err != nil {
				return ir.FutureRef{}, err
			}
			return r, nil
		}

		arg := func(a ArgDecl) (any, error) {
			switch {
			case a.Ref != "":
				return resolve(a.Ref)
			case a.Param != "":
				var def any
				if a.Default != nil {
					def = a.Default
				}
				v := c.Parameter(a.Param, def)
				if err := c.Err(); err != nil {
					return nil, err
				}
				return v, nil
			default:
				return a.Literal, nil
			}
		}

		for _, fd := range d.Futures {
			var opts []module.Option
			if fd.ID != "" {
				opts = append(opts, module.WithID(fd.ID))
			}
			for _, a := range fd.After {
				r, err := resolve(a)
				if err != nil {
					return nil, err
				}
				opts = append(opts, module.WithAfter(r))
			}

			args := make([]any, len(fd.Args))
			for i, a := range fd.Args {
				v, err := arg(a)
				if err != nil {
					return nil, err
				}
				args[i] = v
			}

			var ref ir.FutureRef
			switch fd.Kind {
			case ir.KindDeploy:
				ref = c.Contract(fd.Artifact, args, opts...)
			case ir.KindCall, ir.KindStaticCall:
				target, err := resolve(fd.Target)
				if err != nil {
					return nil, err
				}
				if fd.Kind == ir.KindCall {
					ref = c.Call(target, fd.Method, args, opts...)
				} else {
					ref = c.StaticCall(target, fd.Method, args, opts...)
				}
			case ir.KindContractAt:
				addr, err := arg(*fd.Address)
				if err != nil {
					return nil, err
				}
				ref = c.ContractAt(fd.Artifact, addr, opts...)
			case ir.KindValue:
				ref = c.Value(fd.ID, fd.Value, opts...)
			}
			if err := c.Err(); err != nil {
				return nil, err
			}
			local[ref.ID] = ref
		}

		outputs := make(module.Outputs, len(d.Outputs))
		for name, id := range d.Outputs {
			r, ok := local[id]
			if !ok {
				return nil, fmt.Errorf("output %q names undeclared future %q", name, id)
			}
			outputs[name] = r
		}
		return outputs, nil
	}
}
