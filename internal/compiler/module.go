package compiler

import (
	"fmt"
	"math/big"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/keystone/internal/ir"
)

// Definition is one compiled module.
type Definition struct {
	Name    string
	Futures []FutureDecl

	// Outputs map output names to future ids declared by this module.
	Outputs map[string]string

	Pos token.Pos
}

// FutureDecl is one declared future, before ids and references are bound.
type FutureDecl struct {
	Kind     ir.Kind
	ID       string
	Artifact string
	Method   string

	// Target is the reference a call or static_call is sent to.
	Target string

	// Address is the contract_at address: a literal or a reference.
	Address *ArgDecl

	Args  []ArgDecl
	Value ir.IRValue
	After []string
	Pos   token.Pos
}

// ArgDecl is one declared argument. Exactly one of Literal, Ref and Param
// is set.
type ArgDecl struct {
	Literal ir.IRValue
	Ref     string
	Param   string

	// Default applies to Param; nil makes the parameter required.
	Default ir.IRValue
}

// CompileModule compiles the value of one "module: <Name>" field.
func CompileModule(v cue.Value) (*Definition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &Definition{Outputs: make(map[string]string), Pos: v.Pos()}
	if sels := v.Path().Selectors(); len(sels) > 0 {
		def.Name = sels[len(sels)-1].String()
	}

	futuresVal := v.LookupPath(cue.ParsePath("futures"))
	if !futuresVal.Exists() {
		return nil, &CompileError{Field: "futures", Message: "futures are required", Pos: v.Pos()}
	}
	iter, err := futuresVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		fd, err := compileFuture(iter.Value(), fmt.Sprintf("futures[%d]", i))
		if err != nil {
			return nil, err
		}
		def.Futures = append(def.Futures, *fd)
	}

	outputsVal := v.LookupPath(cue.ParsePath("outputs"))
	if outputsVal.Exists() {
		outIter, err := outputsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for outIter.Next() {
			id, err := outIter.Value().String()
			if err != nil {
				return nil, &CompileError{
					Field:   "outputs." + outIter.Label(),
					Message: "output must name a future id",
					Pos:     outIter.Value().Pos(),
				}
			}
			def.Outputs[outIter.Label()] = id
		}
	}

	return def, nil
}

func compileFuture(v cue.Value, field string) (*FutureDecl, error) {
	fd := &FutureDecl{Pos: v.Pos()}

	kind, err := requiredString(v, "kind", field)
	if err != nil {
		return nil, err
	}
	fd.Kind = ir.Kind(kind)
	if !ir.ValidKinds[fd.Kind] {
		return nil, &CompileError{
			Field:   field + ".kind",
			Message: fmt.Sprintf("unknown kind %q", kind),
			Pos:     v.Pos(),
		}
	}

	if fd.ID, err = optionalString(v, "id", field); err != nil {
		return nil, err
	}

	switch fd.Kind {
	case ir.KindDeploy:
		if fd.Artifact, err = requiredString(v, "artifact", field); err != nil {
			return nil, err
		}
	case ir.KindCall, ir.KindStaticCall:
		if fd.Target, err = requiredString(v, "target", field); err != nil {
			return nil, err
		}
		if fd.Method, err = requiredString(v, "method", field); err != nil {
			return nil, err
		}
	case ir.KindContractAt:
		if fd.Artifact, err = requiredString(v, "artifact", field); err != nil {
			return nil, err
		}
		addrVal := v.LookupPath(cue.ParsePath("address"))
		if !addrVal.Exists() {
			return nil, &CompileError{Field: field + ".address", Message: "address is required", Pos: v.Pos()}
		}
		addr, err := compileArg(addrVal, field+".address")
		if err != nil {
			return nil, err
		}
		fd.Address = &addr
	case ir.KindValue:
		if fd.ID == "" {
			return nil, &CompileError{Field: field + ".id", Message: "value futures need an id", Pos: v.Pos()}
		}
		valueVal := v.LookupPath(cue.ParsePath("value"))
		if !valueVal.Exists() {
			return nil, &CompileError{Field: field + ".value", Message: "value is required", Pos: v.Pos()}
		}
		if fd.Value, err = toIRValue(valueVal, field+".value"); err != nil {
			return nil, err
		}
	}

	argsVal := v.LookupPath(cue.ParsePath("args"))
	if argsVal.Exists() {
		if fd.Kind == ir.KindValue || fd.Kind == ir.KindContractAt {
			return nil, &CompileError{
				Field:   field + ".args",
				Message: fmt.Sprintf("%s futures take no args", fd.Kind),
				Pos:     argsVal.Pos(),
			}
		}
		argIter, err := argsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; argIter.Next(); i++ {
			arg, err := compileArg(argIter.Value(), fmt.Sprintf("%s.args[%d]", field, i))
			if err != nil {
				return nil, err
			}
			fd.Args = append(fd.Args, arg)
		}
	}

	afterVal := v.LookupPath(cue.ParsePath("after"))
	if afterVal.Exists() {
		afterIter, err := afterVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for afterIter.Next() {
			s, err := afterIter.Value().String()
			if err != nil {
				return nil, &CompileError{
					Field:   field + ".after",
					Message: "after entries must be future references",
					Pos:     afterIter.Value().Pos(),
				}
			}
			fd.After = append(fd.After, s)
		}
	}

	return fd, nil
}

func compileArg(v cue.Value, field string) (ArgDecl, error) {
	if v.Kind() == cue.StructKind {
		if refVal := v.LookupPath(cue.ParsePath("ref")); refVal.Exists() {
			ref, err := refVal.String()
			if err != nil || ref == "" {
				return ArgDecl{}, &CompileError{Field: field + ".ref", Message: "ref must be a non-empty string", Pos: refVal.Pos()}
			}
			return ArgDecl{Ref: ref}, nil
		}
		if paramVal := v.LookupPath(cue.ParsePath("param")); paramVal.Exists() {
			name, err := paramVal.String()
			if err != nil || name == "" {
				return ArgDecl{}, &CompileError{Field: field + ".param", Message: "param must be a non-empty string", Pos: paramVal.Pos()}
			}
			arg := ArgDecl{Param: name}
			if defVal := v.LookupPath(cue.ParsePath("default")); defVal.Exists() {
				if arg.Default, err = toIRValue(defVal, field+".default"); err != nil {
					return ArgDecl{}, err
				}
			}
			return arg, nil
		}
	}

	lit, err := toIRValue(v, field)
	if err != nil {
		return ArgDecl{}, err
	}
	return ArgDecl{Literal: lit}, nil
}

// toIRValue converts a concrete CUE value. Integers beyond int64 become
// decimal strings; floats are rejected.
func toIRValue(v cue.Value, field string) (ir.IRValue, error) {
	switch v.Kind() {
	case cue.NullKind:
		return ir.IRNull{}, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	case cue.IntKind:
		if n, err := v.Int64(); err == nil {
			return ir.IRInt(n), nil
		}
		n, err := v.Int(new(big.Int))
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(n.String()), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var arr ir.IRArray
		for i := 0; iter.Next(); i++ {
			elem, err := toIRValue(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		if arr == nil {
			arr = ir.IRArray{}
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.IRObject{}
		for iter.Next() {
			elem, err := toIRValue(iter.Value(), field+"."+iter.Label())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = elem
		}
		return obj, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   field,
			Message: "floats are forbidden, use an integer or a decimal string",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("value must be concrete, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func requiredString(v cue.Value, name, field string) (string, error) {
	s, err := optionalString(v, name, field)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", &CompileError{Field: field + "." + name, Message: name + " is required", Pos: v.Pos()}
	}
	return s, nil
}

func optionalString(v cue.Value, name, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Field: field + "." + name, Message: name + " must be a string", Pos: fv.Pos()}
	}
	return s, nil
}
