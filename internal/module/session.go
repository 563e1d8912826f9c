package module

import (
	"fmt"
	"slices"
	"sort"

	"github.com/roach88/keystone/internal/graph"
	"github.com/roach88/keystone/internal/ir"
)

// Session builds modules once each and accumulates their futures. A
// Session is not safe for concurrent use.
type Session struct {
	registry *Registry
	params   Parameters

	built    map[string]Outputs
	building []string
	modules  []string
	futures  []*ir.Future
	declared map[ir.FutureRef]bool
}

// Build builds name, building every module it uses first. Building an
// already built module returns its memoized outputs.
func (s *Session) Build(name string) (Outputs, error) {
	if out, ok := s.built[name]; ok {
		return out, nil
	}

	if i := slices.Index(s.building, name); i >= 0 {
		path := append(append([]string(nil), s.building[i:]...), name)
		return nil, &graph.CyclicDependencyError{
			Scope:     graph.ScopeModules,
			Remaining: append([]string(nil), s.building[i:]...),
			Cycles:    [][]string{path},
		}
	}

	b, ok := s.registry.builder(name)
	if !ok {
		return nil, &UnknownModuleError{Name: name}
	}

	s.building = append(s.building, name)
	defer func() { s.building = s.building[:len(s.building)-1] }()

	ctx := &Context{
		session: s,
		module:  name,
		ids:     make(map[string]bool),
	}
	out, err := b(ctx)
	if ctx.err != nil {
		return nil, ctx.err
	}
	if err != nil {
		return nil, fmt.Errorf("build module %s: %w", name, err)
	}

	if s.declared == nil {
		s.declared = make(map[ir.FutureRef]bool)
	}
	for _, f := range ctx.futures {
		s.declared[f.Ref] = true
	}
	keys := make([]string, 0, len(out))
	for key := range out {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if ref := out[key]; !s.declared[ref] {
			return nil, &DefinitionError{
				Module:  name,
				Message: fmt.Sprintf("output %q refers to undeclared future %s", key, out[key]),
			}
		}
	}

	if out == nil {
		out = Outputs{}
	}
	s.built[name] = out
	s.modules = append(s.modules, name)
	s.futures = append(s.futures, ctx.futures...)
	return out, nil
}

// Futures returns every declared future in module build order, then
// declaration order.
func (s *Session) Futures() []*ir.Future {
	return s.futures
}

// Modules returns the built module names in build order. A module used by
// another is built, and listed, before it.
func (s *Session) Modules() []string {
	return s.modules
}

// Outputs returns a built module's outputs.
func (s *Session) Outputs(name string) (Outputs, bool) {
	out, ok := s.built[name]
	return out, ok
}

func (s *Session) parameter(module, name string) (ir.IRValue, bool) {
	v, ok := s.params[module][name]
	return v, ok
}
