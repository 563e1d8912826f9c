package module

import (
	"sync"

	"github.com/roach88/keystone/internal/ir"
)

// Builder declares a module's futures and returns its outputs.
type Builder func(*Context) (Outputs, error)

// Outputs are the futures a module exposes, keyed by output name.
type Outputs map[string]ir.FutureRef

// Parameters are per-run values keyed by module name, then parameter name.
type Parameters map[string]map[string]ir.IRValue

// Registry maps module names to builders. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds a builder under name.
func (r *Registry) Register(name string, b Builder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.builders[name]; exists {
		return &DuplicateModuleError{Name: name}
	}
	r.builders[name] = b
	r.order = append(r.order, name)
	return nil
}

// MustRegister is Register for package-level module tables; it panics on
// a duplicate name.
func (r *Registry) MustRegister(name string, b Builder) {
	if err := r.Register(name, b); err != nil {
		panic(err)
	}
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Clone returns an independent registry with the same modules.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := &Registry{
		builders: make(map[string]Builder, len(r.builders)),
		order:    append([]string(nil), r.order...),
	}
	for name, b := range r.builders {
		c.builders[name] = b
	}
	return c
}

func (r *Registry) builder(name string) (Builder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[name]
	return b, ok
}

// NewSession starts a build session with the given run parameters.
func (r *Registry) NewSession(params Parameters) *Session {
	if params == nil {
		params = Parameters{}
	}
	return &Session{
		registry: r,
		params:   params,
		built:    make(map[string]Outputs),
	}
}

// Build builds name and everything it uses in a fresh session.
func (r *Registry) Build(name string, params Parameters) (*Session, error) {
	s := r.NewSession(params)
	if _, err := s.Build(name); err != nil {
		return nil, err
	}
	return s, nil
}
