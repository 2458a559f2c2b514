package graph

import (
	"fmt"
	"sync"

	"github.com/eleven-am/glade/internal/domain"
)

// Registry maps operation names to functions. Records reference
// operations by name, so every process that evaluates a record must
// register the same names; the registry is the explicit replacement
// for shipping serialized closures between processes.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]domain.OpFunc
}

func NewRegistry() *Registry {
	return &Registry{
		ops: make(map[string]domain.OpFunc),
	}
}

func (r *Registry) Register(name string, fn domain.OpFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[name] = fn
}

func (r *Registry) Lookup(name string) (domain.OpFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.ops[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrOpNotRegistered, name)
	}
	return fn, nil
}

// Names returns the registered operation names, mainly for
// diagnostics.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	return names
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry used by the package-level
// helpers.
func Default() *Registry {
	return defaultRegistry
}

// Register adds an operation to the default registry.
func Register(name string, fn domain.OpFunc) {
	defaultRegistry.Register(name, fn)
}
