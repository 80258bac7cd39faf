// Package appliers provides implementations of the lifecycle.Applier
// contract and a registry for selecting one by name. The real
// control-plane applier is an external integration point; this package
// ships the in-process implementations hookmill itself needs.
package appliers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hookmill/hookmill/pkg/lifecycle"
)

// Factory constructs an applier instance.
type Factory func() (lifecycle.Applier, error)

// Registry maps applier names to factories.
type Registry struct {
	// mu protects the registry state.
	mu sync.RWMutex

	// factories maps applier name to factory.
	factories map[string]Factory
}

// NewRegistry creates an empty applier registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds an applier factory under a name. Registering a duplicate
// name is an error.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("applier already registered: %s", name)
	}
	r.factories[name] = factory
	return nil
}

// Open constructs the applier registered under name.
func (r *Registry) Open(name string) (lifecycle.Applier, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown applier: %s (registered: %v)", name, r.Names())
	}
	return factory()
}

// Names returns the registered applier names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with the built-in appliers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register("memory", func() (lifecycle.Applier, error) {
		return NewMemoryApplier(), nil
	})
	return r
}
