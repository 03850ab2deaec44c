// Package registry binds foreign tables to the backend factories that
// produce their adapter instances. The host's catalog establishes the
// bindings at table-definition time; the executor resolves them per
// statement.
package registry

import (
	"fmt"
	"sync"

	"github.com/txn2/fdw-bridge/pkg/fdw"
)

// Factory constructs one adapter instance for a bound table.
type Factory func(desc *fdw.Descriptor) (fdw.ForeignData, error)

// Binding pairs a table descriptor with the factory serving it.
type Binding struct {
	Kind       string
	Descriptor *fdw.Descriptor
	Factory    Factory
}

// Registry manages backend factories and table bindings.
type Registry struct {
	mu sync.RWMutex

	// Backend factories by kind
	factories map[string]Factory

	// Table bindings by qualified name
	tables map[string]*Binding
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		tables:    make(map[string]*Binding),
	}
}

// RegisterFactory registers a backend factory for a kind.
func (r *Registry) RegisterFactory(kind string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

// Bind associates a table descriptor with a backend kind. The
// descriptor is immutable for the binding's lifetime.
func (r *Registry) Bind(desc *fdw.Descriptor, kind string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	factory, ok := r.factories[kind]
	if !ok {
		return fmt.Errorf("unknown backend kind: %s", kind)
	}

	name := desc.QualifiedName()
	if _, exists := r.tables[name]; exists {
		return fmt.Errorf("table %s already bound", name)
	}

	r.tables[name] = &Binding{Kind: kind, Descriptor: desc, Factory: factory}
	return nil
}

// Resolve returns the binding for a table by qualified name.
func (r *Registry) Resolve(table string) (*Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.tables[table]
	if !ok {
		return nil, fmt.Errorf("no foreign table bound as %s: %w", table, fdw.ErrNotFound)
	}
	return b, nil
}

// Tables returns the qualified names of all bound tables.
func (r *Registry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	return names
}
