package sources

import (
	"fmt"
	"sync"
)

// Registry manages the known source adapters in declaration order
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	order    []string
}

// NewRegistry creates an empty adapter registry
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		order:    make([]string, 0),
	}
}

// Register adds an adapter to the registry
func (r *Registry) Register(a Adapter) error {
	if a == nil {
		return fmt.Errorf("cannot register nil adapter")
	}

	name := a.Source()
	if name == "" {
		return fmt.Errorf("adapter source name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("adapter for source %s already registered", name)
	}

	r.adapters[name] = a
	r.order = append(r.order, name)
	return nil
}

// Get retrieves an adapter by source name
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, exists := r.adapters[name]
	if !exists {
		return nil, fmt.Errorf("adapter for source %s not found", name)
	}
	return a, nil
}

// Has checks if a source is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.adapters[name]
	return exists
}

// Names returns the registered source names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Count returns the number of registered adapters
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}

// Filter returns the subset of requested names that are registered,
// preserving request order, along with the rejected names.
func (r *Registry) Filter(requested []string) (known, unknown []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range requested {
		if _, ok := r.adapters[name]; ok {
			known = append(known, name)
		} else {
			unknown = append(unknown, name)
		}
	}
	return known, unknown
}
