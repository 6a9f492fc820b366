package tracker

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds an adapter from its injected configuration.
type Factory func(cfg AdapterConfig) (Adapter, error)

// Registry manages registered tracker adapter factories. Adapters register
// themselves at init time; the engine instantiates them by name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

var globalRegistry = &Registry{factories: make(map[string]Factory)}

// Register adds a factory to the global registry. Called from adapter
// package init() functions. The name should be lowercase.
func Register(name string, factory Factory) {
	globalRegistry.Register(name, factory)
}

// New creates a new instance of the named adapter from the global registry.
func New(name string, cfg AdapterConfig) (Adapter, error) {
	return globalRegistry.New(name, cfg)
}

// List returns the names of all registered adapters.
func List() []string {
	return globalRegistry.List()
}

// IsRegistered checks the global registry for the named adapter.
func IsRegistered(name string) bool {
	return globalRegistry.IsRegistered(name)
}

// Register adds a factory to this registry.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// New creates a new instance of the named adapter.
func (r *Registry) New(name string, cfg AdapterConfig) (Adapter, error) {
	r.mu.RLock()
	factory := r.factories[name]
	r.mu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unknown tracker %q (available: %v)", name, r.List())
	}
	return factory(cfg)
}

// List returns the registered adapter names, sorted alphabetically.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if an adapter with the given name is registered.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}
