package providers

import (
	"sort"
	"strings"
	"sync"
)

type registryKey struct {
	capability Capability
	name       string
}

// Registry is a catalog mapping (capability, name) to a provider
// constructor. It performs no instantiation and no I/O; "not found" is its
// only failure mode and callers treat it as a configuration error.
//
// A Registry is an explicitly constructed value passed to the components
// that need it, so tests can run isolated configurations concurrently.
type Registry struct {
	mu      sync.RWMutex
	entries map[registryKey]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[registryKey]Constructor)}
}

// Register records a constructor for (capability, name). Registration is
// idempotent; the last write wins.
func (r *Registry) Register(capability Capability, name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[registryKey{capability, strings.ToLower(name)}] = ctor
}

// Resolve returns the constructor registered for (capability, name).
func (r *Registry) Resolve(capability Capability, name string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.entries[registryKey{capability, strings.ToLower(name)}]
	return ctor, ok
}

// List returns the sorted names registered for a capability.
func (r *Registry) List(capability Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for key := range r.entries {
		if key.capability == capability {
			names = append(names, key.name)
		}
	}
	sort.Strings(names)
	return names
}
