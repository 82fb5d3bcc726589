package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/winnow/pkg/domain"
)

// Registry maps a focus key ("stage" or "stage:zone") to its Descriptor.
// Descriptors are immutable at runtime; Register exists for wiring at
// startup, not for live mutation.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]*Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{descriptors: make(map[string]*Descriptor)}
}

// Register adds a descriptor under its focus key. Re-registering a key
// overwrites it.
func (r *Registry) Register(d *Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors[d.Focus.Key()] = d
}

// Lookup resolves a focus to its descriptor. A miss is an explicit
// domain.ErrStrategyNotFound, never a silent default.
func (r *Registry) Lookup(focus domain.Focus) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[focus.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrStrategyNotFound, focus.Key())
	}
	return d, nil
}

// Keys returns the registered focus keys, sorted, for introspection.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.descriptors))
	for k := range r.descriptors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
