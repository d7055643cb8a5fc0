package source

import (
	"fmt"

	"github.com/inkfeed/inkfeed/internal/ports"
)

// Registry keeps a mapping from adapter kinds to their implementations.
type Registry struct {
	adapters map[string]ports.SourceAdapter
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: map[string]ports.SourceAdapter{}}
}

// Register adds or replaces an adapter implementation.
func (r *Registry) Register(adapter ports.SourceAdapter) {
	if r.adapters == nil {
		r.adapters = map[string]ports.SourceAdapter{}
	}
	r.adapters[adapter.Kind()] = adapter
}

// Resolve returns an adapter by kind or an error if it is absent.
func (r *Registry) Resolve(kind string) (ports.SourceAdapter, error) {
	if adapter, ok := r.adapters[kind]; ok {
		return adapter, nil
	}
	return nil, fmt.Errorf("source kind %s is not registered", kind)
}
