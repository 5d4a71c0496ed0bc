package source

import "fmt"

// Registry maps source names to adapters.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds a registry holding the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// DefaultRegistry wires up all built-in catalog adapters.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewHuggingFace(),
		NewCivitai(),
		NewTensorArt(),
	)
}

// Get returns the adapter for name.
func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return a, nil
}

// Names lists the registered source names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
