package generator

import (
	"sort"
	"sync"
)

// Registry is a process-local mapping from generator name to
// implementation. It is populated once per worker process during
// startup and read-only afterwards.
type Registry struct {
	mu         sync.RWMutex
	generators map[string]Generator
}

func NewRegistry() *Registry {
	return &Registry{generators: make(map[string]Generator)}
}

// Register adds a generator under its own name. Registering two
// generators with the same name is a programming error.
func (r *Registry) Register(g Generator) {
	if g == nil {
		panic("generator registry: nil generator")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.generators[g.Name()]; exists {
		panic("generator registry: duplicate generator " + g.Name())
	}
	r.generators[g.Name()] = g
}

// Get returns the generator registered under name, or nil and false
// when the name is unknown.
func (r *Registry) Get(name string) (Generator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.generators[name]
	return g, ok
}

// Names lists every registered generator name in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
