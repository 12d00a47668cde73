package runtime

import (
	"sync"

	"github.com/project-ocre/ocre/pkg/ocreerr"
)

// Registry maps an engine name to its Descriptor. pkg/library embeds one
// per Library instance; nothing else should need its own.
type Registry struct {
	mu      sync.Mutex
	engines map[string]*Descriptor
}

// NewRegistry returns an empty engine registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]*Descriptor)}
}

// Register validates d and adds it under d.Name, calling d.Init if set.
// Registering a name that already exists returns ocreerr.Conflict.
func (r *Registry) Register(d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return ocreerr.InvalidArgument(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.engines[d.Name]; exists {
		return ocreerr.Conflictf("runtime engine %q is already registered", d.Name)
	}

	if d.Init != nil {
		if err := d.Init(); err != nil {
			return ocreerr.EngineErrorf("runtime engine %q failed to initialize: %w", d.Name, err)
		}
	}

	r.engines[d.Name] = d
	return nil
}

// Unregister calls d.Deinit if set and removes the engine. Unregistering an
// unknown name is a no-op, matching the teardown-is-best-effort idiom used
// throughout the library/context/container teardown paths.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	d, exists := r.engines[name]
	if exists {
		delete(r.engines, name)
	}
	r.mu.Unlock()

	if !exists {
		return nil
	}
	if d.Deinit != nil {
		return d.Deinit()
	}
	return nil
}

// Get looks up an engine by name.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.engines[name]
	return d, ok
}

// Names returns the currently registered engine names, in no particular
// order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	return names
}
