package tool

import (
	"fmt"
	"sort"
	"sync"
)

// ErrDuplicateTool is returned by a registry that forbids overwriting when a
// name is registered twice.
var ErrDuplicateTool = fmt.Errorf("tool already registered")

// Registry stores tool definitions. Pure lookup, no I/O.
type Registry interface {
	// Register adds a tool. By default an existing name is overwritten,
	// which is what reload relies on; a registry created with
	// WithNoOverwrite fails with ErrDuplicateTool instead.
	Register(t Tool) error

	// Lookup returns the tool with the given name.
	Lookup(name string) (Tool, bool)

	// List returns all registered tools ordered by name.
	List() []Tool
}

type registryOption func(*memoryRegistry)

// WithNoOverwrite makes Register fail on duplicate names.
func WithNoOverwrite() registryOption {
	return func(r *memoryRegistry) { r.noOverwrite = true }
}

type memoryRegistry struct {
	mu          sync.RWMutex
	tools       map[string]Tool
	noOverwrite bool
}

// NewRegistry creates an in-memory registry.
func NewRegistry(opts ...registryOption) Registry {
	r := &memoryRegistry{tools: make(map[string]Tool)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *memoryRegistry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q has no handler", t.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists && r.noOverwrite {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

func (r *memoryRegistry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

func (r *memoryRegistry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
