// Package skill provides the registry of invocable capabilities agents are
// authorized against, plus a filesystem loader for markdown-defined skills.
package skill

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound signals the registry has no skill under the requested name.
var ErrNotFound = errors.New("skill: not found")

// Handler executes a skill invocation and returns its raw output.
type Handler func(ctx context.Context, input any) (any, error)

// Definition describes a registered skill.
type Definition struct {
	Name        string
	Description string
	Metadata    map[string]string
}

// Registry maps skill names to handlers. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]entry
}

type entry struct {
	def     Definition
	handler Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{skills: make(map[string]entry)}
}

// Register inserts a skill when its name is not in use.
func (r *Registry) Register(def Definition, handler Handler) error {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return errors.New("skill: name is empty")
	}
	if handler == nil {
		return fmt.Errorf("skill: %s handler is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.skills[name]; exists {
		return fmt.Errorf("skill: %s already registered", name)
	}
	def.Name = name
	r.skills[name] = entry{def: def, handler: handler}
	return nil
}

// Has reports whether name resolves to a registered skill.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.skills[name]
	return ok
}

// Invoke runs the named skill and returns its output unmodified. A missing
// skill yields ErrNotFound.
func (r *Registry) Invoke(ctx context.Context, name string, input any) (any, error) {
	r.mu.RLock()
	ent, ok := r.skills[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return ent.handler(ctx, input)
}

// List produces the registered definitions sorted by name.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.skills))
	for _, ent := range r.skills {
		defs = append(defs, ent.def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}
