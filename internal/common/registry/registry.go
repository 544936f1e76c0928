// Package registry provides a generic, thread-safe registry of named items.
//
// Example usage:
//
//	actions := registry.New[actions.Action]()
//	actions.Register(isolateHosts)
//	action, err := actions.Get("isolate_hosts")
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
)

// Named is implemented by anything stored in a Registry
type Named interface {
	Name() string
}

// Registry holds items keyed by their name
type Registry[T Named] struct {
	items map[string]T
	mu    sync.RWMutex
}

// New creates a new empty registry for items of type T
func New[T Named]() *Registry[T] {
	return &Registry[T]{
		items: make(map[string]T),
	}
}

// Register adds item under its name, replacing any previous item with that name
func (r *Registry[T]) Register(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.Name()] = item
}

// Get retrieves an item by name
func (r *Registry[T]) Get(name string) (T, error) {
	r.mu.RLock()
	item, exists := r.items[name]
	r.mu.RUnlock()

	if !exists {
		var zero T
		return zero, errors.NotFoundError(fmt.Sprintf("action %s", name))
	}
	return item, nil
}

// Names returns the registered names in sorted order
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if name is registered
func (r *Registry[T]) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.items[name]
	return exists
}

// Count returns the number of registered items
func (r *Registry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
