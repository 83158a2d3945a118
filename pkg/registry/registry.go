package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps string ids to values.
// It is safe for concurrent use.
type Registry[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

// NewRegistry creates a new empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		items: make(map[string]T),
	}
}

// Register adds a value to the registry.
// If a value with the same id exists, it is overwritten.
func (r *Registry[T]) Register(id string, v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[id] = v
}

// Add registers v under id, failing when the id is already taken.
func (r *Registry[T]) Add(id string, v T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; ok {
		return fmt.Errorf("id already registered: %s", id)
	}
	r.items[id] = v
	return nil
}

// Get looks up a value by id.
func (r *Registry[T]) Get(id string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[id]
	return v, ok
}

// MustGet looks up a value by id.
// Returns an error if the id is not found.
func (r *Registry[T]) MustGet(id string) (T, error) {
	v, ok := r.Get(id)
	if !ok {
		return v, fmt.Errorf("id not found: %s", id)
	}
	return v, nil
}

// Remove deletes id and reports whether it was present.
func (r *Registry[T]) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.items[id]
	delete(r.items, id)
	return ok
}

// Has reports whether id is registered.
func (r *Registry[T]) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// Keys returns the registered ids in sorted order.
func (r *Registry[T]) Keys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.items))
	for k := range r.items {
		keys = append(keys, k)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Len returns the number of registered ids.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
