package data

import (
	"sort"
	"sync"
)

// Composite is an object holding named sub-objects.
type Composite struct {
	*Base

	mu    sync.RWMutex
	items map[string]Object
}

func NewComposite() *Composite {
	return &Composite{Base: NewBase(TypeComposite), items: make(map[string]Object)}
}

// Get returns the sub-object at key, or nil.
func (c *Composite) Get(key string) Object {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items[key]
}

// Set stores obj at key, replacing any previous sub-object.
func (c *Composite) Set(key string, obj Object) {
	c.mu.Lock()
	c.items[key] = obj
	c.mu.Unlock()
}

// Remove deletes key.
func (c *Composite) Remove(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Keys returns the sub-object keys in sorted order.
func (c *Composite) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Composite) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
