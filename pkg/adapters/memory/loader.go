package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/sight/pkg/ports"
)

// Loader implements ports.ConfigLoader using an in-memory map.
// Safe for concurrent use.
type Loader struct {
	mu      sync.RWMutex
	configs map[string][]byte
}

// NewLoader creates a new Loader with the provided raw documents.
func NewLoader(data map[string]string) *Loader {
	configs := make(map[string][]byte, len(data))
	for k, v := range data {
		configs[k] = []byte(v)
	}
	return &Loader{configs: configs}
}

// Put adds or replaces a document.
func (l *Loader) Put(id string, raw []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.configs[id] = append([]byte(nil), raw...)
}

// GetConfig retrieves the raw document of a configuration by id.
func (l *Loader) GetConfig(id string) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	content, ok := l.configs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrConfigNotFound, id)
	}
	return content, nil
}

// ListConfigs returns all available configuration ids.
func (l *Loader) ListConfigs() ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	keys := make([]string, 0, len(l.configs))
	for k := range l.configs {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}
