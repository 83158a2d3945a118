package com

import (
	"reflect"
	"sort"
	"sync"

	"github.com/aretw0/sight/pkg/worker"
)

// HasSlots is implemented by objects exposing named slots.
type HasSlots interface {
	Slots() *Slots
}

// Slots is a keyed registry of slots. Slots registered here are owned by it.
type Slots struct {
	mu sync.RWMutex
	m  map[string]*Slot
	w  *worker.Worker
}

// NewSlots creates an empty registry.
func NewSlots() *Slots {
	return &Slots{m: make(map[string]*Slot)}
}

// Slot returns the slot registered under key, or nil.
func (s *Slots) Slot(key string) *Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m[key]
}

// New wraps fn in a slot bound to the registry's worker and registers it under key.
func (s *Slots) New(key string, fn any) *Slot {
	slot := NewSlot(fn)
	s.Set(key, slot)
	return slot
}

// Set registers slot under key, silently replacing any previous one. The slot takes the
// registry's worker when one is set.
func (s *Slots) Set(key string, slot *Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot.owner.Store(s)
	if s.w != nil {
		slot.SetWorker(s.w)
	}
	s.m[key] = slot
}

// Keys returns the registered keys in sorted order.
func (s *Slots) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetWorker binds every registered slot, and every slot registered later, to w.
func (s *Slots) SetWorker(w *worker.Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
	for _, slot := range s.m {
		slot.SetWorker(w)
	}
}

// Worker returns the worker slots are bound to.
func (s *Slots) Worker() *worker.Worker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.w
}

// Close closes every registered slot.
func (s *Slots) Close() {
	s.mu.RLock()
	slots := make([]*Slot, 0, len(s.m))
	for _, slot := range s.m {
		slots = append(slots, slot)
	}
	s.mu.RUnlock()
	for _, slot := range slots {
		slot.Close()
	}
}

// SlotOf returns the slot registered under key if it wraps a func of type F, nil otherwise.
func SlotOf[F any](s *Slots, key string) *Slot {
	slot := s.Slot(key)
	if slot == nil || slot.Type() != reflect.TypeFor[F]() {
		return nil
	}
	return slot
}
