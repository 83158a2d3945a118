package com

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// HasSignals is implemented by objects exposing named signals.
type HasSignals interface {
	Signals() *Signals
}

// Signals is a keyed registry of signals.
type Signals struct {
	mu sync.RWMutex
	m  map[string]*Signal
}

// NewSignals creates an empty registry.
func NewSignals() *Signals {
	return &Signals{m: make(map[string]*Signal)}
}

// Signal returns the signal registered under key, or nil.
func (s *Signals) Signal(key string) *Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m[key]
}

// Set registers sig under key, silently replacing any previous one.
func (s *Signals) Set(key string, sig *Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = sig
}

// Keys returns the registered keys in sorted order.
func (s *Signals) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close closes every registered signal.
func (s *Signals) Close() {
	s.mu.RLock()
	sigs := make([]*Signal, 0, len(s.m))
	for _, sig := range s.m {
		sigs = append(sigs, sig)
	}
	s.mu.RUnlock()
	for _, sig := range sigs {
		sig.Close()
	}
}

// SignalOf returns the signal registered under key if its signature is F, nil otherwise.
func SignalOf[F any](s *Signals, key string) *Signal {
	sig := s.Signal(key)
	if sig == nil || sig.Type() != reflect.TypeFor[F]() {
		return nil
	}
	return sig
}

// AddSignal creates a signal of signature F and registers it under key.
func AddSignal[F any](s *Signals, key string) *Signal {
	sig := NewSignal[F]()
	s.Set(key, sig)
	return sig
}

func (s *Signals) lookup(key string) (*Signal, error) {
	sig := s.Signal(key)
	if sig == nil {
		return nil, fmt.Errorf("signal not found: %s", key)
	}
	return sig, nil
}

// Emit emits the signal registered under key.
func (s *Signals) Emit(key string, args ...any) error {
	return s.EmitFrom(key, nil, args...)
}

// AsyncEmit asynchronously emits the signal registered under key.
func (s *Signals) AsyncEmit(key string, args ...any) error {
	return s.AsyncEmitFrom(key, nil, args...)
}

// EmitFrom emits the signal registered under key, skipping every slot owned by caller.
func (s *Signals) EmitFrom(key string, caller *Slots, args ...any) error {
	sig, err := s.lookup(key)
	if err != nil {
		return err
	}
	defer blockOwned(sig, caller)()
	return sig.Emit(args...)
}

// AsyncEmitFrom is the asynchronous EmitFrom.
func (s *Signals) AsyncEmitFrom(key string, caller *Slots, args ...any) error {
	sig, err := s.lookup(key)
	if err != nil {
		return err
	}
	defer blockOwned(sig, caller)()
	return sig.AsyncEmit(args...)
}

// blockOwned blocks the connections of sig leading to slots owned by caller and returns the
// release func.
func blockOwned(sig *Signal, caller *Slots) func() {
	if caller == nil {
		return func() {}
	}
	var blockers []*Blocker
	for _, c := range sig.snapshot() {
		if c.slot.Owner() == caller {
			blockers = append(blockers, c.Block())
		}
	}
	return func() {
		for _, b := range blockers {
			b.Reset()
		}
	}
}
