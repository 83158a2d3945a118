package com

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/aretw0/sight/internal/invariant"
)

// Signal is a typed multicast emitter. Its signature is a func type; results are ignored.
type Signal struct {
	typ    reflect.Type
	params []reflect.Type

	mu     sync.RWMutex
	conns  []*Connection // emission order
	bySlot map[*Slot]*Connection
}

// NewSignal creates a signal whose signature is the func type F.
func NewSignal[F any]() *Signal {
	return newSignal(reflect.TypeFor[F]())
}

func newSignal(t reflect.Type) *Signal {
	invariant.Assert(t.Kind() == reflect.Func && !t.IsVariadic(), "signal signature must be a non-variadic func type, got %s", t)
	s := &Signal{typ: t, bySlot: make(map[*Slot]*Connection)}
	for i := 0; i < t.NumIn(); i++ {
		s.params = append(s.params, t.In(i))
	}
	return s
}

// Type returns the signature.
func (s *Signal) Type() reflect.Type { return s.typ }

// Arity is the number of emitted arguments.
func (s *Signal) Arity() int { return len(s.params) }

// Compatible reports whether slot can be connected: it must accept a prefix of the signal's
// parameters.
func (s *Signal) Compatible(slot *Slot) bool {
	if slot.Arity() > len(s.params) {
		return false
	}
	for i, p := range slot.params {
		if !s.params[i].AssignableTo(p) {
			return false
		}
	}
	return true
}

// Connect appends slot to the emission list.
func (s *Signal) Connect(slot *Slot) (*Connection, error) {
	if !s.Compatible(slot) {
		return nil, fmt.Errorf("%w: %s cannot receive %s", ErrBadSlot, slot.Type(), s.typ)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bySlot[slot]; ok {
		return nil, ErrAlreadyConnected
	}
	c := &Connection{sig: s, slot: slot, nargs: slot.Arity()}
	s.conns = append(s.conns, c)
	s.bySlot[slot] = c
	slot.attach(c)
	return c, nil
}

// Disconnect removes slot from the emission list.
func (s *Signal) Disconnect(slot *Slot) error {
	s.mu.Lock()
	c, ok := s.bySlot[slot]
	if ok {
		s.removeLocked(c)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s is not connected", ErrBadSlot, slot.Type())
	}
	slot.detach(c)
	return nil
}

// DisconnectAll removes every connection. It is idempotent.
func (s *Signal) DisconnectAll() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.bySlot = make(map[*Slot]*Connection)
	s.mu.Unlock()

	for _, c := range conns {
		c.expire()
		c.slot.detach(c)
	}
}

// Close models the destruction of the signal: every connection is removed.
func (s *Signal) Close() {
	s.DisconnectAll()
}

func (s *Signal) remove(c *Connection) {
	s.mu.Lock()
	found := s.bySlot[c.slot] == c
	if found {
		s.removeLocked(c)
	}
	s.mu.Unlock()
	if found {
		c.slot.detach(c)
	}
}

func (s *Signal) removeLocked(c *Connection) {
	delete(s.bySlot, c.slot)
	if i := slices.Index(s.conns, c); i >= 0 {
		s.conns = slices.Delete(s.conns, i, i+1)
	}
	c.expire()
}

// NumConnections returns the number of connected slots.
func (s *Signal) NumConnections() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Connection returns the connection to slot, or nil.
func (s *Signal) Connection(slot *Slot) *Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bySlot[slot]
}

func (s *Signal) snapshot() []*Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.conns)
}

func (s *Signal) values(args []any) ([]reflect.Value, error) {
	if len(args) != len(s.params) {
		return nil, fmt.Errorf("%w: %s with %d argument(s)", ErrBadEmit, s.typ, len(args))
	}
	vals, ok := convertArgs(args, s.params)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBadEmit, s.typ)
	}
	return vals, nil
}

// Emit runs every enabled slot synchronously, in connection order.
// The connection list is captured when Emit starts; a slot disconnected by an earlier slot of
// the same emit is skipped. Slot errors are joined.
func (s *Signal) Emit(args ...any) error {
	vals, err := s.values(args)
	if err != nil {
		return err
	}
	var errs []error
	for _, c := range s.snapshot() {
		if !c.Enabled() {
			continue
		}
		if _, err := c.slot.invoke(vals[:c.nargs]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AsyncEmit schedules every enabled slot on its own worker, in connection order.
// Scheduled tasks keep running even if their slot is closed meanwhile. Slots without worker
// are skipped and reported with ErrNoWorker.
func (s *Signal) AsyncEmit(args ...any) error {
	vals, err := s.values(args)
	if err != nil {
		return err
	}
	var errs []error
	for _, c := range s.snapshot() {
		if !c.Enabled() {
			continue
		}
		if _, err := c.slot.asyncInvoke(vals[:c.nargs], true); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.slot.Type(), err))
		}
	}
	return errors.Join(errs...)
}
