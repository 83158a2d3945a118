package com

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/aretw0/sight/internal/invariant"
	"github.com/aretw0/sight/pkg/worker"
)

var errorType = reflect.TypeFor[error]()

// Slot is a callable endpoint wrapping a Go func.
// Its arity and parameter types are fixed by the wrapped func.
type Slot struct {
	fn     reflect.Value
	params []reflect.Type
	values []reflect.Type // results, trailing error excluded
	errOut bool

	owner  atomic.Pointer[Slots]
	closed atomic.Bool

	bindMu sync.Mutex
	w      *worker.Worker
	gen    uint64

	connMu sync.Mutex
	conns  map[*Connection]struct{}
}

// NewSlot wraps fn, which must be a non-variadic func.
// If fn's last result is an error, it is reported by Run, Call and the async variants.
func NewSlot(fn any) *Slot {
	v := reflect.ValueOf(fn)
	invariant.Assert(v.Kind() == reflect.Func && !v.IsNil(), "slot callable must be a non-nil func, got %T", fn)
	t := v.Type()
	invariant.Assert(!t.IsVariadic(), "slot callable must not be variadic: %s", t)

	s := &Slot{fn: v, conns: make(map[*Connection]struct{})}
	for i := 0; i < t.NumIn(); i++ {
		s.params = append(s.params, t.In(i))
	}
	for i := 0; i < t.NumOut(); i++ {
		s.values = append(s.values, t.Out(i))
	}
	if n := len(s.values); n > 0 && s.values[n-1] == errorType {
		s.errOut = true
		s.values = s.values[:n-1]
	}
	return s
}

// Type returns the wrapped func type.
func (s *Slot) Type() reflect.Type { return s.fn.Type() }

// Arity is the number of parameters of the wrapped func.
func (s *Slot) Arity() int { return len(s.params) }

// Owner returns the registry the slot was registered in, if any.
func (s *Slot) Owner() *Slots { return s.owner.Load() }

// Worker returns the bound worker or nil.
func (s *Slot) Worker() *worker.Worker {
	s.bindMu.Lock()
	defer s.bindMu.Unlock()
	return s.w
}

// SetWorker binds the slot to w. Asynchronous tasks scheduled on the previous worker and not
// yet started fail with ErrWorkerChanged.
func (s *Slot) SetWorker(w *worker.Worker) {
	s.bindMu.Lock()
	defer s.bindMu.Unlock()
	if s.w != w {
		s.w = w
		s.gen++
	}
}

func (s *Slot) binding() (*worker.Worker, uint64) {
	s.bindMu.Lock()
	defer s.bindMu.Unlock()
	return s.w, s.gen
}

// Close disconnects every connection of the slot and expires its pending asynchronous tasks,
// except those scheduled by AsyncEmit.
func (s *Slot) Close() {
	s.closed.Store(true)
	for _, c := range s.connections() {
		c.Disconnect()
	}
}

// Closed reports whether Close was called.
func (s *Slot) Closed() bool { return s.closed.Load() }

// NumConnections returns the number of signals the slot is connected to.
func (s *Slot) NumConnections() int {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return len(s.conns)
}

func (s *Slot) connections() []*Connection {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	out := make([]*Connection, 0, len(s.conns))
	for c := range s.conns {
		out = append(out, c)
	}
	return out
}

func (s *Slot) attach(c *Connection) {
	s.connMu.Lock()
	s.conns[c] = struct{}{}
	s.connMu.Unlock()
}

func (s *Slot) detach(c *Connection) {
	s.connMu.Lock()
	delete(s.conns, c)
	s.connMu.Unlock()
}

// attempts lists the argument counts tried for a call with n arguments, longest first.
func attempts(n int) []int {
	out := make([]int, 0, n+1)
	for i := n; i >= 0; i-- {
		out = append(out, i)
	}
	return out
}

// match returns the first argument prefix accepted by the slot.
func (s *Slot) match(args []any) ([]reflect.Value, bool) {
	for _, n := range attempts(len(args)) {
		if n != len(s.params) {
			continue
		}
		vals, ok := convertArgs(args[:n], s.params)
		if ok {
			return vals, true
		}
	}
	return nil, false
}

func convertArgs(args []any, types []reflect.Type) ([]reflect.Value, bool) {
	vals := make([]reflect.Value, len(args))
	for i, a := range args {
		v, ok := argValue(a, types[i])
		if !ok {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}

func argValue(arg any, to reflect.Type) (reflect.Value, bool) {
	if arg == nil {
		switch to.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(to), true
		}
		return reflect.Value{}, false
	}
	v := reflect.ValueOf(arg)
	if !v.Type().AssignableTo(to) {
		return reflect.Value{}, false
	}
	return v, true
}

// invoke calls the wrapped func with already matched arguments.
func (s *Slot) invoke(vals []reflect.Value) ([]reflect.Value, error) {
	out := s.fn.Call(vals)
	if s.errOut {
		last := out[len(out)-1]
		out = out[:len(out)-1]
		if !last.IsNil() {
			return out, last.Interface().(error)
		}
	}
	return out, nil
}

func (s *Slot) canReturn(rt reflect.Type) bool {
	return len(s.values) > 0 && s.values[0].AssignableTo(rt)
}

// Run executes the slot synchronously on the calling goroutine.
// Trailing arguments the slot does not accept are dropped; ErrBadRun is returned when no
// prefix of args matches.
func (s *Slot) Run(args ...any) error {
	vals, ok := s.match(args)
	if !ok {
		return s.badRun(args)
	}
	_, err := s.invoke(vals)
	return err
}

func (s *Slot) badRun(args []any) error {
	return fmt.Errorf("%w: %s with %d argument(s)", ErrBadRun, s.Type(), len(args))
}

func (s *Slot) badCall(args []any, rt reflect.Type) error {
	return fmt.Errorf("%w: %s with %d argument(s) returning %s", ErrBadCall, s.Type(), len(args), rt)
}

// Call executes the slot synchronously and returns its first result as R.
func Call[R any](s *Slot, args ...any) (R, error) {
	var zero R
	rt := reflect.TypeFor[R]()
	vals, ok := s.match(args)
	if !ok || !s.canReturn(rt) {
		return zero, s.badCall(args, rt)
	}
	out, err := s.invoke(vals)
	return resultAs[R](out), err
}

func resultAs[R any](out []reflect.Value) R {
	var r R
	reflect.ValueOf(&r).Elem().Set(out[0])
	return r
}

// AsyncRun schedules the slot on its worker.
// Argument matching happens first (ErrBadRun), then the worker check (ErrNoWorker); in both
// cases nothing is scheduled.
func (s *Slot) AsyncRun(args ...any) (*worker.Future[struct{}], error) {
	vals, ok := s.match(args)
	if !ok {
		return nil, s.badRun(args)
	}
	return s.asyncInvoke(vals, false)
}

func (s *Slot) asyncInvoke(vals []reflect.Value, keepAlive bool) (*worker.Future[struct{}], error) {
	return schedule(s, keepAlive, func() (struct{}, error) {
		_, err := s.invoke(vals)
		return struct{}{}, err
	})
}

// AsyncCall schedules the slot on its worker and returns a future of its first result.
func AsyncCall[R any](s *Slot, args ...any) (*worker.Future[R], error) {
	rt := reflect.TypeFor[R]()
	vals, ok := s.match(args)
	if !ok || !s.canReturn(rt) {
		return nil, s.badCall(args, rt)
	}
	return schedule(s, false, func() (R, error) {
		out, err := s.invoke(vals)
		return resultAs[R](out), err
	})
}

// schedule posts fn on the slot's current worker. At execution time the task fails with
// ErrWorkerChanged if the binding moved, and with ErrExpired if the slot was closed and the
// task was not scheduled keep-alive.
func schedule[T any](s *Slot, keepAlive bool, fn func() (T, error)) (*worker.Future[T], error) {
	w, gen := s.binding()
	if w == nil {
		return nil, ErrNoWorker
	}
	return worker.Schedule(w, func() (T, error) {
		var zero T
		if _, cur := s.binding(); cur != gen {
			return zero, ErrWorkerChanged
		}
		if !keepAlive && s.closed.Load() {
			return zero, ErrExpired
		}
		return fn()
	}), nil
}
