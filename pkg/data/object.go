package data

import (
	"sync"

	"github.com/aretw0/sight/pkg/com"
)

// SignalModified is emitted, without arguments, after an object changed.
const SignalModified = "modified"

// Object is a data object.
type Object interface {
	com.HasSignals
	ID() string
	SetID(id string)
	Classname() string
}

// Base implements the identity and signal part of Object.
type Base struct {
	classname string
	signals   *com.Signals

	mu sync.RWMutex
	id string
}

// NewBase creates the common part of an object of the given classname.
func NewBase(classname string) *Base {
	b := &Base{classname: classname, signals: com.NewSignals()}
	com.AddSignal[func()](b.signals, SignalModified)
	return b
}

func (b *Base) ID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.id
}

func (b *Base) SetID(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.id = id
}

func (b *Base) Classname() string { return b.classname }

func (b *Base) Signals() *com.Signals { return b.signals }

// NotifyModified emits the modified signal synchronously.
func (b *Base) NotifyModified() error {
	return b.signals.Emit(SignalModified)
}

// IsA reports whether obj is non-nil and of the given classname.
func IsA(obj Object, classname string) bool {
	return obj != nil && obj.Classname() == classname
}
