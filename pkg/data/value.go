package data

import (
	"fmt"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// Stock classnames.
const (
	TypeString    = "sight::data::string"
	TypeInteger   = "sight::data::integer"
	TypeFloat     = "sight::data::float"
	TypeBoolean   = "sight::data::boolean"
	TypeComposite = "sight::data::composite"
)

// Valuer is implemented by objects holding a single plain value.
type Valuer interface {
	Object
	// Any returns the held value.
	Any() any
	// Decode replaces the held value with raw, converting loosely typed input.
	Decode(raw any) error
}

// Copier is implemented by objects able to take the content of another object.
type Copier interface {
	CopyFrom(src Object) error
}

// Value is an object holding a single value of type T.
type Value[T any] struct {
	*Base

	mu sync.RWMutex
	v  T
}

type (
	String  = Value[string]
	Integer = Value[int64]
	Float   = Value[float64]
	Boolean = Value[bool]
)

// NewValue creates a value object of the given classname.
func NewValue[T any](classname string, v T) *Value[T] {
	return &Value[T]{Base: NewBase(classname), v: v}
}

func NewString(v string) *String { return NewValue(TypeString, v) }

func NewInteger(v int64) *Integer { return NewValue(TypeInteger, v) }

func NewFloat(v float64) *Float { return NewValue(TypeFloat, v) }

func NewBoolean(v bool) *Boolean { return NewValue(TypeBoolean, v) }

// Value returns the held value.
func (o *Value[T]) Value() T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.v
}

// SetValue replaces the held value. It does not emit modified.
func (o *Value[T]) SetValue(v T) {
	o.mu.Lock()
	o.v = v
	o.mu.Unlock()
}

func (o *Value[T]) Any() any { return o.Value() }

func (o *Value[T]) Decode(raw any) error {
	var v T
	if err := mapstructure.WeakDecode(raw, &v); err != nil {
		return fmt.Errorf("decode %s: %w", o.Classname(), err)
	}
	o.SetValue(v)
	return nil
}

func (o *Value[T]) CopyFrom(src Object) error {
	other, ok := src.(*Value[T])
	if !ok {
		return fmt.Errorf("cannot copy %s into %s", classOf(src), o.Classname())
	}
	o.SetValue(other.Value())
	return nil
}

func classOf(obj Object) string {
	if obj == nil {
		return "<nil>"
	}
	return obj.Classname()
}
