package data

import (
	"errors"
	"fmt"

	"github.com/aretw0/sight/pkg/registry"
)

// ErrUnknownType is returned when no constructor is registered for a classname.
var ErrUnknownType = errors.New("unknown object type")

// Constructor builds an empty object.
type Constructor func() Object

// ParserConstructor builds the parser used to fill objects of a classname.
type ParserConstructor func(f *Factory) Parser

// Factory builds objects and their parsers from classnames.
type Factory struct {
	objects *registry.Registry[Constructor]
	parsers *registry.Registry[ParserConstructor]
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{
		objects: registry.NewRegistry[Constructor](),
		parsers: registry.NewRegistry[ParserConstructor](),
	}
}

// DefaultFactory creates a factory knowing the stock object types.
func DefaultFactory() *Factory {
	f := NewFactory()
	f.Register(TypeString, func() Object { return NewString("") })
	f.Register(TypeInteger, func() Object { return NewInteger(0) })
	f.Register(TypeFloat, func() Object { return NewFloat(0) })
	f.Register(TypeBoolean, func() Object { return NewBoolean(false) })
	f.Register(TypeComposite, func() Object { return NewComposite() })
	f.RegisterParser(TypeComposite, func(f *Factory) Parser { return NewCompositeParser(f) })
	return f
}

// Register adds a constructor, replacing any previous one for classname.
func (f *Factory) Register(classname string, ctor Constructor) {
	f.objects.Register(classname, ctor)
}

// RegisterParser sets the parser used for objects of classname.
func (f *Factory) RegisterParser(classname string, ctor ParserConstructor) {
	f.parsers.Register(classname, ctor)
}

// New builds an object of classname.
func (f *Factory) New(classname string) (Object, error) {
	ctor, ok := f.objects.Get(classname)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, classname)
	}
	return ctor(), nil
}

// NewParser returns the parser registered for classname, a ValueParser otherwise.
func (f *Factory) NewParser(classname string) Parser {
	if ctor, ok := f.parsers.Get(classname); ok {
		return ctor(f)
	}
	return NewValueParser()
}

// Types returns the known classnames in sorted order.
func (f *Factory) Types() []string {
	return f.objects.Keys()
}
