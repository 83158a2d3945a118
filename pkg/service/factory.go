package service

import (
	"fmt"

	"github.com/aretw0/sight/pkg/registry"
)

// Constructor builds an unconfigured service.
type Constructor func() Service

// Factory builds services from their type name.
type Factory struct {
	reg *registry.Registry[Constructor]
}

func NewFactory() *Factory {
	return &Factory{reg: registry.NewRegistry[Constructor]()}
}

// Register adds a constructor, replacing any previous one for typ.
func (f *Factory) Register(typ string, ctor Constructor) {
	f.reg.Register(typ, ctor)
}

// New builds a service of type typ.
func (f *Factory) New(typ string) (Service, error) {
	ctor, ok := f.reg.Get(typ)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typ)
	}
	return ctor(), nil
}

// Has reports whether typ is registered.
func (f *Factory) Has(typ string) bool { return f.reg.Has(typ) }

// Types returns the registered type names in sorted order.
func (f *Factory) Types() []string { return f.reg.Keys() }
