package services

import (
	"fmt"

	"github.com/aretw0/sight/pkg/data"
	"github.com/aretw0/sight/pkg/service"
)

// Copier publishes a deep copy of "source" on its "target" output.
type Copier struct {
	*service.Base
	types *data.Factory
}

// NewCopier creates a copier; a nil types uses the stock data factory.
func NewCopier(types *data.Factory) *Copier {
	if types == nil {
		types = data.DefaultFactory()
	}
	c := &Copier{types: types}
	c.Base = service.NewBase(TypeCopier, service.Implementation{
		Updating: c.updating,
	})
	return c
}

func (c *Copier) updating() error {
	src := c.Object("source", 0)
	if src == nil {
		return fmt.Errorf("%w: source of %s", ErrMissingInput, c.ID())
	}
	dst, err := c.types.New(src.Classname())
	if err != nil {
		return err
	}
	copier, ok := dst.(data.Copier)
	if !ok {
		return fmt.Errorf("%s cannot be copied", src.Classname())
	}
	if err := copier.CopyFrom(src); err != nil {
		return err
	}
	dst.SetID(src.ID() + "-copy")
	c.SetOutput("target", 0, dst)
	return nil
}
