// Package services provides stock services usable from configurations.
//
//   - sight::service::counter adds a step to the integer bound to "value" on each update.
//   - sight::service::printer writes the value bound to "source" on each update.
//   - sight::service::producer publishes a fresh object on its "result" output on each update.
//   - sight::service::copier publishes a copy of "source" on its "target" output on each update.
//
// Register adds all of them to a service factory.
package services

import (
	"errors"

	"github.com/aretw0/sight/pkg/service"
)

// Type names.
const (
	TypeCounter  = "sight::service::counter"
	TypePrinter  = "sight::service::printer"
	TypeProducer = "sight::service::producer"
	TypeCopier   = "sight::service::copier"
)

// ErrMissingInput is returned by an update when a required object is not bound.
var ErrMissingInput = errors.New("missing input object")

// Register adds the stock services to f.
func Register(f *service.Factory) {
	f.Register(TypeCounter, func() service.Service { return NewCounter() })
	f.Register(TypePrinter, func() service.Service { return NewPrinter(nil) })
	f.Register(TypeProducer, func() service.Service { return NewProducer(nil) })
	f.Register(TypeCopier, func() service.Service { return NewCopier(nil) })
}
