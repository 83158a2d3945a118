package services

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/aretw0/sight/pkg/data"
	"github.com/aretw0/sight/pkg/service"
)

// PrinterConfig is the "config" section of a printer.
type PrinterConfig struct {
	Prefix string `mapstructure:"prefix"`
}

// Printer writes the object bound to "source" on each update.
type Printer struct {
	*service.Base

	mu     sync.Mutex
	out    io.Writer
	prefix string
}

// NewPrinter creates a printer writing to out, or to stdout when out is nil.
func NewPrinter(out io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	p := &Printer{out: out}
	p.Base = service.NewBase(TypePrinter, service.Implementation{
		Configuring: p.configuring,
		Updating:    p.updating,
		Swapping: func(key string) error {
			p.Logger().Debug("input swapped", "key", key)
			return nil
		},
	})
	return p
}

func (p *Printer) configuring() error {
	var cfg PrinterConfig
	if err := p.DecodeConfig(&cfg); err != nil {
		return err
	}
	p.prefix = cfg.Prefix
	return nil
}

func (p *Printer) updating() error {
	obj := p.Object("source", 0)
	if obj == nil {
		return fmt.Errorf("%w: source of %s", ErrMissingInput, p.ID())
	}
	var v any = obj.Classname()
	if valuer, ok := obj.(data.Valuer); ok {
		v = valuer.Any()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.out, "%s%v\n", p.prefix, v)
	return err
}
