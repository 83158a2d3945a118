package services

import (
	"fmt"

	"github.com/aretw0/sight/pkg/data"
	"github.com/aretw0/sight/pkg/service"
)

// ProducerConfig is the "config" section of a producer.
type ProducerConfig struct {
	Type  string `mapstructure:"type" validate:"required"`
	Value any    `mapstructure:"value"`
}

// Producer publishes a new object on its "result" output on each update and withdraws it
// when stopped.
type Producer struct {
	*service.Base
	types *data.Factory
	cfg   ProducerConfig
	count int
}

// NewProducer creates a producer building its objects with types, or with the stock data
// factory when types is nil.
func NewProducer(types *data.Factory) *Producer {
	if types == nil {
		types = data.DefaultFactory()
	}
	p := &Producer{types: types}
	p.Base = service.NewBase(TypeProducer, service.Implementation{
		Configuring: p.configuring,
		Updating:    p.updating,
		Stopping: func() error {
			p.SetOutput("result", 0, nil)
			return nil
		},
	})
	return p
}

func (p *Producer) configuring() error {
	if err := p.DecodeConfig(&p.cfg); err != nil {
		return err
	}
	if _, err := p.types.New(p.cfg.Type); err != nil {
		return err
	}
	return nil
}

func (p *Producer) updating() error {
	obj, err := p.types.New(p.cfg.Type)
	if err != nil {
		return err
	}
	p.count++
	obj.SetID(fmt.Sprintf("%s-%d", p.ID(), p.count))
	if p.cfg.Value != nil {
		valuer, ok := obj.(data.Valuer)
		if !ok {
			return fmt.Errorf("%s cannot hold a value", p.cfg.Type)
		}
		if err := valuer.Decode(p.cfg.Value); err != nil {
			return err
		}
	}
	p.SetOutput("result", 0, obj)
	return nil
}
