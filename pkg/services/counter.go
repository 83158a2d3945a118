package services

import (
	"fmt"

	"github.com/aretw0/sight/pkg/com"
	"github.com/aretw0/sight/pkg/data"
	"github.com/aretw0/sight/pkg/service"
)

// SignalCounted is emitted by the counter with the new value.
const SignalCounted = "counted"

// CounterConfig is the "config" section of a counter.
type CounterConfig struct {
	Step int64 `mapstructure:"step"`
}

// Counter increments the integer bound to "value".
type Counter struct {
	*service.Base
	step int64
}

func NewCounter() *Counter {
	c := &Counter{step: 1}
	c.Base = service.NewBase(TypeCounter, service.Implementation{
		Configuring: c.configuring,
		Updating:    c.updating,
		// the counter modifies its own input, auto-connecting it would loop
		AutoConnections: func() []service.AutoConnection { return nil },
	})
	com.AddSignal[func(int64)](c.Signals(), SignalCounted)
	return c
}

func (c *Counter) configuring() error {
	cfg := CounterConfig{Step: 1}
	if err := c.DecodeConfig(&cfg); err != nil {
		return err
	}
	c.step = cfg.Step
	return nil
}

func (c *Counter) updating() error {
	v, ok := c.Object("value", 0).(*data.Integer)
	if !ok {
		return fmt.Errorf("%w: value of %s", ErrMissingInput, c.ID())
	}
	n := v.Value() + c.step
	v.SetValue(n)
	if err := v.NotifyModified(); err != nil {
		c.Logger().Warn("modified notification failed", "err", err)
	}
	return c.Signals().Emit(SignalCounted, n)
}
