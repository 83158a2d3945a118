package services

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/sight/pkg/app"
	"github.com/aretw0/sight/pkg/appconfig"
	"github.com/aretw0/sight/pkg/com"
	"github.com/aretw0/sight/pkg/data"
	"github.com/aretw0/sight/pkg/service"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestCounter(t *testing.T) {
	c := NewCounter()
	c.SetID("counter")
	c.SetConfig(map[string]any{"step": 2})
	require.NoError(t, c.Configure())

	var counted []int64
	_, err := c.Signals().Signal(SignalCounted).Connect(com.NewSlot(func(n int64) { counted = append(counted, n) }))
	require.NoError(t, err)

	value := data.NewInteger(1)
	c.SetObject(value, "value", 0, service.InOut, true, false)
	require.NoError(t, c.Start().Wait())
	require.NoError(t, c.Update().Wait())
	require.NoError(t, c.Update().Wait())

	assert.Equal(t, int64(5), value.Value())
	assert.Equal(t, []int64{3, 5}, counted)
}

func TestCounter_MissingValue(t *testing.T) {
	c := NewCounter()
	require.NoError(t, c.Configure())
	require.NoError(t, c.Start().Wait())
	assert.ErrorIs(t, c.Update().Wait(), ErrMissingInput)
}

func TestPrinter(t *testing.T) {
	var out syncBuffer
	p := NewPrinter(&out)
	p.SetConfig(map[string]any{"prefix": "> "})
	require.NoError(t, p.Configure())
	require.NoError(t, p.Start().Wait())

	assert.ErrorIs(t, p.Update().Wait(), ErrMissingInput)

	p.SetObject(data.NewString("hello"), "source", 0, service.In, false, false)
	require.NoError(t, p.Update().Wait())
	p.SetObject(data.NewBase("test::opaque"), "source", 0, service.In, false, false)
	require.NoError(t, p.Update().Wait())

	assert.Equal(t, "> hello\n> test::opaque\n", out.String())
}

func TestProducer(t *testing.T) {
	p := NewProducer(nil)
	p.SetID("producer")
	p.SetConfig(map[string]any{"type": data.TypeInteger, "value": "5"})
	require.NoError(t, p.Configure())
	require.NoError(t, p.Start().Wait())

	require.NoError(t, p.Update().Wait())
	first, ok := p.Object("result", 0).(*data.Integer)
	require.True(t, ok)
	assert.Equal(t, int64(5), first.Value())
	assert.Equal(t, "producer-1", first.ID())

	require.NoError(t, p.Update().Wait())
	second := p.Object("result", 0)
	assert.NotSame(t, first, second)
	assert.Equal(t, "producer-2", second.ID())

	require.NoError(t, p.Stop().Wait())
	assert.Nil(t, p.Object("result", 0))
}

func TestProducer_BadConfig(t *testing.T) {
	p := NewProducer(nil)
	assert.Error(t, p.Configure(), "type is required")

	p.SetConfig(map[string]any{"type": "test::missing"})
	assert.ErrorIs(t, p.Configure(), data.ErrUnknownType)
}

func TestCopier(t *testing.T) {
	c := NewCopier(nil)
	require.NoError(t, c.Start().Wait())
	assert.ErrorIs(t, c.Update().Wait(), ErrMissingInput)

	src := data.NewFloat(1.5)
	src.SetID("f")
	c.SetObject(src, "source", 0, service.In, false, false)
	require.NoError(t, c.Update().Wait())

	dst, ok := c.Object("target", 0).(*data.Float)
	require.True(t, ok)
	assert.NotSame(t, src, dst)
	assert.Equal(t, 1.5, dst.Value())
	assert.Equal(t, "f-copy", dst.ID())

	types := data.NewFactory()
	types.Register("test::opaque", func() data.Object { return data.NewBase("test::opaque") })
	opaque := NewCopier(types)
	require.NoError(t, opaque.Start().Wait())
	opaque.SetObject(data.NewBase("test::opaque"), "source", 0, service.In, false, false)
	assert.Error(t, opaque.Update().Wait())
}

func TestRegister(t *testing.T) {
	f := service.NewFactory()
	Register(f)
	assert.Equal(t, []string{TypeCopier, TypeCounter, TypePrinter, TypeProducer}, f.Types())
}

func TestPipeline(t *testing.T) {
	var out syncBuffer
	types := service.NewFactory()
	Register(types)
	types.Register(TypePrinter, func() service.Service { return NewPrinter(&out) })

	actx := app.NewContext(app.WithServiceTypes(types))
	t.Cleanup(actx.Close)

	cfg, err := appconfig.Parse("pipeline", []byte(`
config:
  - object: {uid: mesh, type: "sight::data::string", src: deferred}
  - object: {uid: ticks, type: "sight::data::integer", value: 0}
  - service:
      uid: source
      type: sight::service::producer
      out:
        - {key: result, uid: mesh}
      config: {type: "sight::data::string", value: hello}
  - service:
      uid: printer
      type: sight::service::printer
      in:
        - {key: source, uid: mesh}
      config: {prefix: "> "}
  - service:
      uid: counter
      type: sight::service::counter
      inout:
        - {key: value, uid: ticks}
  - connect:
      signal: [ticks/modified]
      slot: [printer/update]
  - start: {uid: source}
  - start: {uid: printer}
  - start: {uid: counter}
  - update: {uid: source}
  - update: {uid: printer}
`), nil)
	require.NoError(t, err)

	m := app.NewManager(actx, cfg)
	m.Launch()
	defer m.StopAndDestroy()

	require.Eventually(t, func() bool { return out.String() == "> hello\n" }, time.Second, 5*time.Millisecond)

	// counting notifies ticks, routed to the printer
	require.NoError(t, m.Service("counter").Update().Wait())
	assert.Equal(t, int64(1), m.Object("ticks").(*data.Integer).Value())
	assert.Equal(t, "> hello\n> hello\n", out.String())
}
