package app

import (
	"context"
	"runtime"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/sight/internal/invariant"
	"github.com/aretw0/sight/pkg/adapters/memory"
	"github.com/aretw0/sight/pkg/appconfig"
	"github.com/aretw0/sight/pkg/com"
	"github.com/aretw0/sight/pkg/data"
	"github.com/aretw0/sight/pkg/service"
)

const probeType = "test::probe"

// probe records its lifecycle callbacks.
type probe struct {
	*service.Base
	mu    sync.Mutex
	calls []string
}

func newProbe() service.Service {
	p := &probe{}
	record := func(s string) func() error {
		return func() error {
			p.mu.Lock()
			p.calls = append(p.calls, s)
			p.mu.Unlock()
			return nil
		}
	}
	p.Base = service.NewBase(probeType, service.Implementation{
		Configuring: record("configuring"),
		Starting:    record("starting"),
		Stopping:    record("stopping"),
		Updating:    record("updating"),
		Swapping: func(key string) error {
			return record("swapping:" + key)()
		},
	})
	return p
}

func (p *probe) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}

func (p *probe) count(call string) int {
	n := 0
	for _, c := range p.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func newTestContext(t *testing.T, opts ...ContextOption) *Context {
	t.Helper()
	types := service.NewFactory()
	types.Register(probeType, newProbe)
	actx := NewContext(append([]ContextOption{WithServiceTypes(types)}, opts...)...)
	t.Cleanup(actx.Close)
	return actx
}

func parseConfig(t *testing.T, id, doc string) *appconfig.Config {
	t.Helper()
	cfg, err := appconfig.Parse(id, []byte(doc), nil)
	require.NoError(t, err)
	return cfg
}

func probeOf(t *testing.T, m *Manager, uid string) *probe {
	t.Helper()
	srv := m.Service(uid)
	require.NotNil(t, srv, "service %s not created", uid)
	return srv.(*probe)
}

func comHooks(mu *sync.Mutex, created, erased *[]string) com.ProxyHooks {
	return com.ProxyHooks{
		OnChannelCreated: func(name string) {
			mu.Lock()
			defer mu.Unlock()
			*created = append(*created, name)
		},
		OnChannelErased: func(name string) {
			mu.Lock()
			defer mu.Unlock()
			*erased = append(*erased, name)
		},
	}
}

func requireViolation(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		_, ok := r.(*invariant.Violation)
		assert.True(t, ok, "unexpected panic value %v", r)
	}()
	fn()
}

const simpleConfig = `
config:
  - object: {uid: image, type: "sight::data::integer", value: 3}
  - service:
      uid: reader
      type: test::probe
      in:
        - {key: image, uid: image, auto_connect: true}
  - start: {uid: reader}
  - update: {uid: reader}
`

func TestManager_LaunchAndStopAndDestroy(t *testing.T) {
	actx := newTestContext(t)
	m := NewManager(actx, parseConfig(t, "simple", simpleConfig), WithID("simple"))
	assert.Equal(t, StateDestroyed, m.State())

	m.Launch()
	assert.Equal(t, StateStarted, m.State())

	reader := probeOf(t, m, "reader")
	assert.Equal(t, []string{"configuring", "starting", "updating"}, reader.Calls())
	assert.True(t, actx.Services.Has("reader"))
	assert.True(t, actx.Objects.Has("image"))
	assert.Equal(t, []string{"image"}, m.Objects())

	image := m.Object("image").(*data.Integer)
	assert.Equal(t, int64(3), image.Value())
	assert.Same(t, image, reader.Object("image", 0))

	// auto_connect wires modified to update once started
	require.NoError(t, image.NotifyModified())
	assert.Eventually(t, func() bool { return reader.count("updating") == 2 }, time.Second, 5*time.Millisecond)

	m.StopAndDestroy()
	assert.Equal(t, StateDestroyed, m.State())
	assert.Equal(t, 1, reader.count("stopping"))
	assert.False(t, actx.Services.Has("reader"))
	assert.False(t, actx.Objects.Has("image"))
	assert.Empty(t, m.Services())

	// a destroyed configuration can be launched again
	m.Launch()
	assert.NotSame(t, reader, probeOf(t, m, "reader"))
	m.StopAndDestroy()
}

func TestManager_InvalidTransitions(t *testing.T) {
	actx := newTestContext(t)
	m := NewManager(actx, parseConfig(t, "simple", simpleConfig))

	requireViolation(t, m.Start)
	requireViolation(t, m.Update)
	requireViolation(t, m.Stop)
	requireViolation(t, m.Destroy)

	m.Create()
	assert.Equal(t, StateCreated, m.State())
	requireViolation(t, m.Create)
	requireViolation(t, m.Update)
	requireViolation(t, m.Stop)

	m.Start()
	requireViolation(t, m.Start)
	requireViolation(t, m.Destroy)

	m.Stop()
	assert.Equal(t, StateStopped, m.State())
	requireViolation(t, m.Stop)

	m.Start()
	m.Stop()
	m.Destroy()
	requireViolation(t, m.Destroy)
}

func TestManager_UnknownServiceType(t *testing.T) {
	actx := newTestContext(t)
	m := NewManager(actx, parseConfig(t, "unknown", `
config:
  - object: {uid: num, type: "sight::data::integer"}
  - service: {uid: fine, type: test::probe}
  - service: {uid: ghost, type: "test::missing"}
  - connect:
      signal: [num/modified]
      slot: [fine/update]
`))
	requireViolation(t, m.Create)

	assert.Equal(t, StateDestroyed, m.State())
	assert.Empty(t, actx.Services.IDs())
	assert.Zero(t, actx.Objects.Len())
	assert.Empty(t, actx.Proxy.Channels())
}

func TestManager_FailedCreateStopsWorker(t *testing.T) {
	actx := newTestContext(t)
	cfg := parseConfig(t, "unknown", `
config:
  - service: {uid: fine, type: test::probe}
  - service: {uid: ghost, type: "test::missing"}
`)
	// the first attempt creates the default worker of the context
	requireViolation(t, NewManager(actx, cfg).Create)
	before := runtime.NumGoroutine()

	for range 20 {
		m := NewManager(actx, cfg)
		requireViolation(t, m.Create)
		assert.Equal(t, StateDestroyed, m.State())
		assert.Nil(t, m.w)
		assert.Nil(t, m.abandoned)
	}
	assert.Eventually(t, func() bool { return runtime.NumGoroutine() <= before }, time.Second, 5*time.Millisecond)
}

const deferredConfig = `
config:
  - object: {uid: mesh, type: "sight::data::string", src: deferred}
  - service:
      uid: producer
      type: test::probe
      out:
        - {key: result, uid: mesh}
  - service:
      uid: consumer
      type: test::probe
      in:
        - {key: mesh, uid: mesh}
  - start: {uid: producer}
  - start: {uid: consumer}
  - update: {uid: consumer}
`

func TestManager_DeferredServiceLifecycle(t *testing.T) {
	actx := newTestContext(t)
	m := NewManager(actx, parseConfig(t, "deferred", deferredConfig))
	m.Launch()
	defer m.StopAndDestroy()

	producer := probeOf(t, m, "producer")
	assert.True(t, producer.Started())
	assert.Nil(t, m.Service("consumer"))
	assert.Equal(t, map[string]bool{"mesh": false}, m.DeferredObjects())

	mesh := data.NewString("payload")
	producer.SetOutput("result", 0, mesh)
	require.Eventually(t, func() bool { return m.Service("consumer") != nil }, time.Second, 5*time.Millisecond)

	consumer := probeOf(t, m, "consumer")
	assert.True(t, consumer.Started())
	assert.Equal(t, []string{"configuring", "starting", "updating"}, consumer.Calls())
	assert.Same(t, mesh, consumer.Object("mesh", 0))
	assert.Same(t, mesh, m.Object("mesh"))
	assert.Equal(t, map[string]bool{"mesh": true}, m.DeferredObjects())
	assert.False(t, actx.Objects.Has("mesh"), "deferred objects stay out of the global registry")

	producer.SetOutput("result", 0, nil)
	require.Eventually(t, func() bool { return m.Service("consumer") == nil }, time.Second, 5*time.Millisecond)
	assert.False(t, actx.Services.Has("consumer"))
	assert.Equal(t, 1, consumer.count("stopping"))
	assert.Equal(t, map[string]bool{"mesh": false}, m.DeferredObjects())

	// the object comes back, so does the service
	producer.SetOutput("result", 0, data.NewString("again"))
	require.Eventually(t, func() bool { return m.Service("consumer") != nil }, time.Second, 5*time.Millisecond)
	assert.NotSame(t, consumer, m.Service("consumer"))
	assert.True(t, m.Service("consumer").Started())
}

func TestManager_OptionalObjectSwap(t *testing.T) {
	actx := newTestContext(t)
	m := NewManager(actx, parseConfig(t, "optional", `
config:
  - object: {uid: mesh, type: "sight::data::string", src: deferred}
  - object: {uid: tick, type: "sight::data::boolean"}
  - service:
      uid: producer
      type: test::probe
      out:
        - {key: result, uid: mesh}
  - service:
      uid: consumer
      type: test::probe
      in:
        - {key: mesh, uid: mesh, optional: true}
  - connect:
      channel: ticks
      signal: [tick/modified]
      slot: [consumer/update]
  - start: {uid: producer}
  - start: {uid: consumer}
`))
	m.Launch()
	defer m.StopAndDestroy()

	consumer := probeOf(t, m, "consumer")
	assert.True(t, consumer.Started())
	assert.Nil(t, consumer.Object("mesh", 0))
	assert.True(t, actx.Proxy.HasChannel("ticks"))

	producer := probeOf(t, m, "producer")
	mesh := data.NewString("payload")
	producer.SetOutput("result", 0, mesh)
	require.Eventually(t, func() bool { return consumer.Object("mesh", 0) == mesh }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return consumer.count("swapping:mesh") == 1 }, time.Second, 5*time.Millisecond)

	producer.SetOutput("result", 0, nil)
	require.Eventually(t, func() bool { return consumer.count("swapping:mesh") == 2 }, time.Second, 5*time.Millisecond)
	assert.Nil(t, consumer.Object("mesh", 0))
	assert.Same(t, consumer, m.Service("consumer"))
	assert.True(t, consumer.Started())

	// the channel survives the removal
	require.NoError(t, m.Object("tick").(*data.Boolean).NotifyModified())
	assert.Equal(t, 1, consumer.count("updating"))
}

func TestManager_ChannelLifecycle(t *testing.T) {
	var mu sync.Mutex
	var created, erased []string
	actx := newTestContext(t, WithProxyHooks(comHooks(&mu, &created, &erased)))
	m := NewManager(actx, parseConfig(t, "channels", `
config:
  - object: {uid: tick, type: "sight::data::boolean"}
  - service: {uid: late, type: test::probe}
  - connect:
      signal: [tick/modified]
      slot: [late/start]
`), WithID("chan"))
	m.Launch()

	assert.True(t, actx.Proxy.HasChannel("Proxy_chan_1"))
	late := probeOf(t, m, "late")
	assert.False(t, late.Started())
	assert.Empty(t, m.StartedServices())

	// started through the channel, tracked by the manager
	require.NoError(t, m.Object("tick").(*data.Boolean).NotifyModified())
	assert.True(t, late.Started())
	require.Eventually(t, func() bool { return len(m.StartedServices()) == 1 }, time.Second, 5*time.Millisecond)

	m.StopAndDestroy()
	assert.False(t, late.Started())
	assert.False(t, actx.Proxy.HasChannel("Proxy_chan_1"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Proxy_chan_1"}, created)
	assert.Equal(t, []string{"Proxy_chan_1"}, erased)
}

func TestManager_ChannelRejectsIncompatibleSlot(t *testing.T) {
	actx := newTestContext(t)
	m := NewManager(actx, parseConfig(t, "mismatch", `
config:
  - object: {uid: tick, type: "sight::data::boolean"}
  - service: {uid: swapper, type: test::probe}
  - connect:
      channel: ticks
      signal: [tick/modified]
      slot: [swapper/swap_key]
  - start: {uid: swapper}
`))
	m.Launch()

	assert.Equal(t, []com.ChannelInfo{{Name: "ticks", Signals: 1, Slots: 0}}, actx.Proxy.Channels())
	require.NoError(t, m.Object("tick").(*data.Boolean).NotifyModified())
	assert.Zero(t, probeOf(t, m, "swapper").Slots().Slot(service.SlotSwapKey).NumConnections())

	assert.NotPanics(t, m.StopAndDestroy)
	assert.Empty(t, actx.Proxy.Channels())
}

func TestManager_Preferences(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "prefs/threshold", 0.9))

	actx := newTestContext(t, WithPreferences(store))
	m := NewManager(actx, parseConfig(t, "prefs", `
config:
  - object: {uid: threshold, type: "sight::data::float", src: preference, value: 0.5}
  - object: {uid: plain, type: "sight::data::float", value: 0.5}
`))
	m.Create()

	threshold := m.Object("threshold").(*data.Float)
	assert.Equal(t, 0.9, threshold.Value())
	threshold.SetValue(0.7)
	m.Object("plain").(*data.Float).SetValue(0.1)
	m.Destroy()

	saved, err := store.Load(ctx, "prefs/threshold")
	require.NoError(t, err)
	assert.EqualValues(t, 0.7, saved)
	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"prefs/threshold"}, keys)
}

func TestManager_AddExistingDeferredObject(t *testing.T) {
	actx := newTestContext(t)
	m := NewManager(actx, parseConfig(t, "deferred", deferredConfig))
	mesh := data.NewString("early")
	m.AddExistingDeferredObject(mesh, "mesh")
	m.Launch()
	defer m.StopAndDestroy()

	consumer := probeOf(t, m, "consumer")
	assert.True(t, consumer.Started())
	assert.Same(t, mesh, consumer.Object("mesh", 0))

	requireViolation(t, func() { m.AddExistingDeferredObject(mesh, "mesh") })
}

func TestManager_AddExistingDeferredObject_Undeclared(t *testing.T) {
	actx := newTestContext(t)
	m := NewManager(actx, parseConfig(t, "simple", simpleConfig))
	m.AddExistingDeferredObject(data.NewString("x"), "ghost")
	requireViolation(t, m.Create)
}

func TestManager_Hooks(t *testing.T) {
	var mu sync.Mutex
	var events []string
	record := func(e *ServiceEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, string(e.Type)+":"+e.ServiceID)
	}
	recordObject := func(e *ObjectEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, string(e.Type)+":"+e.ObjectID)
	}

	actx := newTestContext(t)
	m := NewManager(actx, parseConfig(t, "deferred", deferredConfig), WithHooks(Hooks{
		OnServiceCreated:   record,
		OnServiceStarted:   record,
		OnServiceStopped:   record,
		OnServiceDestroyed: record,
		OnObjectBound:      recordObject,
		OnObjectUnbound:    recordObject,
	}))
	m.Launch()
	producer := probeOf(t, m, "producer")
	producer.SetOutput("result", 0, data.NewString("payload"))
	require.Eventually(t, func() bool { return m.Service("consumer") != nil }, time.Second, 5*time.Millisecond)
	m.StopAndDestroy()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"service_created:producer",
		"service_started:producer",
		"object_bound:mesh",
		"service_created:consumer",
		"service_started:consumer",
		"service_stopped:consumer",
		"service_stopped:producer",
		"service_destroyed:consumer",
		"service_destroyed:producer",
	}, events)
}

func TestManager_ReferencedObject(t *testing.T) {
	actx := newTestContext(t)
	shared := data.NewInteger(42)
	shared.SetID("shared")
	require.NoError(t, actx.Objects.Add("shared", shared))

	m := NewManager(actx, parseConfig(t, "ref", `
config:
  - object: {uid: shared, type: "sight::data::integer", src: ref}
  - service:
      uid: reader
      type: test::probe
      in:
        - {key: value, uid: shared}
`))
	m.Create()
	assert.Same(t, shared, probeOf(t, m, "reader").Object("value", 0))
	m.Destroy()
	assert.True(t, actx.Objects.Has("shared"), "referenced objects are not owned")

	bad := NewManager(actx, parseConfig(t, "bad", `
config:
  - object: {uid: shared, type: "sight::data::string", src: ref}
`))
	requireViolation(t, bad.Create)
}
