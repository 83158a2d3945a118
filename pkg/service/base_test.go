package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/sight/pkg/com"
	"github.com/aretw0/sight/pkg/data"
	"github.com/aretw0/sight/pkg/worker"
)

type recorder struct {
	*Base
	mu    sync.Mutex
	calls []string
}

func (r *recorder) record(s string) func() error {
	return func() error {
		r.mu.Lock()
		r.calls = append(r.calls, s)
		r.mu.Unlock()
		return nil
	}
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func newRecorder(id string) *recorder {
	r := &recorder{}
	r.Base = NewBase("test::recorder", Implementation{
		Configuring: r.record("configuring"),
		Starting:    r.record("starting"),
		Stopping:    r.record("stopping"),
		Updating:    r.record("updating"),
		Swapping: func(key string) error {
			return r.record("swapping:" + key)()
		},
	})
	r.SetID(id)
	return r
}

func TestBase_LifecycleOnWorker(t *testing.T) {
	w := worker.New("srv")
	defer w.Stop()

	srv := newRecorder("srv")
	srv.SetWorker(w)
	assert.Same(t, w, srv.Worker())
	assert.Same(t, w, srv.Slots().Slot(SlotUpdate).Worker())

	require.NoError(t, srv.Configure())
	assert.True(t, srv.Stopped())

	require.NoError(t, srv.Start().Wait())
	assert.True(t, srv.Started())
	require.NoError(t, srv.Update().Wait())
	require.NoError(t, srv.Stop().Wait())
	assert.True(t, srv.Stopped())

	assert.Equal(t, []string{"configuring", "starting", "updating", "stopping"}, srv.Calls())
}

func TestBase_InvalidStates(t *testing.T) {
	srv := newRecorder("srv")

	assert.ErrorIs(t, srv.Update().Wait(), ErrInvalidState)
	assert.ErrorIs(t, srv.Stop().Wait(), ErrInvalidState)
	assert.ErrorIs(t, srv.SwapKey("k", nil).Wait(), ErrInvalidState)

	// without worker the request completes inline
	f := srv.Start()
	select {
	case <-f.Done():
	default:
		t.Fatal("inline start should be complete")
	}
	require.NoError(t, f.Wait())
	assert.ErrorIs(t, srv.Start().Wait(), ErrInvalidState)
}

func TestBase_CallbackErrors(t *testing.T) {
	boom := errors.New("boom")
	srv := NewBase("test::failing", Implementation{
		Configuring: func() error { return boom },
		Starting:    func() error { return boom },
	})
	srv.SetID("failing")

	assert.ErrorIs(t, srv.Configure(), boom)
	err := srv.Start().Wait()
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "start failing")
	assert.False(t, srv.Started())
}

func TestBase_LifecycleSignals(t *testing.T) {
	w := worker.New("observer")
	defer w.Stop()

	srv := newRecorder("srv")
	events := make(chan string, 4)
	for _, key := range []string{SignalStarted, SignalUpdated, SignalStopped} {
		slot := com.NewSlot(func() { events <- key })
		slot.SetWorker(w)
		_, err := srv.Signals().Signal(key).Connect(slot)
		require.NoError(t, err)
	}

	require.NoError(t, srv.Start().Wait())
	require.NoError(t, srv.Update().Wait())
	require.NoError(t, srv.Stop().Wait())

	for _, want := range []string{SignalStarted, SignalUpdated, SignalStopped} {
		select {
		case got := <-events:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatalf("missing %s notification", want)
		}
	}
}

func TestBase_SlotsDriveLifecycle(t *testing.T) {
	srv := newRecorder("srv")
	trigger := com.NewSignal[func()]()
	_, err := trigger.Connect(srv.Slots().Slot(SlotStart))
	require.NoError(t, err)

	require.NoError(t, trigger.Emit())
	assert.True(t, srv.Started())
	assert.ErrorIs(t, trigger.Emit(), ErrInvalidState)
}

func TestBase_Bindings(t *testing.T) {
	srv := newRecorder("srv")
	a := data.NewInteger(1)
	b := data.NewInteger(2)

	srv.SetDeferredID("target", 1, "deferred_b")
	srv.SetObject(a, "source", 0, In, true, false)
	srv.SetObject(b, "target", 1, InOut, false, true)

	assert.Same(t, a, srv.Object("source", 0))
	assert.Nil(t, srv.Object("source", 1))
	assert.Equal(t, "deferred_b", srv.DeferredID("target", 1))
	assert.Empty(t, srv.DeferredID("source", 0))

	old := srv.ReplaceObject(a, "target", 1, InOut, false, true)
	assert.Same(t, b, old)

	bs := srv.Bindings()
	require.Len(t, bs, 2)
	assert.Equal(t, "target", bs[0].Key)
	assert.Equal(t, "inout", bs[0].AccessName)
	assert.True(t, bs[0].Optional)
	assert.Equal(t, "source", bs[1].Key)
	assert.True(t, bs[1].AutoConnect)

	srv.ResetObject("source", 0)
	assert.Nil(t, srv.Object("source", 0))
}

func TestBase_DefaultAutoConnection(t *testing.T) {
	srv := newRecorder("srv")
	obj := data.NewInteger(0)
	other := data.NewInteger(0)
	srv.SetObject(obj, "source", 0, In, true, false)
	srv.SetObject(other, "quiet", 0, In, false, false)

	assert.Equal(t, []AutoConnection{{Signal: data.SignalModified, Slot: SlotUpdate}}, srv.AutoConnections())

	require.NoError(t, srv.Start().Wait())
	require.NoError(t, obj.NotifyModified())
	require.NoError(t, other.NotifyModified())
	assert.Equal(t, []string{"starting", "updating"}, srv.Calls())

	require.NoError(t, srv.Stop().Wait())
	require.NoError(t, obj.NotifyModified())
	assert.Equal(t, []string{"starting", "updating", "stopping"}, srv.Calls())
	assert.Zero(t, obj.Signals().Signal(data.SignalModified).NumConnections())
}

func TestBase_DeclaredAutoConnections(t *testing.T) {
	var hits int
	srv := NewBase("test::declared", Implementation{
		AutoConnections: func() []AutoConnection {
			return []AutoConnection{
				{Key: "source", Signal: data.SignalModified, Slot: "refresh"},
				{Key: "source", Signal: "missing", Slot: "refresh"},
			}
		},
	})
	srv.Slots().New("refresh", func() { hits++ })
	obj := data.NewString("")
	srv.SetObject(obj, "source", 0, In, true, false)

	err := srv.AutoConnect()
	assert.ErrorContains(t, err, `signal "missing"`)
	require.NoError(t, obj.NotifyModified())
	assert.Equal(t, 1, hits)

	// connecting again is a no-op
	_ = srv.AutoConnect()
	require.NoError(t, obj.NotifyModified())
	assert.Equal(t, 2, hits)

	srv.AutoDisconnect()
	require.NoError(t, obj.NotifyModified())
	assert.Equal(t, 2, hits)
}

func TestBase_SwapKeyReconnects(t *testing.T) {
	srv := newRecorder("srv")
	first := data.NewInteger(1)
	second := data.NewInteger(2)
	srv.SetObject(first, "source", 0, In, true, true)
	require.NoError(t, srv.Start().Wait())

	old := srv.ReplaceObject(second, "source", 0, In, true, true)
	require.NoError(t, srv.SwapKey("source", old).Wait())

	require.NoError(t, first.NotifyModified())
	require.NoError(t, second.NotifyModified())
	assert.Equal(t, []string{"starting", "swapping:source", "updating"}, srv.Calls())
}

func TestBase_SetOutputNotifiesRegistry(t *testing.T) {
	w := worker.New("observer")
	defer w.Stop()

	reg := NewRegistry()
	type event struct {
		kind string
		obj  data.Object
		id   string
	}
	events := make(chan event, 4)
	for _, key := range []string{SignalAdded, SignalRemoved} {
		slot := com.NewSlot(func(obj data.Object, id string) { events <- event{key, obj, id} })
		slot.SetWorker(w)
		_, err := reg.Signals().Signal(key).Connect(slot)
		require.NoError(t, err)
	}

	srv := newRecorder("producer")
	require.NoError(t, reg.Register(srv))
	srv.SetDeferredID("result", 0, "mesh")

	first := data.NewString("a")
	second := data.NewString("b")
	srv.SetOutput("result", 0, first)
	srv.SetOutput("result", 0, first) // unchanged, no notification
	srv.SetOutput("result", 0, second)
	srv.SetOutput("result", 0, nil)

	want := []event{
		{SignalAdded, first, "mesh"},
		{SignalRemoved, first, "mesh"},
		{SignalAdded, second, "mesh"},
		{SignalRemoved, second, "mesh"},
	}
	for _, e := range want {
		select {
		case got := <-events:
			assert.Equal(t, e.kind, got.kind)
			assert.Same(t, e.obj, got.obj)
			assert.Equal(t, e.id, got.id)
		case <-time.After(time.Second):
			t.Fatalf("missing %s notification", e.kind)
		}
	}
	assert.Equal(t, Out, srv.Bindings()[0].Access)
}

func TestBase_DecodeConfig(t *testing.T) {
	type cfg struct {
		Prefix string `mapstructure:"prefix" validate:"required"`
		Step   int    `mapstructure:"step" validate:"gte=1"`
	}
	srv := newRecorder("srv")

	srv.SetConfig(map[string]any{"prefix": ">", "step": "2"})
	var c cfg
	require.NoError(t, srv.DecodeConfig(&c))
	assert.Equal(t, cfg{Prefix: ">", Step: 2}, c)

	srv.SetConfig(map[string]any{"step": 0})
	assert.ErrorContains(t, srv.DecodeConfig(&cfg{}), "validation failed")
}

func TestBase_CloseDisconnectsEverything(t *testing.T) {
	srv := newRecorder("srv")
	trigger := com.NewSignal[func()]()
	_, err := trigger.Connect(srv.Slots().Slot(SlotUpdate))
	require.NoError(t, err)
	listener := com.NewSlot(func() {})
	_, err = srv.Signals().Signal(SignalStarted).Connect(listener)
	require.NoError(t, err)

	srv.Close()
	assert.Zero(t, trigger.NumConnections())
	assert.Zero(t, listener.NumConnections())
}
