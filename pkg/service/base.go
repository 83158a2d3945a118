package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/sight/internal/logging"
	"github.com/aretw0/sight/pkg/com"
	"github.com/aretw0/sight/pkg/data"
	"github.com/aretw0/sight/pkg/worker"
)

var validate = validator.New()

// Implementation holds the service-specific callbacks of a Base. Nil callbacks are no-ops.
type Implementation struct {
	Configuring func() error
	Starting    func() error
	Stopping    func() error
	Updating    func() error
	// Swapping is called on a running service when the object under key changed.
	Swapping func(key string) error
	// AutoConnections overrides the default "modified" -> "update" wiring.
	AutoConnections func() []AutoConnection
}

// Binding describes an object bound to a service key.
type Binding struct {
	Key         string      `json:"key"`
	Index       int         `json:"index"`
	Access      Access      `json:"-"`
	AccessName  string      `json:"access"`
	DeferredID  string      `json:"deferred_id,omitempty"`
	Optional    bool        `json:"optional"`
	AutoConnect bool        `json:"auto_connect"`
	Object      data.Object `json:"-"`
	ObjectID    string      `json:"object_id,omitempty"`
}

type bindingKey struct {
	key   string
	index int
}

type binding struct {
	obj         data.Object
	access      Access
	autoConnect bool
	optional    bool
	deferredID  string
}

// Base implements Service. Concrete services embed it and pass their callbacks through
// Implementation.
type Base struct {
	typ     string
	impl    Implementation
	signals *com.Signals
	slots   *com.Slots

	mu       sync.RWMutex
	id       string
	config   map[string]any
	w        *worker.Worker
	started  bool
	logger   *slog.Logger
	registry *Registry

	bindMu   sync.RWMutex
	bindings map[bindingKey]*binding
	order    []bindingKey

	autoMu    sync.Mutex
	autoConns []*com.Connection
}

// NewBase creates the common part of a service of the given type.
func NewBase(typ string, impl Implementation) *Base {
	b := &Base{
		typ:      typ,
		impl:     impl,
		signals:  com.NewSignals(),
		slots:    com.NewSlots(),
		logger:   logging.NewNop(),
		bindings: make(map[bindingKey]*binding),
	}

	com.AddSignal[func()](b.signals, SignalStarted)
	com.AddSignal[func()](b.signals, SignalUpdated)
	com.AddSignal[func()](b.signals, SignalStopped)
	com.AddSignal[func(string)](b.signals, SignalSwapped)

	// slots are invoked on the worker already, they run the lifecycle inline
	b.slots.New(SlotStart, b.start)
	b.slots.New(SlotStop, b.stop)
	b.slots.New(SlotUpdate, b.update)
	b.slots.New(SlotSwapKey, b.swapKey)
	return b
}

func (b *Base) Signals() *com.Signals { return b.signals }

func (b *Base) Slots() *com.Slots { return b.slots }

func (b *Base) Type() string { return b.typ }

func (b *Base) ID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.id
}

func (b *Base) SetID(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.id = id
}

// SetLogger sets the logger returned by Logger.
func (b *Base) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
}

// Logger returns the service logger, tagged with its uid.
func (b *Base) Logger() *slog.Logger {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.logger.With("service", b.id)
}

func (b *Base) attachRegistry(r *Registry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registry = r
}

func (b *Base) SetConfig(cfg map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.config = cfg
}

func (b *Base) Config() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config
}

// DecodeConfig decodes the configuration subtree into target and validates its `validate`
// struct tags.
func (b *Base) DecodeConfig(target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(b.Config()); err != nil {
		return fmt.Errorf("decode config of %s: %w", b.ID(), err)
	}
	if err := validate.Struct(target); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// Configure runs the Configuring callback on the calling goroutine.
func (b *Base) Configure() error {
	if b.impl.Configuring == nil {
		return nil
	}
	if err := b.impl.Configuring(); err != nil {
		return fmt.Errorf("configure %s: %w", b.ID(), err)
	}
	return nil
}

func (b *Base) SetWorker(w *worker.Worker) {
	b.mu.Lock()
	b.w = w
	b.mu.Unlock()
	b.slots.SetWorker(w)
}

func (b *Base) Worker() *worker.Worker {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.w
}

func (b *Base) Started() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.started
}

func (b *Base) Stopped() bool { return !b.Started() }

// dispatch runs fn on the service worker, or inline when there is none.
func (b *Base) dispatch(fn func() error) *worker.Future[struct{}] {
	w := b.Worker()
	if w == nil {
		return worker.Resolved(struct{}{}, fn())
	}
	return worker.Run(w, fn)
}

func (b *Base) Start() *worker.Future[struct{}] { return b.dispatch(b.start) }

func (b *Base) Stop() *worker.Future[struct{}] { return b.dispatch(b.stop) }

func (b *Base) Update() *worker.Future[struct{}] { return b.dispatch(b.update) }

func (b *Base) SwapKey(key string, old data.Object) *worker.Future[struct{}] {
	return b.dispatch(func() error { return b.swapKey(key, old) })
}

func (b *Base) start() error {
	if b.Started() {
		return fmt.Errorf("%w: %s is already started", ErrInvalidState, b.ID())
	}
	if b.impl.Starting != nil {
		if err := b.impl.Starting(); err != nil {
			return fmt.Errorf("start %s: %w", b.ID(), err)
		}
	}
	b.mu.Lock()
	b.started = true
	b.mu.Unlock()

	if err := b.AutoConnect(); err != nil {
		b.Logger().Error("auto-connection failed", "err", err)
	}
	b.notify(SignalStarted)
	return nil
}

func (b *Base) stop() error {
	if !b.Started() {
		return fmt.Errorf("%w: %s is not started", ErrInvalidState, b.ID())
	}
	b.AutoDisconnect()
	var err error
	if b.impl.Stopping != nil {
		if err = b.impl.Stopping(); err != nil {
			err = fmt.Errorf("stop %s: %w", b.ID(), err)
		}
	}
	// a failed stop still leaves the service stopped
	b.mu.Lock()
	b.started = false
	b.mu.Unlock()

	b.notify(SignalStopped)
	return err
}

func (b *Base) update() error {
	if !b.Started() {
		return fmt.Errorf("%w: cannot update %s, it is not started", ErrInvalidState, b.ID())
	}
	if b.impl.Updating != nil {
		if err := b.impl.Updating(); err != nil {
			return fmt.Errorf("update %s: %w", b.ID(), err)
		}
	}
	b.notify(SignalUpdated)
	return nil
}

func (b *Base) swapKey(key string, _ data.Object) error {
	if !b.Started() {
		return fmt.Errorf("%w: cannot swap %s, it is not started", ErrInvalidState, b.ID())
	}
	b.AutoDisconnect()
	var err error
	if b.impl.Swapping != nil {
		if err = b.impl.Swapping(key); err != nil {
			err = fmt.Errorf("swap %s of %s: %w", key, b.ID(), err)
		}
	}
	if cerr := b.AutoConnect(); cerr != nil {
		b.Logger().Error("auto-connection failed", "err", cerr)
	}
	b.notify(SignalSwapped, key)
	return err
}

// notify emits a lifecycle signal asynchronously; receivers without worker are skipped.
func (b *Base) notify(key string, args ...any) {
	if err := b.signals.AsyncEmit(key, args...); err != nil && !errors.Is(err, com.ErrNoWorker) {
		b.Logger().Error("lifecycle notification failed", "signal", key, "err", err)
	}
}

func (b *Base) SetObject(obj data.Object, key string, index int, access Access, autoConnect, optional bool) {
	b.ReplaceObject(obj, key, index, access, autoConnect, optional)
}

func (b *Base) ReplaceObject(obj data.Object, key string, index int, access Access, autoConnect, optional bool) data.Object {
	b.bindMu.Lock()
	defer b.bindMu.Unlock()
	bd := b.bindingLocked(key, index)
	old := bd.obj
	bd.obj = obj
	bd.access = access
	bd.autoConnect = autoConnect
	bd.optional = optional
	return old
}

func (b *Base) bindingLocked(key string, index int) *binding {
	k := bindingKey{key, index}
	bd, ok := b.bindings[k]
	if !ok {
		bd = &binding{}
		b.bindings[k] = bd
		b.order = append(b.order, k)
	}
	return bd
}

func (b *Base) ResetObject(key string, index int) {
	b.bindMu.Lock()
	defer b.bindMu.Unlock()
	if bd, ok := b.bindings[bindingKey{key, index}]; ok {
		bd.obj = nil
	}
}

func (b *Base) Object(key string, index int) data.Object {
	b.bindMu.RLock()
	defer b.bindMu.RUnlock()
	if bd, ok := b.bindings[bindingKey{key, index}]; ok {
		return bd.obj
	}
	return nil
}

func (b *Base) SetDeferredID(key string, index int, uid string) {
	b.bindMu.Lock()
	defer b.bindMu.Unlock()
	b.bindingLocked(key, index).deferredID = uid
}

func (b *Base) DeferredID(key string, index int) string {
	b.bindMu.RLock()
	defer b.bindMu.RUnlock()
	if bd, ok := b.bindings[bindingKey{key, index}]; ok {
		return bd.deferredID
	}
	return ""
}

func (b *Base) SetOutput(key string, index int, obj data.Object) {
	b.bindMu.Lock()
	bd := b.bindingLocked(key, index)
	old := bd.obj
	bd.obj = obj
	bd.access = Out
	id := bd.deferredID
	b.bindMu.Unlock()

	if old == obj {
		return
	}
	b.mu.RLock()
	reg := b.registry
	b.mu.RUnlock()
	if id == "" || reg == nil {
		b.Logger().Debug("output is not published", "key", key, "index", index)
		return
	}
	if old != nil {
		reg.NotifyRemoved(old, id)
	}
	if obj != nil {
		reg.NotifyAdded(obj, id)
	}
}

// Bindings lists the bindings in the order they were declared.
func (b *Base) Bindings() []Binding {
	b.bindMu.RLock()
	defer b.bindMu.RUnlock()
	out := make([]Binding, 0, len(b.order))
	for _, k := range b.order {
		bd := b.bindings[k]
		item := Binding{
			Key:         k.key,
			Index:       k.index,
			Access:      bd.access,
			AccessName:  bd.access.String(),
			DeferredID:  bd.deferredID,
			Optional:    bd.optional,
			AutoConnect: bd.autoConnect,
			Object:      bd.obj,
		}
		if bd.obj != nil {
			item.ObjectID = bd.obj.ID()
		}
		out = append(out, item)
	}
	return out
}

func (b *Base) AutoConnections() []AutoConnection {
	if b.impl.AutoConnections != nil {
		return b.impl.AutoConnections()
	}
	return []AutoConnection{{Signal: data.SignalModified, Slot: SlotUpdate}}
}

// AutoConnect connects the declared auto-connections of every bound object flagged
// auto_connect. Failing pairs are skipped and reported joined.
func (b *Base) AutoConnect() error {
	decl := b.AutoConnections()

	b.bindMu.RLock()
	type target struct {
		key string
		obj data.Object
	}
	var targets []target
	for _, k := range b.order {
		bd := b.bindings[k]
		if bd.obj != nil && bd.autoConnect {
			targets = append(targets, target{k.key, bd.obj})
		}
	}
	b.bindMu.RUnlock()

	b.autoMu.Lock()
	defer b.autoMu.Unlock()
	var errs []error
	for _, t := range targets {
		for _, ac := range decl {
			if ac.Key != "" && ac.Key != t.key {
				continue
			}
			sig := t.obj.Signals().Signal(ac.Signal)
			slot := b.slots.Slot(ac.Slot)
			if sig == nil || slot == nil {
				errs = append(errs, fmt.Errorf("auto-connect %s: signal %q or slot %q not found", t.key, ac.Signal, ac.Slot))
				continue
			}
			c, err := sig.Connect(slot)
			if errors.Is(err, com.ErrAlreadyConnected) {
				continue
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("auto-connect %s: %w", t.key, err))
				continue
			}
			b.autoConns = append(b.autoConns, c)
		}
	}
	return errors.Join(errs...)
}

func (b *Base) AutoDisconnect() {
	b.autoMu.Lock()
	conns := b.autoConns
	b.autoConns = nil
	b.autoMu.Unlock()
	for _, c := range conns {
		c.Disconnect()
	}
}

func (b *Base) Close() {
	b.AutoDisconnect()
	b.slots.Close()
	b.signals.Close()
}
