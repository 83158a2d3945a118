package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/aretw0/sight/internal/invariant"
	"github.com/aretw0/sight/pkg/appconfig"
	"github.com/aretw0/sight/pkg/com"
	"github.com/aretw0/sight/pkg/data"
	"github.com/aretw0/sight/pkg/ports"
	"github.com/aretw0/sight/pkg/service"
	"github.com/aretw0/sight/pkg/worker"
)

// Manager slot keys, connected to the service registry output signals.
const (
	SlotAddObjects    = "add_objects"
	SlotRemoveObjects = "remove_objects"
)

type createdObject struct {
	obj        data.Object
	parser     data.Parser
	owned      bool // registered in Context.Objects by this manager
	preference bool
}

type deferredObject struct {
	obj      data.Object
	services []*serviceDecl
	proxies  proxyConns
}

func (d *deferredObject) addWaiting(decl *serviceDecl) {
	if !slices.Contains(d.services, decl) {
		d.services = append(d.services, decl)
	}
}

type serviceDecl struct {
	uid string
	cfg *appconfig.Service
}

// Manager runs one configuration. Lifecycle methods panic with *invariant.Violation when
// called in the wrong state or on a malformed configuration.
type Manager struct {
	ctx    *Context
	cfg    *appconfig.Config
	id     string
	logger *slog.Logger
	hooks  Hooks
	slots  *com.Slots

	mu             sync.Mutex
	state          State
	w              *worker.Worker
	abandoned      *worker.Worker
	registryConns  []*com.Connection
	objects        map[string]*createdObject
	objectOrder    []string
	deferred       map[string]*deferredObject
	deferredOrder  []string
	declared       map[string]*serviceDecl
	deferredSrv    map[string]bool
	created        map[string]service.Service
	createdSrv     []service.Service
	startedSrv     []service.Service
	createdWorkers []string
	deferredStart  []string
	deferredUpdate []string
	objProxies     map[string]*proxyConns
	srvProxies     map[string]*proxyConns
	lifecycleConns map[string][]*com.Connection
	channelCount   int
}

// Option configures a Manager.
type Option func(*Manager)

// WithID sets the manager id, used to name generated channels.
func WithID(id string) Option {
	return func(m *Manager) {
		if id != "" {
			m.id = id
		}
	}
}

// WithLogger sets the manager logger. Services embedding service.Base inherit it.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithHooks registers lifecycle hooks.
func WithHooks(hooks Hooks) Option {
	return func(m *Manager) {
		m.hooks = hooks
	}
}

// NewManager creates a manager for cfg in state destroyed.
func NewManager(actx *Context, cfg *appconfig.Config, opts ...Option) *Manager {
	m := &Manager{
		ctx:    actx,
		cfg:    cfg,
		id:     cfg.ID + "-" + uuid.NewString()[:8],
		logger: actx.Logger,
		slots:  com.NewSlots(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("config", cfg.ID)
	m.slots.New(SlotAddObjects, m.AddObjects)
	m.slots.New(SlotRemoveObjects, m.RemoveObjects)
	m.reset()
	return m
}

func (m *Manager) reset() {
	m.registryConns = nil
	m.objects = make(map[string]*createdObject)
	m.objectOrder = nil
	m.deferred = make(map[string]*deferredObject)
	m.deferredOrder = nil
	m.declared = make(map[string]*serviceDecl)
	m.deferredSrv = make(map[string]bool)
	m.created = make(map[string]service.Service)
	m.createdSrv = nil
	m.startedSrv = nil
	m.createdWorkers = nil
	m.deferredStart = nil
	m.deferredUpdate = nil
	m.objProxies = make(map[string]*proxyConns)
	m.srvProxies = make(map[string]*proxyConns)
	m.lifecycleConns = make(map[string][]*com.Connection)
}

// ID returns the manager id, used to name its channels and worker.
func (m *Manager) ID() string { return m.id }

// Config returns the configuration the manager runs.
func (m *Manager) Config() *appconfig.Config { return m.cfg }

// Slots exposes add_objects and remove_objects.
func (m *Manager) Slots() *com.Slots { return m.slots }

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AddExistingDeferredObject binds obj to the deferred uid before Create.
func (m *Manager) AddExistingDeferredObject(obj data.Object, uid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	invariant.Assert(m.state == StateDestroyed, "manager %s: deferred objects must be added before create, state is %s", m.id, m.state)
	if _, ok := m.deferred[uid]; !ok {
		m.deferredOrder = append(m.deferredOrder, uid)
	}
	m.deferred[uid] = &deferredObject{obj: obj}
}

// Launch creates and starts the configuration, then runs its update directives.
func (m *Manager) Launch() {
	defer m.stopAbandonedWorker()
	func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.create()
		m.start()
	}()
	m.Update()
}

// StopAndDestroy stops the configuration if it runs, then destroys it.
func (m *Manager) StopAndDestroy() {
	if m.State() == StateStarted {
		m.Stop()
	}
	m.Destroy()
}

// Create builds objects, channels and every service whose required objects exist.
func (m *Manager) Create() {
	defer m.stopAbandonedWorker()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.create()
}

func (m *Manager) create() {
	invariant.Assert(m.state == StateDestroyed, "manager %s: create requires state destroyed, got %s", m.id, m.state)
	if m.w == nil {
		m.w = worker.New(m.id, worker.WithLogger(m.logger))
		m.slots.SetWorker(m.w)
	}
	defer func() {
		if r := recover(); r != nil {
			// leave the context as it was before create
			m.release()
			m.abandoned, m.w = m.w, nil
			panic(r)
		}
	}()
	m.connectRegistry()
	m.createObjects()
	m.createConnections()
	m.createServices()
	m.state = StateCreated
	m.logger.Debug("configuration created",
		"objects", len(m.objectOrder),
		"deferred", len(m.deferredOrder),
		"services", len(m.createdSrv))
}

// stopAbandonedWorker stops the manager worker left by a failed create. It runs without the
// lock, queued notifications take it.
func (m *Manager) stopAbandonedWorker() {
	m.mu.Lock()
	w := m.abandoned
	m.abandoned = nil
	m.mu.Unlock()
	if w != nil {
		w.Stop()
	}
}

func (m *Manager) connectRegistry() {
	sigs := m.ctx.Services.Signals()
	for _, pair := range [][2]string{
		{service.SignalAdded, SlotAddObjects},
		{service.SignalRemoved, SlotRemoveObjects},
	} {
		c, err := sigs.Signal(pair[0]).Connect(m.slots.Slot(pair[1]))
		if err != nil {
			m.logger.Error("cannot follow service outputs", "signal", pair[0], "err", err)
			continue
		}
		m.registryConns = append(m.registryConns, c)
	}
}

func (m *Manager) disconnectRegistry() {
	for _, c := range m.registryConns {
		c.Disconnect()
	}
	m.registryConns = nil
}

func (m *Manager) createObjects() {
	declaredDeferred := map[string]bool{}
	for _, o := range m.cfg.Objects() {
		switch o.Source {
		case appconfig.SourceDeferred:
			invariant.Assert(o.UID != "", "deferred object of type %s has no uid", o.Type)
			declaredDeferred[o.UID] = true
			if _, ok := m.deferred[o.UID]; !ok {
				m.deferred[o.UID] = &deferredObject{}
				m.deferredOrder = append(m.deferredOrder, o.UID)
			}
		case appconfig.SourceRef:
			obj, ok := m.ctx.Objects.Get(o.UID)
			invariant.Assert(ok, "object %s referenced by %s is not registered", o.UID, m.cfg.ID)
			invariant.Assert(obj.Classname() == o.Type, "object %s is a %s, not a %s", o.UID, obj.Classname(), o.Type)
			m.addObject(o.UID, &createdObject{obj: obj})
		default:
			m.createObject(o)
		}
	}
	for _, uid := range m.deferredOrder {
		invariant.Assert(declaredDeferred[uid], "object %s was added as deferred but is not declared deferred", uid)
	}
}

func (m *Manager) createObject(o *appconfig.Object) {
	obj, err := m.ctx.DataTypes.New(o.Type)
	invariant.Assert(err == nil, "cannot create object %s: %v", o.UID, err)
	uid := o.UID
	if uid == "" {
		uid = uuid.NewString()
	}
	obj.SetID(uid)

	parser := m.ctx.DataTypes.NewParser(o.Type)
	parser.SetObjectConfig(o.Raw)
	err = parser.CreateConfig(obj)
	invariant.Assert(err == nil, "cannot parse object %s: %v", uid, err)

	pref := o.Source == appconfig.SourcePreference
	if pref {
		m.loadPreference(uid, obj)
	}
	m.addObject(uid, &createdObject{obj: obj, parser: parser, owned: true, preference: pref})

	subs := parser.Objects()
	ids := make([]string, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		m.addObject(id, &createdObject{obj: subs[id], owned: true})
	}
}

func (m *Manager) addObject(uid string, co *createdObject) {
	_, dup := m.objects[uid]
	invariant.Assert(!dup, "object uid %s is declared twice", uid)
	if co.owned {
		err := m.ctx.Objects.Add(uid, co.obj)
		invariant.Assert(err == nil, "object %s: %v", uid, err)
	}
	m.objects[uid] = co
	m.objectOrder = append(m.objectOrder, uid)
}

func (m *Manager) preferenceKey(uid string) string {
	return m.cfg.ID + "/" + uid
}

func (m *Manager) loadPreference(uid string, obj data.Object) {
	store := m.ctx.Preferences
	if store == nil {
		return
	}
	v, err := store.Load(context.Background(), m.preferenceKey(uid))
	if errors.Is(err, ports.ErrPreferenceNotFound) {
		return
	}
	if err != nil {
		m.logger.Warn("cannot load preference", "object", uid, "err", err)
		return
	}
	valuer, ok := obj.(data.Valuer)
	if !ok {
		m.logger.Warn("preference object holds no value", "object", uid, "type", obj.Classname())
		return
	}
	if err := valuer.Decode(v); err != nil {
		m.logger.Warn("cannot restore preference", "object", uid, "err", err)
	}
}

func (m *Manager) savePreferences() {
	store := m.ctx.Preferences
	if store == nil {
		return
	}
	for _, uid := range m.objectOrder {
		co := m.objects[uid]
		if !co.preference {
			continue
		}
		valuer, ok := co.obj.(data.Valuer)
		if !ok {
			continue
		}
		if err := store.Save(context.Background(), m.preferenceKey(uid), valuer.Any()); err != nil {
			m.logger.Warn("cannot save preference", "object", uid, "err", err)
		}
	}
}

func (m *Manager) createConnections() {
	for _, c := range m.cfg.Connections() {
		name := c.Channel
		if name == "" {
			m.channelCount++
			name = fmt.Sprintf("Proxy_%s_%d", m.id, m.channelCount)
		}
		for _, ep := range c.Signals {
			m.proxiesOf(ep.Owner).add(name, ep.Key, true)
		}
		for _, ep := range c.Slots {
			m.proxiesOf(ep.Owner).add(name, ep.Key, false)
		}
	}
	m.connectObjectProxies()
}

func (m *Manager) createServices() {
	for _, s := range m.cfg.Services() {
		decl := &serviceDecl{uid: s.UID, cfg: s}
		if decl.uid == "" {
			decl.uid = uuid.NewString()
		}
		m.declared[decl.uid] = decl

		for _, b := range s.Objects {
			d, isDeferred := m.deferred[b.UID]
			if b.Access == service.Out {
				if !isDeferred {
					m.logger.Error("output bound to an object that is not deferred",
						"service", decl.uid, "key", b.Key, "object", b.UID)
				}
				continue
			}
			if isDeferred {
				d.addWaiting(decl)
				m.deferredSrv[decl.uid] = true
			}
		}
		if m.ready(decl) {
			m.createService(decl)
		} else {
			m.logger.Debug("service postponed until its deferred objects exist", "service", decl.uid)
		}
	}
}

// ready reports whether every required deferred object of decl is bound.
func (m *Manager) ready(decl *serviceDecl) bool {
	for _, b := range decl.cfg.Objects {
		if b.Access == service.Out || b.Optional {
			continue
		}
		if d, ok := m.deferred[b.UID]; ok && d.obj == nil {
			return false
		}
	}
	return true
}

// findObject returns the created or bound deferred object of uid, or nil.
func (m *Manager) findObject(uid string) data.Object {
	if d, ok := m.deferred[uid]; ok {
		return d.obj
	}
	if co, ok := m.objects[uid]; ok {
		return co.obj
	}
	return nil
}

func (m *Manager) createService(decl *serviceDecl) service.Service {
	s := decl.cfg
	srv, err := m.ctx.ServiceTypes.New(s.Type)
	invariant.Assert(err == nil, "cannot create service %s: %v", decl.uid, err)
	srv.SetID(decl.uid)
	err = m.ctx.Services.Register(srv)
	invariant.Assert(err == nil, "cannot register service %s: %v", decl.uid, err)
	m.created[decl.uid] = srv
	m.createdSrv = append(m.createdSrv, srv)

	w := m.ctx.Workers.Default()
	if s.Worker != "" {
		var created bool
		w, created = m.ctx.Workers.GetOrCreate(s.Worker)
		if created {
			m.createdWorkers = append(m.createdWorkers, s.Worker)
		}
	}
	srv.SetWorker(w)
	srv.SetConfig(s.Config)
	if l, ok := srv.(interface{ SetLogger(*slog.Logger) }); ok {
		l.SetLogger(m.logger)
	}

	for _, b := range s.Objects {
		if _, ok := m.deferred[b.UID]; ok {
			srv.SetDeferredID(b.Key, b.Index, b.UID)
		}
		if b.Access == service.Out {
			continue
		}
		srv.SetObject(m.findObject(b.UID), b.Key, b.Index, b.Access, b.AutoConnect || s.AutoConnect, b.Optional)
	}

	m.connectProxies(decl.uid, m.srvProxies[decl.uid])
	if err := srv.Configure(); err != nil {
		m.logger.Error("service configuration failed", "service", decl.uid, "err", err)
	}
	m.hookLifecycle(srv, m.srvProxies[decl.uid])
	m.serviceEvent(m.hooks.OnServiceCreated, EventServiceCreated, decl.uid, s.Type)
	return srv
}

// hookLifecycle tracks services started or stopped through a channel.
func (m *Manager) hookLifecycle(srv service.Service, pcs *proxyConns) {
	var conns []*com.Connection
	if pcs.hasSlot(service.SlotStart) {
		conns = m.hook(conns, srv, service.SignalStarted, func() { m.addStartedService(srv) })
	}
	if pcs.hasSlot(service.SlotStop) {
		conns = m.hook(conns, srv, service.SignalStopped, func() { m.removeStartedService(srv) })
	}
	if len(conns) > 0 {
		m.lifecycleConns[srv.ID()] = conns
	}
}

func (m *Manager) hook(conns []*com.Connection, srv service.Service, key string, fn func()) []*com.Connection {
	sig := srv.Signals().Signal(key)
	if sig == nil {
		return conns
	}
	slot := com.NewSlot(fn)
	slot.SetWorker(m.w)
	c, err := sig.Connect(slot)
	if err != nil {
		m.logger.Error("cannot follow service lifecycle", "service", srv.ID(), "signal", key, "err", err)
		return conns
	}
	return append(conns, c)
}

func (m *Manager) addStartedService(srv service.Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.created[srv.ID()] != srv || slices.Contains(m.startedSrv, srv) {
		return
	}
	m.startedSrv = append(m.startedSrv, srv)
	m.serviceEvent(m.hooks.OnServiceStarted, EventServiceStarted, srv.ID(), srv.Type())
}

func (m *Manager) removeStartedService(srv service.Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.Contains(m.startedSrv, srv) {
		return
	}
	m.startedSrv = slices.DeleteFunc(m.startedSrv, func(s service.Service) bool { return s == srv })
	m.serviceEvent(m.hooks.OnServiceStopped, EventServiceStopped, srv.ID(), srv.Type())
}

func (m *Manager) startService(srv service.Service) *worker.Future[struct{}] {
	f := srv.Start()
	if !slices.Contains(m.startedSrv, srv) {
		m.startedSrv = append(m.startedSrv, srv)
	}
	m.serviceEvent(m.hooks.OnServiceStarted, EventServiceStarted, srv.ID(), srv.Type())
	return f
}

func (m *Manager) eachParser(what string, fn func(data.Parser) error) {
	for _, uid := range m.objectOrder {
		p := m.objects[uid].parser
		if p == nil {
			continue
		}
		if err := fn(p); err != nil {
			m.logger.Error("object parser failed", "step", what, "object", uid, "err", err)
		}
	}
}

// Start runs the start directives. Services still waiting for deferred objects are queued and
// started once created.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.start()
}

func (m *Manager) start() {
	invariant.Assert(m.state == StateCreated || m.state == StateStopped,
		"manager %s: start requires state created or stopped, got %s", m.id, m.state)
	if m.state == StateStopped {
		m.connectRegistry()
		m.connectObjectProxies()
	}

	m.deferredStart = nil
	var futures []*worker.Future[struct{}]
	for _, uid := range m.cfg.Starts() {
		_, declared := m.declared[uid]
		invariant.Assert(declared, "cannot start %s: service is not declared", uid)
		if m.deferredSrv[uid] {
			m.deferredStart = append(m.deferredStart, uid)
		}
		srv := m.created[uid]
		if srv == nil || srv.Started() {
			continue
		}
		futures = append(futures, m.startService(srv))
	}
	if err := worker.WaitAll(futures...); err != nil {
		m.logger.Error("service start failed", "err", err)
	}
	m.eachParser("start", data.Parser.StartConfig)
	m.state = StateStarted
}

// Update runs the update directives on started services.
func (m *Manager) Update() {
	m.mu.Lock()
	defer m.mu.Unlock()
	invariant.Assert(m.state == StateStarted, "manager %s: update requires state started, got %s", m.id, m.state)

	m.deferredUpdate = nil
	var futures []*worker.Future[struct{}]
	for _, uid := range m.cfg.Updates() {
		_, declared := m.declared[uid]
		invariant.Assert(declared, "cannot update %s: service is not declared", uid)
		if m.deferredSrv[uid] {
			m.deferredUpdate = append(m.deferredUpdate, uid)
		}
		if srv := m.created[uid]; srv != nil && srv.Started() {
			futures = append(futures, srv.Update())
		}
	}
	if err := worker.WaitAll(futures...); err != nil {
		m.logger.Error("service update failed", "err", err)
	}
	m.eachParser("update", data.Parser.UpdateConfig)
}

// Stop disconnects the object channels and stops every started service in reverse order.
func (m *Manager) Stop() {
	if err := worker.WaitAll(m.stop()...); err != nil {
		m.logger.Error("service stop failed", "err", err)
	}
}

// stop requests the service stops and returns their futures, waited without the lock.
func (m *Manager) stop() []*worker.Future[struct{}] {
	m.mu.Lock()
	defer m.mu.Unlock()
	invariant.Assert(m.state == StateStarted, "manager %s: stop requires state started, got %s", m.id, m.state)
	m.disconnectRegistry()
	m.disconnectObjectProxies()
	m.eachParser("stop", data.Parser.StopConfig)

	var futures []*worker.Future[struct{}]
	for i := len(m.startedSrv) - 1; i >= 0; i-- {
		srv := m.startedSrv[i]
		if srv.Stopped() {
			m.logger.Warn("service is already stopped", "service", srv.ID())
			continue
		}
		futures = append(futures, srv.Stop())
		m.serviceEvent(m.hooks.OnServiceStopped, EventServiceStopped, srv.ID(), srv.Type())
	}
	m.startedSrv = nil
	m.state = StateStopped
	return futures
}

// Destroy releases every service, object and worker created by the configuration.
func (m *Manager) Destroy() {
	// queued add/remove notifications run now and find the manager destroyed
	if w := m.destroy(); w != nil {
		w.Stop()
	}
}

// destroy releases everything and returns the manager worker, stopped without the lock.
func (m *Manager) destroy() *worker.Worker {
	m.mu.Lock()
	defer m.mu.Unlock()
	invariant.Assert(m.state == StateCreated || m.state == StateStopped,
		"manager %s: destroy requires state created or stopped, got %s", m.id, m.state)
	m.eachParser("destroy", data.Parser.DestroyConfig)
	m.savePreferences()
	m.release()
	w := m.w
	m.w = nil
	return w
}

// release stops and releases every service, unregisters the owned objects and the created
// workers, then clears the bookkeeping. The manager worker is kept.
func (m *Manager) release() {
	m.disconnectRegistry()
	m.disconnectObjectProxies()
	for i := len(m.createdSrv) - 1; i >= 0; i-- {
		srv := m.createdSrv[i]
		if srv.Started() {
			m.logger.Warn("service is still started, stopping it", "service", srv.ID())
			if err := srv.Stop().Wait(); err != nil {
				m.logger.Error("service stop failed", "service", srv.ID(), "err", err)
			}
			m.serviceEvent(m.hooks.OnServiceStopped, EventServiceStopped, srv.ID(), srv.Type())
		}
		m.releaseService(srv)
	}
	for _, uid := range m.objectOrder {
		if m.objects[uid].owned {
			m.ctx.Objects.Remove(uid)
		}
	}
	for _, name := range m.createdWorkers {
		m.ctx.Workers.Remove(name)
	}
	m.reset()
	m.state = StateDestroyed
}

// releaseService disconnects, unregisters and closes srv. The caller stops it first.
func (m *Manager) releaseService(srv service.Service) {
	uid := srv.ID()
	m.disconnectProxies(m.srvProxies[uid])
	for _, c := range m.lifecycleConns[uid] {
		c.Disconnect()
		c.Slot().Close()
	}
	delete(m.lifecycleConns, uid)
	if err := m.ctx.Services.Unregister(srv); err != nil {
		m.logger.Error("cannot unregister service", "service", uid, "err", err)
	}
	srv.Close()
	delete(m.created, uid)
	m.startedSrv = slices.DeleteFunc(m.startedSrv, func(s service.Service) bool { return s == srv })
	m.serviceEvent(m.hooks.OnServiceDestroyed, EventServiceDestroyed, uid, srv.Type())
}
