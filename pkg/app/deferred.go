package app

import (
	"slices"

	"github.com/aretw0/sight/pkg/data"
	"github.com/aretw0/sight/pkg/service"
	"github.com/aretw0/sight/pkg/worker"
)

// AddObjects binds obj to the deferred uid id. Services waiting for it are created, started
// and updated as the start and update directives say; running services using a previous
// object under id get the new one swapped in. Calls outside state started are ignored.
func (m *Manager) AddObjects(obj data.Object, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateStarted {
		m.logger.Info("object notification ignored, configuration is not started", "object", id, "state", m.state)
		return
	}
	d, ok := m.deferred[id]
	if !ok || obj == nil || d.obj == obj {
		return
	}
	if d.obj != nil {
		m.disconnectProxies(&d.proxies)
	}
	d.obj = obj
	m.connectProxies(id, &d.proxies)
	m.objectEvent(m.hooks.OnObjectBound, EventObjectBound, id, obj.Classname())

	var ready []*serviceDecl
	var swaps []*worker.Future[struct{}]
	for _, decl := range d.services {
		srv := m.created[decl.uid]
		if srv == nil {
			if m.ready(decl) {
				ready = append(ready, decl)
			}
			continue
		}
		for _, b := range decl.cfg.Objects {
			if b.UID != id || b.Access == service.Out {
				continue
			}
			old := srv.ReplaceObject(obj, b.Key, b.Index, b.Access, b.AutoConnect || decl.cfg.AutoConnect, b.Optional)
			if old != obj && srv.Started() {
				swaps = append(swaps, srv.SwapKey(b.Key, old))
			}
		}
	}
	if err := worker.WaitAll(swaps...); err != nil {
		m.logger.Error("object swap failed", "object", id, "err", err)
	}
	if len(ready) == 0 {
		return
	}

	readyIDs := make(map[string]bool, len(ready))
	for _, decl := range ready {
		m.createService(decl)
		readyIDs[decl.uid] = true
	}
	var futures []*worker.Future[struct{}]
	for _, uid := range m.deferredStart {
		if srv := m.created[uid]; readyIDs[uid] && srv != nil && !srv.Started() {
			futures = append(futures, m.startService(srv))
		}
	}
	if err := worker.WaitAll(futures...); err != nil {
		m.logger.Error("deferred service start failed", "object", id, "err", err)
	}
	futures = futures[:0]
	for _, uid := range m.deferredUpdate {
		if srv := m.created[uid]; readyIDs[uid] && srv != nil && srv.Started() {
			futures = append(futures, srv.Update())
		}
	}
	if err := worker.WaitAll(futures...); err != nil {
		m.logger.Error("deferred service update failed", "object", id, "err", err)
	}
}

// RemoveObjects unbinds obj from the deferred uid id. Services requiring it are stopped and
// destroyed; services holding it as optional keep running with the binding cleared.
// Notifications for an object no longer bound are ignored.
func (m *Manager) RemoveObjects(obj data.Object, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateStarted {
		m.logger.Info("object notification ignored, configuration is not started", "object", id, "state", m.state)
		return
	}
	d, ok := m.deferred[id]
	if !ok || d.obj == nil || d.obj != obj {
		return
	}
	m.disconnectProxies(&d.proxies)
	d.obj = nil
	m.objectEvent(m.hooks.OnObjectUnbound, EventObjectUnbound, id, obj.Classname())

	for _, decl := range d.services {
		srv := m.created[decl.uid]
		if srv == nil {
			continue
		}
		if m.requires(decl, id) {
			if srv.Started() {
				if err := srv.Stop().Wait(); err != nil {
					m.logger.Error("service stop failed", "service", decl.uid, "err", err)
				}
				m.serviceEvent(m.hooks.OnServiceStopped, EventServiceStopped, decl.uid, srv.Type())
			}
			m.releaseService(srv)
			m.createdSrv = slices.DeleteFunc(m.createdSrv, func(s service.Service) bool { return s == srv })
			m.logger.Info("service destroyed, a required object was removed", "service", decl.uid, "object", id)
			continue
		}
		var swaps []*worker.Future[struct{}]
		for _, b := range decl.cfg.Objects {
			if b.UID != id || b.Access == service.Out {
				continue
			}
			old := srv.ReplaceObject(nil, b.Key, b.Index, b.Access, b.AutoConnect || decl.cfg.AutoConnect, b.Optional)
			if old != nil && srv.Started() {
				swaps = append(swaps, srv.SwapKey(b.Key, old))
			}
		}
		if err := worker.WaitAll(swaps...); err != nil {
			m.logger.Error("object swap failed", "service", decl.uid, "object", id, "err", err)
		}
	}
}

// requires reports whether decl has a non optional input binding on uid.
func (m *Manager) requires(decl *serviceDecl, uid string) bool {
	for _, b := range decl.cfg.Objects {
		if b.UID == uid && b.Access != service.Out && !b.Optional {
			return true
		}
	}
	return false
}

// Services returns the created services in creation order.
func (m *Manager) Services() []service.Service {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.createdSrv)
}

// StartedServices returns the started services in start order.
func (m *Manager) StartedServices() []service.Service {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.startedSrv)
}

// Service returns the created service uid, or nil.
func (m *Manager) Service(uid string) service.Service {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created[uid]
}

// Objects returns the uids of the created and referenced objects in declaration order.
func (m *Manager) Objects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.objectOrder)
}

// DeferredObjects maps each deferred uid to whether an object is bound to it.
func (m *Manager) DeferredObjects() map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool, len(m.deferred))
	for uid, d := range m.deferred {
		out[uid] = d.obj != nil
	}
	return out
}

// Object returns the created or bound deferred object uid, or nil.
func (m *Manager) Object(uid string) data.Object {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findObject(uid)
}

