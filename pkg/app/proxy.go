package app

import (
	"slices"

	"github.com/aretw0/sight/internal/invariant"
	"github.com/aretw0/sight/pkg/com"
)

// proxyConn is what one owner contributes to one channel.
type proxyConn struct {
	signals []string
	slots   []string

	// members currently registered in the proxy
	regSignals []*com.Signal
	regSlots   []*com.Slot
}

// proxyConns groups the channel contributions of one owner, in declaration order.
type proxyConns struct {
	order []string
	m     map[string]*proxyConn
}

func (p *proxyConns) add(channel, key string, signal bool) {
	if p.m == nil {
		p.m = make(map[string]*proxyConn)
	}
	pc, ok := p.m[channel]
	if !ok {
		pc = &proxyConn{}
		p.m[channel] = pc
		p.order = append(p.order, channel)
	}
	if signal {
		pc.signals = append(pc.signals, key)
	} else {
		pc.slots = append(pc.slots, key)
	}
}

func (p *proxyConns) hasSlot(key string) bool {
	if p == nil {
		return false
	}
	for _, pc := range p.m {
		if slices.Contains(pc.slots, key) {
			return true
		}
	}
	return false
}

// proxiesOf returns the channel record of owner, classified as deferred object, created
// object or service.
func (m *Manager) proxiesOf(owner string) *proxyConns {
	if d, ok := m.deferred[owner]; ok {
		return &d.proxies
	}
	table := m.srvProxies
	if _, ok := m.objects[owner]; ok {
		table = m.objProxies
	}
	pcs, ok := table[owner]
	if !ok {
		pcs = &proxyConns{}
		table[owner] = pcs
	}
	return pcs
}

// resolve finds a channel member owner: global lookup first, then the bound deferred objects.
func (m *Manager) resolve(uid string) any {
	if v := m.ctx.Lookup(uid); v != nil {
		return v
	}
	if d, ok := m.deferred[uid]; ok && d.obj != nil {
		return d.obj
	}
	return nil
}

// connectProxies registers the signals and slots of owner in their channels. Members already
// registered are left alone. Pairwise connection failures are logged by the proxy and do not
// stop the registration of the other members; members the proxy rejected are not recorded.
func (m *Manager) connectProxies(owner string, pcs *proxyConns) {
	if pcs == nil || len(pcs.order) == 0 {
		return
	}
	target := m.resolve(owner)
	if target == nil {
		m.logger.Error("cannot connect channels, owner not found", "uid", owner)
		return
	}
	for _, name := range pcs.order {
		pc := pcs.m[name]
		if len(pc.regSignals) > 0 || len(pc.regSlots) > 0 {
			continue
		}
		if len(pc.signals) > 0 {
			hs, ok := target.(com.HasSignals)
			invariant.Assert(ok, "%s has no signals", owner)
			for _, key := range pc.signals {
				sig := hs.Signals().Signal(key)
				invariant.Assert(sig != nil, "signal %s/%s not found", owner, key)
				if err := m.ctx.Proxy.ConnectSignal(name, sig); err != nil {
					m.logger.Warn("channel partially connected", "channel", name, "signal", owner+"/"+key, "err", err)
				}
				if m.ctx.Proxy.HasSignal(name, sig) {
					pc.regSignals = append(pc.regSignals, sig)
				}
			}
		}
		if len(pc.slots) > 0 {
			hs, ok := target.(com.HasSlots)
			invariant.Assert(ok, "%s has no slots", owner)
			for _, key := range pc.slots {
				slot := hs.Slots().Slot(key)
				invariant.Assert(slot != nil, "slot %s/%s not found", owner, key)
				if err := m.ctx.Proxy.ConnectSlot(name, slot); err != nil {
					m.logger.Warn("channel partially connected", "channel", name, "slot", owner+"/"+key, "err", err)
				}
				if m.ctx.Proxy.HasSlot(name, slot) {
					pc.regSlots = append(pc.regSlots, slot)
				}
			}
		}
	}
}

// disconnectProxies removes from the proxy every member registered by connectProxies.
func (m *Manager) disconnectProxies(pcs *proxyConns) {
	if pcs == nil {
		return
	}
	for _, name := range pcs.order {
		pc := pcs.m[name]
		for _, sig := range pc.regSignals {
			m.ctx.Proxy.DisconnectSignal(name, sig)
		}
		for _, slot := range pc.regSlots {
			m.ctx.Proxy.DisconnectSlot(name, slot)
		}
		pc.regSignals = nil
		pc.regSlots = nil
	}
}

// connectObjectProxies connects the channels of created objects and bound deferred objects.
func (m *Manager) connectObjectProxies() {
	for _, uid := range m.objectOrder {
		m.connectProxies(uid, m.objProxies[uid])
	}
	for _, uid := range m.deferredOrder {
		if d := m.deferred[uid]; d.obj != nil {
			m.connectProxies(uid, &d.proxies)
		}
	}
}

func (m *Manager) disconnectObjectProxies() {
	for _, uid := range m.objectOrder {
		m.disconnectProxies(m.objProxies[uid])
	}
	for _, uid := range m.deferredOrder {
		m.disconnectProxies(&m.deferred[uid].proxies)
	}
}
