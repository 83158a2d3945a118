package com

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/aretw0/sight/internal/invariant"
	"github.com/aretw0/sight/internal/logging"
)

// ChannelInfo describes a proxy channel.
type ChannelInfo struct {
	Name    string `json:"name"`
	Signals int    `json:"signals"`
	Slots   int    `json:"slots"`
}

// ProxyHooks observe channel creation and erasure.
type ProxyHooks struct {
	OnChannelCreated func(name string)
	OnChannelErased  func(name string)
}

type channel struct {
	mu      sync.Mutex
	erased  bool
	signals []*Signal
	slots   []*Slot
}

// Proxy routes named channels: every signal registered in a channel is connected to every
// slot registered in it.
type Proxy struct {
	mu       sync.Mutex
	channels map[string]*channel
	logger   *slog.Logger
	hooks    ProxyHooks
}

// ProxyOption configures a Proxy.
type ProxyOption func(*Proxy)

// WithLogger sets the logger used to report failed pairwise connections.
func WithLogger(logger *slog.Logger) ProxyOption {
	return func(p *Proxy) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithProxyHooks registers channel lifecycle hooks.
func WithProxyHooks(hooks ProxyHooks) ProxyOption {
	return func(p *Proxy) {
		p.hooks = hooks
	}
}

// NewProxy creates a proxy without channels.
func NewProxy(opts ...ProxyOption) *Proxy {
	p := &Proxy{
		channels: make(map[string]*channel),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// lockChannel returns the named channel locked, creating it when absent.
func (p *Proxy) lockChannel(name string) *channel {
	for {
		p.mu.Lock()
		ch, ok := p.channels[name]
		if !ok {
			ch = &channel{}
			p.channels[name] = ch
		}
		p.mu.Unlock()
		if !ok && p.hooks.OnChannelCreated != nil {
			p.hooks.OnChannelCreated(name)
		}

		ch.mu.Lock()
		if !ch.erased {
			return ch
		}
		// lost a race with the erasure of the previous channel of that name
		ch.mu.Unlock()
	}
}

// existingChannel returns the named channel locked; the channel must exist.
func (p *Proxy) existingChannel(name string) *channel {
	p.mu.Lock()
	ch, ok := p.channels[name]
	p.mu.Unlock()
	invariant.Assert(ok, "channel %q does not exist", name)
	ch.mu.Lock()
	invariant.Assert(!ch.erased, "channel %q does not exist", name)
	return ch
}

// eraseIfEmpty must be called with ch locked; it unlocks ch.
func (p *Proxy) eraseIfEmpty(name string, ch *channel) {
	empty := len(ch.signals) == 0 && len(ch.slots) == 0
	if empty {
		ch.erased = true
	}
	ch.mu.Unlock()
	if !empty {
		return
	}
	p.mu.Lock()
	if p.channels[name] == ch {
		delete(p.channels, name)
	}
	p.mu.Unlock()
	if p.hooks.OnChannelErased != nil {
		p.hooks.OnChannelErased(name)
	}
}

// ConnectSignal registers sig in channel and connects it to every slot of the channel.
// Registering twice is a no-op. A failing pair is logged and skipped, the other pairs are
// still connected; the failures are returned joined. A signal that pairs with no slot
// because of mismatched types is not kept in the channel.
func (p *Proxy) ConnectSignal(name string, sig *Signal) error {
	ch := p.lockChannel(name)
	if slices.Contains(ch.signals, sig) {
		ch.mu.Unlock()
		return nil
	}
	ch.signals = append(ch.signals, sig)

	var errs []error
	connected := 0
	for _, slot := range ch.slots {
		if _, err := sig.Connect(slot); err != nil {
			p.logger.Error("cannot connect signal to slot", "channel", name,
				"signal", sig.Type().String(), "slot", slot.Type().String(), "err", err)
			errs = append(errs, fmt.Errorf("channel %q: %w", name, err))
			continue
		}
		connected++
	}
	err := errors.Join(errs...)
	if connected == 0 && errors.Is(err, ErrBadSlot) {
		ch.signals = slices.DeleteFunc(ch.signals, func(s *Signal) bool { return s == sig })
		p.eraseIfEmpty(name, ch)
		return err
	}
	ch.mu.Unlock()
	return err
}

// ConnectSlot registers slot in channel and connects every signal of the channel to it.
// It follows the rules of ConnectSignal.
func (p *Proxy) ConnectSlot(name string, slot *Slot) error {
	ch := p.lockChannel(name)
	if slices.Contains(ch.slots, slot) {
		ch.mu.Unlock()
		return nil
	}
	ch.slots = append(ch.slots, slot)

	var errs []error
	connected := 0
	for _, sig := range ch.signals {
		if _, err := sig.Connect(slot); err != nil {
			p.logger.Error("cannot connect signal to slot", "channel", name,
				"signal", sig.Type().String(), "slot", slot.Type().String(), "err", err)
			errs = append(errs, fmt.Errorf("channel %q: %w", name, err))
			continue
		}
		connected++
	}
	err := errors.Join(errs...)
	if connected == 0 && errors.Is(err, ErrBadSlot) {
		ch.slots = slices.DeleteFunc(ch.slots, func(s *Slot) bool { return s == slot })
		p.eraseIfEmpty(name, ch)
		return err
	}
	ch.mu.Unlock()
	return err
}

// HasSignal reports whether sig is registered in the named channel.
func (p *Proxy) HasSignal(name string, sig *Signal) bool {
	ch := p.lookup(name)
	if ch == nil {
		return false
	}
	defer ch.mu.Unlock()
	return slices.Contains(ch.signals, sig)
}

// HasSlot reports whether slot is registered in the named channel.
func (p *Proxy) HasSlot(name string, slot *Slot) bool {
	ch := p.lookup(name)
	if ch == nil {
		return false
	}
	defer ch.mu.Unlock()
	return slices.Contains(ch.slots, slot)
}

// lookup returns the named channel locked, or nil when it does not exist.
func (p *Proxy) lookup(name string) *channel {
	p.mu.Lock()
	ch, ok := p.channels[name]
	p.mu.Unlock()
	if !ok {
		return nil
	}
	ch.mu.Lock()
	if ch.erased {
		ch.mu.Unlock()
		return nil
	}
	return ch
}

// DisconnectSignal removes sig from channel. The channel must exist and sig must be registered
// in it. The channel is erased once it has no member left.
func (p *Proxy) DisconnectSignal(name string, sig *Signal) {
	ch := p.existingChannel(name)
	i := slices.Index(ch.signals, sig)
	if i < 0 {
		ch.mu.Unlock()
		invariant.Fail("signal %s is not registered in channel %q", sig.Type(), name)
	}
	ch.signals = slices.Delete(ch.signals, i, i+1)
	for _, slot := range ch.slots {
		if c := sig.Connection(slot); c != nil {
			c.Disconnect()
		}
	}
	p.eraseIfEmpty(name, ch)
}

// DisconnectSlot removes slot from channel. The channel must exist and slot must be registered
// in it.
func (p *Proxy) DisconnectSlot(name string, slot *Slot) {
	ch := p.existingChannel(name)
	i := slices.Index(ch.slots, slot)
	if i < 0 {
		ch.mu.Unlock()
		invariant.Fail("slot %s is not registered in channel %q", slot.Type(), name)
	}
	ch.slots = slices.Delete(ch.slots, i, i+1)
	for _, sig := range ch.signals {
		if c := sig.Connection(slot); c != nil {
			c.Disconnect()
		}
	}
	p.eraseIfEmpty(name, ch)
}

// HasChannel reports whether the named channel exists.
func (p *Proxy) HasChannel(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.channels[name]
	return ok
}

// Channels describes every channel, sorted by name.
func (p *Proxy) Channels() []ChannelInfo {
	p.mu.Lock()
	chans := make(map[string]*channel, len(p.channels))
	for name, ch := range p.channels {
		chans[name] = ch
	}
	p.mu.Unlock()

	out := make([]ChannelInfo, 0, len(chans))
	for name, ch := range chans {
		ch.mu.Lock()
		out = append(out, ChannelInfo{Name: name, Signals: len(ch.signals), Slots: len(ch.slots)})
		ch.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Close checks that every channel was disconnected.
func (p *Proxy) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.channels))
	for name := range p.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	invariant.Assert(len(names) == 0, "proxy closed with remaining channels %v", names)
}
