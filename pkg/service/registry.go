package service

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/sight/internal/logging"
	"github.com/aretw0/sight/pkg/com"
	"github.com/aretw0/sight/pkg/data"
	"github.com/aretw0/sight/pkg/registry"
)

// Registry signal keys. Both carry (object, deferred id).
const (
	SignalAdded   = "added"
	SignalRemoved = "removed"
)

// Registry holds the running services by uid and announces the objects they publish as
// outputs.
type Registry struct {
	services *registry.Registry[Service]
	signals  *com.Signals
	logger   *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		services: registry.NewRegistry[Service](),
		signals:  com.NewSignals(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	com.AddSignal[func(data.Object, string)](r.signals, SignalAdded)
	com.AddSignal[func(data.Object, string)](r.signals, SignalRemoved)
	return r
}

func (r *Registry) Signals() *com.Signals { return r.signals }

// Register adds srv under its uid. The uid must be set and unused.
func (r *Registry) Register(srv Service) error {
	id := srv.ID()
	if id == "" {
		return errors.New("service has no uid")
	}
	if err := r.services.Add(id, srv); err != nil {
		return err
	}
	if a, ok := srv.(interface{ attachRegistry(*Registry) }); ok {
		a.attachRegistry(r)
	}
	return nil
}

// Unregister removes srv.
func (r *Registry) Unregister(srv Service) error {
	id := srv.ID()
	cur, ok := r.services.Get(id)
	if !ok || cur != srv {
		return fmt.Errorf("%w: %s", ErrServiceNotFound, id)
	}
	r.services.Remove(id)
	if a, ok := srv.(interface{ attachRegistry(*Registry) }); ok {
		a.attachRegistry(nil)
	}
	return nil
}

// Get returns the service registered under uid, or nil.
func (r *Registry) Get(uid string) Service {
	srv, _ := r.services.Get(uid)
	return srv
}

func (r *Registry) Has(uid string) bool { return r.services.Has(uid) }

// IDs returns the registered uids in sorted order.
func (r *Registry) IDs() []string { return r.services.Keys() }

// NotifyAdded announces that obj is now available under id.
func (r *Registry) NotifyAdded(obj data.Object, id string) {
	r.notify(SignalAdded, obj, id)
}

// NotifyRemoved announces that obj is no longer available under id.
func (r *Registry) NotifyRemoved(obj data.Object, id string) {
	r.notify(SignalRemoved, obj, id)
}

func (r *Registry) notify(key string, obj data.Object, id string) {
	if err := r.signals.AsyncEmit(key, obj, id); err != nil {
		r.logger.Warn("output notification not delivered", "signal", key, "id", id, "err", err)
	}
}
