package app

import (
	"log/slog"

	"github.com/aretw0/sight/internal/logging"
	"github.com/aretw0/sight/pkg/com"
	"github.com/aretw0/sight/pkg/data"
	"github.com/aretw0/sight/pkg/ports"
	"github.com/aretw0/sight/pkg/registry"
	"github.com/aretw0/sight/pkg/service"
	"github.com/aretw0/sight/pkg/worker"
)

// Context carries the collaborators shared by every Manager of a process.
type Context struct {
	Proxy    *com.Proxy
	Workers  *worker.Registry
	Services *service.Registry
	// Objects indexes the created (non deferred) objects by uid.
	Objects      *registry.Registry[data.Object]
	DataTypes    *data.Factory
	ServiceTypes *service.Factory
	// Preferences persists preference objects. Nil disables persistence.
	Preferences ports.PreferenceStore
	Logger      *slog.Logger

	proxyHooks com.ProxyHooks
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithContextLogger sets the logger shared by the context collaborators.
func WithContextLogger(logger *slog.Logger) ContextOption {
	return func(c *Context) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithPreferences sets the preference store.
func WithPreferences(store ports.PreferenceStore) ContextOption {
	return func(c *Context) {
		c.Preferences = store
	}
}

// WithServiceTypes sets the service factory.
func WithServiceTypes(f *service.Factory) ContextOption {
	return func(c *Context) {
		if f != nil {
			c.ServiceTypes = f
		}
	}
}

// WithDataTypes sets the object factory.
func WithDataTypes(f *data.Factory) ContextOption {
	return func(c *Context) {
		if f != nil {
			c.DataTypes = f
		}
	}
}

// WithProxyHooks observes the channels of the context proxy.
func WithProxyHooks(hooks com.ProxyHooks) ContextOption {
	return func(c *Context) {
		c.proxyHooks = hooks
	}
}

// NewContext creates a context with fresh collaborators. The object factory knows the stock
// data types; the service factory is empty unless set.
func NewContext(opts ...ContextOption) *Context {
	c := &Context{
		DataTypes:    data.DefaultFactory(),
		ServiceTypes: service.NewFactory(),
		Objects:      registry.NewRegistry[data.Object](),
		Logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Proxy = com.NewProxy(com.WithLogger(c.Logger), com.WithProxyHooks(c.proxyHooks))
	c.Workers = worker.NewRegistry(worker.WithRegistryLogger(c.Logger))
	c.Services = service.NewRegistry(service.WithLogger(c.Logger))
	return c
}

// Lookup resolves a uid to a registered service or created object, or nil.
func (c *Context) Lookup(uid string) any {
	if srv := c.Services.Get(uid); srv != nil {
		return srv
	}
	if obj, ok := c.Objects.Get(uid); ok {
		return obj
	}
	return nil
}

// Close stops every worker and checks that no proxy channel was leaked. Managers using the
// context must be destroyed first.
func (c *Context) Close() {
	c.Workers.Close()
	c.Proxy.Close()
}
