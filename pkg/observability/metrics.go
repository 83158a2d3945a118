package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/sight/pkg/app"
	"github.com/aretw0/sight/pkg/com"
)

const namespace = "sight"

// Collectors holds the metrics fed by the manager and proxy hooks.
type Collectors struct {
	ServiceEvents *prometheus.CounterVec
	Services      *prometheus.GaugeVec
	ObjectEvents  *prometheus.CounterVec
	Channels      prometheus.Gauge
}

// NewCollectors creates the collectors and registers them on reg. A nil reg leaves them
// unregistered.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		ServiceEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "service_events_total",
				Help:      "Service lifecycle steps, by configuration, service type and step.",
			},
			[]string{"config", "type", "event"},
		),
		Services: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "services_started",
				Help:      "Services currently started, by configuration.",
			},
			[]string{"config"},
		),
		ObjectEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deferred_object_events_total",
				Help:      "Deferred objects bound and unbound, by configuration.",
			},
			[]string{"config", "event"},
		),
		Channels: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "proxy_channels",
				Help:      "Channels currently open in the proxy.",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(c.ServiceEvents, c.Services, c.ObjectEvents, c.Channels)
	}
	return c
}

// Hooks returns manager hooks recording into c.
func (c *Collectors) Hooks() app.Hooks {
	count := func(e *app.ServiceEvent) {
		c.ServiceEvents.WithLabelValues(e.ConfigID, e.ServiceType, string(e.Type)).Inc()
	}
	object := func(e *app.ObjectEvent) {
		c.ObjectEvents.WithLabelValues(e.ConfigID, string(e.Type)).Inc()
	}
	return app.Hooks{
		OnServiceCreated: count,
		OnServiceStarted: func(e *app.ServiceEvent) {
			count(e)
			c.Services.WithLabelValues(e.ConfigID).Inc()
		},
		OnServiceStopped: func(e *app.ServiceEvent) {
			count(e)
			c.Services.WithLabelValues(e.ConfigID).Dec()
		},
		OnServiceDestroyed: count,
		OnObjectBound:      object,
		OnObjectUnbound:    object,
	}
}

// ProxyHooks returns proxy hooks tracking the open channels.
func (c *Collectors) ProxyHooks() com.ProxyHooks {
	return com.ProxyHooks{
		OnChannelCreated: func(string) { c.Channels.Inc() },
		OnChannelErased:  func(string) { c.Channels.Dec() },
	}
}

// Chain merges manager hooks; each callback runs the non-nil ones in order.
func Chain(hooks ...app.Hooks) app.Hooks {
	var out app.Hooks
	for _, h := range hooks {
		out.OnServiceCreated = chainService(out.OnServiceCreated, h.OnServiceCreated)
		out.OnServiceStarted = chainService(out.OnServiceStarted, h.OnServiceStarted)
		out.OnServiceStopped = chainService(out.OnServiceStopped, h.OnServiceStopped)
		out.OnServiceDestroyed = chainService(out.OnServiceDestroyed, h.OnServiceDestroyed)
		out.OnObjectBound = chainObject(out.OnObjectBound, h.OnObjectBound)
		out.OnObjectUnbound = chainObject(out.OnObjectUnbound, h.OnObjectUnbound)
	}
	return out
}

func chainService(a, b func(*app.ServiceEvent)) func(*app.ServiceEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(e *app.ServiceEvent) {
		a(e)
		b(e)
	}
}

func chainObject(a, b func(*app.ObjectEvent)) func(*app.ObjectEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(e *app.ObjectEvent) {
		a(e)
		b(e)
	}
}
