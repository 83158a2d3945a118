package observability

import (
	"log/slog"

	"github.com/aretw0/sight/pkg/app"
)

// LogHooks returns manager hooks writing each event to logger at debug level.
func LogHooks(logger *slog.Logger) app.Hooks {
	service := func(e *app.ServiceEvent) {
		logger.Debug(string(e.Type), "config", e.ConfigID, "service", e.ServiceID, "type", e.ServiceType)
	}
	object := func(e *app.ObjectEvent) {
		logger.Debug(string(e.Type), "config", e.ConfigID, "object", e.ObjectID, "classname", e.Classname)
	}
	return app.Hooks{
		OnServiceCreated:   service,
		OnServiceStarted:   service,
		OnServiceStopped:   service,
		OnServiceDestroyed: service,
		OnObjectBound:      object,
		OnObjectUnbound:    object,
	}
}
