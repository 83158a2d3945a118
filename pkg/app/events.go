package app

import "time"

// EventType defines the category of the event.
type EventType string

const (
	EventServiceCreated   EventType = "service_created"
	EventServiceStarted   EventType = "service_started"
	EventServiceStopped   EventType = "service_stopped"
	EventServiceDestroyed EventType = "service_destroyed"
	EventObjectBound      EventType = "object_bound"
	EventObjectUnbound    EventType = "object_unbound"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	ConfigID  string    `json:"config_id"`
}

// ServiceEvent reports a service lifecycle step.
type ServiceEvent struct {
	EventBase
	ServiceID   string `json:"service_id"`
	ServiceType string `json:"service_type"`
}

// ObjectEvent reports a deferred object being bound or unbound.
type ObjectEvent struct {
	EventBase
	ObjectID  string `json:"object_id"`
	Classname string `json:"classname"`
}

// Hooks defines callbacks for manager observability. They run synchronously, with the
// manager lock held, and must not call back into the manager.
type Hooks struct {
	OnServiceCreated   func(*ServiceEvent)
	OnServiceStarted   func(*ServiceEvent)
	OnServiceStopped   func(*ServiceEvent)
	OnServiceDestroyed func(*ServiceEvent)
	OnObjectBound      func(*ObjectEvent)
	OnObjectUnbound    func(*ObjectEvent)
}

func (m *Manager) serviceEvent(fn func(*ServiceEvent), typ EventType, id, srvType string) {
	if fn == nil {
		return
	}
	fn(&ServiceEvent{
		EventBase:   EventBase{Timestamp: time.Now(), Type: typ, ConfigID: m.cfg.ID},
		ServiceID:   id,
		ServiceType: srvType,
	})
}

func (m *Manager) objectEvent(fn func(*ObjectEvent), typ EventType, id, classname string) {
	if fn == nil {
		return
	}
	fn(&ObjectEvent{
		EventBase: EventBase{Timestamp: time.Now(), Type: typ, ConfigID: m.cfg.ID},
		ObjectID:  id,
		Classname: classname,
	})
}
