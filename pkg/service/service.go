package service

import (
	"github.com/aretw0/sight/pkg/com"
	"github.com/aretw0/sight/pkg/data"
	"github.com/aretw0/sight/pkg/worker"
)

// Stock signal keys.
const (
	SignalStarted = "started"
	SignalUpdated = "updated"
	SignalStopped = "stopped"
	SignalSwapped = "swapped"
)

// Stock slot keys.
const (
	SlotStart   = "start"
	SlotStop    = "stop"
	SlotUpdate  = "update"
	SlotSwapKey = "swap_key"
)

// Service is the contract the configuration manager drives.
type Service interface {
	com.HasSignals
	com.HasSlots

	ID() string
	SetID(id string)
	Type() string

	SetConfig(cfg map[string]any)
	Config() map[string]any
	Configure() error

	Start() *worker.Future[struct{}]
	Stop() *worker.Future[struct{}]
	Update() *worker.Future[struct{}]
	// SwapKey notifies a running service that the object under key changed; old is the
	// previously bound object, possibly nil.
	SwapKey(key string, old data.Object) *worker.Future[struct{}]
	Started() bool
	Stopped() bool

	SetWorker(w *worker.Worker)
	Worker() *worker.Worker

	SetObject(obj data.Object, key string, index int, access Access, autoConnect, optional bool)
	// ReplaceObject binds obj under key and returns the previously bound object, in one step.
	ReplaceObject(obj data.Object, key string, index int, access Access, autoConnect, optional bool) data.Object
	ResetObject(key string, index int)
	Object(key string, index int) data.Object
	SetDeferredID(key string, index int, uid string)
	DeferredID(key string, index int) string
	// SetOutput publishes obj under an out key. The registry announces it under the key's
	// deferred id.
	SetOutput(key string, index int, obj data.Object)
	Bindings() []Binding

	AutoConnections() []AutoConnection
	AutoConnect() error
	AutoDisconnect()

	// Close releases the service's signals and slots once it is unregistered.
	Close()
}
