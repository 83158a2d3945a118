package appconfig

import (
	"fmt"

	"github.com/aretw0/sight/pkg/service"
)

// Source tells how an object entry is obtained.
type Source int

const (
	// SourceNew builds a fresh object from its type.
	SourceNew Source = iota
	// SourceDeferred declares an object provided later, by another configuration or service.
	SourceDeferred
	// SourceRef references an object already registered under the uid.
	SourceRef
	// SourcePreference builds a fresh object whose value is persisted in the preference store.
	SourcePreference
)

func (s Source) String() string {
	switch s {
	case SourceNew:
		return "new"
	case SourceDeferred:
		return "deferred"
	case SourceRef:
		return "ref"
	case SourcePreference:
		return "preference"
	}
	return fmt.Sprintf("source(%d)", int(s))
}

// ParseSource parses the "src" attribute. The empty string means SourceNew.
func ParseSource(s string) (Source, error) {
	switch s {
	case "", "new":
		return SourceNew, nil
	case "deferred":
		return SourceDeferred, nil
	case "ref":
		return SourceRef, nil
	case "preference":
		return SourcePreference, nil
	}
	return SourceNew, fmt.Errorf("unknown object source %q", s)
}

// Object declares a data object.
type Object struct {
	UID    string
	Type   string
	Source Source
	// Raw is the whole entry, handed to the object parser.
	Raw map[string]any
}

// ObjectBinding binds an object to a service key.
type ObjectBinding struct {
	Key         string
	Index       int
	Group       bool
	UID         string
	Access      service.Access
	Optional    bool
	AutoConnect bool
}

// Service declares a service instance. It is immutable once parsed.
type Service struct {
	UID         string
	Type        string
	Worker      string
	AutoConnect bool
	Objects     []ObjectBinding
	Config      map[string]any
}

// Endpoint is an "owner/key" reference to a signal or slot.
type Endpoint struct {
	Owner string
	Key   string
}

func (e Endpoint) String() string { return e.Owner + "/" + e.Key }

// Connection routes signals to slots through a named channel.
// An empty Channel is named by the manager.
type Connection struct {
	Channel string
	Signals []Endpoint
	Slots   []Endpoint
}

// EntryKind discriminates configuration entries.
type EntryKind int

const (
	KindObject EntryKind = iota
	KindService
	KindServiceList
	KindConnect
	KindStart
	KindUpdate
)

func (k EntryKind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindService:
		return "service"
	case KindServiceList:
		return "serviceList"
	case KindConnect:
		return "connect"
	case KindStart:
		return "start"
	case KindUpdate:
		return "update"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Entry is one configuration element. Exactly the field matching Kind is set.
type Entry struct {
	Kind    EntryKind
	Object  *Object
	Service *Service
	List    []Entry // KindServiceList
	Connect *Connection
	Target  string // uid of KindStart and KindUpdate
}

// Config is a parsed configuration.
type Config struct {
	ID          string
	Description string
	Entries     []Entry
}

// Objects returns the object declarations in order.
func (c *Config) Objects() []*Object {
	var out []*Object
	for _, e := range c.Entries {
		if e.Kind == KindObject {
			out = append(out, e.Object)
		}
	}
	return out
}

// Services returns every service declaration in creation order: top-level services first,
// then the content of service lists.
func (c *Config) Services() []*Service {
	return services(c.Entries)
}

func services(entries []Entry) []*Service {
	var out []*Service
	for _, e := range entries {
		if e.Kind == KindService {
			out = append(out, e.Service)
		}
	}
	for _, e := range entries {
		if e.Kind == KindServiceList {
			out = append(out, services(e.List)...)
		}
	}
	return out
}

// Connections returns the connect entries in order.
func (c *Config) Connections() []*Connection {
	var out []*Connection
	for _, e := range c.Entries {
		if e.Kind == KindConnect {
			out = append(out, e.Connect)
		}
	}
	return out
}

// Starts returns the uids of the start directives in order.
func (c *Config) Starts() []string { return c.targets(KindStart) }

// Updates returns the uids of the update directives in order.
func (c *Config) Updates() []string { return c.targets(KindUpdate) }

func (c *Config) targets(kind EntryKind) []string {
	var out []string
	for _, e := range c.Entries {
		if e.Kind == kind {
			out = append(out, e.Target)
		}
	}
	return out
}
