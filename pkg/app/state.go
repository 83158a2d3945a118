package app

import "fmt"

// State is the lifecycle state of a Manager.
type State int

const (
	StateDestroyed State = iota
	StateCreated
	StateStarted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDestroyed:
		return "destroyed"
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
