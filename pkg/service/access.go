package service

import "fmt"

// Access is the way a service uses a bound object.
type Access int

const (
	In Access = iota
	InOut
	Out
)

func (a Access) String() string {
	switch a {
	case In:
		return "in"
	case InOut:
		return "inout"
	case Out:
		return "out"
	}
	return fmt.Sprintf("access(%d)", int(a))
}

// ParseAccess parses "in", "inout" or "out".
func ParseAccess(s string) (Access, error) {
	switch s {
	case "in":
		return In, nil
	case "inout":
		return InOut, nil
	case "out":
		return Out, nil
	}
	return In, fmt.Errorf("unknown access %q", s)
}

// AutoConnection declares that the Signal of the object bound under Key is connected to the
// service's Slot while the service runs. An empty Key matches every auto-connected key.
type AutoConnection struct {
	Key    string
	Signal string
	Slot   string
}
