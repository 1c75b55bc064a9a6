package remootio

// State is the gate or garage door state reported by the device.
type State int

const (
	StateUnknown State = iota
	StateOpen
	StateClosed
	// StateNoSensorInstalled means the device has no open/closed sensor and
	// cannot report the position of the door.
	StateNoSensorInstalled
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateNoSensorInstalled:
		return "no sensor"
	default:
		return "unknown"
	}
}

// ParseState converts a state string from the device into a State.
func ParseState(s string) State {
	switch s {
	case "open":
		return StateOpen
	case "closed":
		return StateClosed
	case "no sensor":
		return StateNoSensorInstalled
	default:
		return StateUnknown
	}
}
