package probe

import "fmt"

// State is the lifecycle of one traced exchange:
//
//	Idle -> Armed -> HandshakeInFlight -> Captured -> Resolved
//
// with Errored reachable from any non-terminal state. Armed is skipped when
// the transport cannot trace.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateHandshakeInFlight
	StateCaptured
	StateResolved
	StateErrored
)

var stateNames = [...]string{
	StateIdle:              "idle",
	StateArmed:             "armed",
	StateHandshakeInFlight: "handshake_in_flight",
	StateCaptured:          "captured",
	StateResolved:          "resolved",
	StateErrored:           "errored",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for i, n := range stateNames {
		if n == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", string(b))
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateResolved || s == StateErrored
}
