package handshake

import "fmt"

type State uint8

// Client states.
const (
	Idle State = iota
	KeyReady
	HelloSent
	Connected
)

// Server per-socket states.
const (
	Connecting State = iota + 16
	HelloReceived
	AuthFailed
	Verifying
	Rejected
	Established
	// Abandoned marks a handshake whose connection closed before
	// verification finished.
	Abandoned
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case KeyReady:
		return "key_ready"
	case HelloSent:
		return "hello_sent"
	case Connected:
		return "connected"
	case Connecting:
		return "connecting"
	case HelloReceived:
		return "hello_received"
	case AuthFailed:
		return "auth_failed"
	case Verifying:
		return "verifying"
	case Rejected:
		return "rejected"
	case Established:
		return "established"
	case Abandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Policy decides what happens to a socket that fails authentication.
type Policy string

const (
	PolicyKeep       Policy = "keep"
	PolicyDisconnect Policy = "disconnect"
)

func (p Policy) Valid() bool {
	return p == PolicyKeep || p == PolicyDisconnect
}
