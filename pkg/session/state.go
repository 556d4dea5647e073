package session

// State is the connection state of a Session.
type State int

const (
	// StateConnecting means a dial is in progress.
	StateConnecting State = iota

	// StateOpen means the socket is up but register has not been sent.
	StateOpen

	// StateRegistered means the register message has been handed to the
	// socket. Registration is fire-and-forget; no relay ack is awaited.
	StateRegistered

	// StateReconnecting means the socket dropped and a reconnect is
	// scheduled after the fixed delay.
	StateReconnecting

	// StateClosed is terminal, entered only by an explicit Close.
	StateClosed
)

// String returns the state as a status string for display.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateRegistered:
		return "registered"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
