package session

type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Ready
	PendingDisconnectConfirmation
	Destroyed
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case PendingDisconnectConfirmation:
		return "pending_disconnect"
	case Destroyed:
		return "destroyed"
	default:
		return "disconnected"
	}
}
