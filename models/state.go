package models

type ConnectionState uint8

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Closing
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Closing:
		return "Closing"
	default:
		return "Unknown"
	}
}
