package domain

// ConnState is the lifecycle of one connection.
// Frames may only be accepted or sent while Open.
type ConnState int32

const (
	Connecting ConnState = iota
	Open
	Closing
	Closed
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
