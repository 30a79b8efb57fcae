package types

// State represents the relay lifecycle state.
//
// States follow a defined progression during normal operation:
//
//	StateInit → StateWaitingForData → StateRunning
//
// A pipeline reset moves StateRunning back to StateWaitingForData.
// Shutdown is terminal.
type State int

const (
	// StateInit is the initial state before Start.
	StateInit State = iota

	// StateWaitingForData indicates no data channel has reported a watermark yet.
	StateWaitingForData

	// StateRunning indicates at least one data channel produced data.
	StateRunning

	// StateShutdown indicates graceful shutdown is in progress or complete.
	StateShutdown
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateWaitingForData:
		return "WaitingForData"
	case StateRunning:
		return "Running"
	case StateShutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}
