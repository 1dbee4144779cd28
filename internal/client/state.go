package client

import "fmt"

// State 会话状态
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

var stateNames = []string{"IDLE", "CONNECTING", "CONNECTED", "CLOSING", "CLOSED"}

// Status 会话快照
type Status struct {
	ID               string `json:"id"`
	State            string `json:"state"`
	Mode             string `json:"mode"`
	Host             string `json:"host"`
	Port             int    `json:"port"`
	ReconnectAttempt int    `json:"reconnect_attempt"`
	Connected        bool   `json:"connected"`
	Proxy            string `json:"proxy"`
	BytesRead        int64  `json:"bytes_read"`
	BytesWritten     int64  `json:"bytes_written"`
}
