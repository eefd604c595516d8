package stream

import (
	"streamview/internal/constants"
)

// Sink delivers framed events to one subscriber. WriteEvent must fail once the
// subscriber is gone.
type Sink interface {
	WriteEvent(name, data string) error
}

type InfoEvent struct {
	Message string `json:"message"`
}

type ErrorEvent struct {
	Error  string `json:"error"`
	Stack  string `json:"stack,omitempty"`
	Cause  string `json:"cause,omitempty"`
	Detail string `json:"detail,omitempty"`
}

const (
	EventInfo    = constants.EventInfo
	EventError   = constants.EventError
	EventMessage = constants.EventMessage

	MsgConnecting   = "Connecting to broker..."
	MsgConnected    = "Connected. Streaming messages."
	MsgStreamClosed = "Stream closed"
	MsgFilterFailed = "Failed to apply filter to message"
)
