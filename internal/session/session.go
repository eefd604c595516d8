// Package session owns the lifecycle of one broker subscription or one
// single-message publish.
package session

import (
	"errors"
	"time"

	"streamview/internal/constants"
)

var (
	ErrSessionClosed    = errors.New("session closed")
	ErrNotConnected     = errors.New("session not connected")
	ErrAlreadyStreaming = errors.New("message sequence already consumed")
)

type State int32

const (
	StateCreated State = iota
	StateConnecting
	StateConnected
	StateStreaming
	StateClosing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options tunes broker interaction for every session.
type Options struct {
	ReceiveTimeout time.Duration
	RetryBackoff   time.Duration
	ConnectTimeout time.Duration
	AckTimeout     time.Duration
}

func DefaultOptions() Options {
	return Options{
		ReceiveTimeout: constants.DefaultReceiveTimeout,
		RetryBackoff:   constants.DefaultRetryBackoff,
		ConnectTimeout: constants.DefaultConnectTimeout,
		AckTimeout:     constants.DefaultAckTimeout,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ReceiveTimeout <= 0 {
		o.ReceiveTimeout = d.ReceiveTimeout
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = d.RetryBackoff
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = d.ConnectTimeout
	}
	if o.AckTimeout <= 0 {
		o.AckTimeout = d.AckTimeout
	}
	return o
}
