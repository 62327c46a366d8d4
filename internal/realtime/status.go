// Package realtime maintains the persistent channel to the ride backend:
// dialing, authentication, keepalive, drop detection and reconnection with
// exponential backoff. It owns the single logical connection per session and
// publishes its health as a stream of Status values.
package realtime

import (
	"errors"
	"fmt"
)

// State is the connection lifecycle state.
type State int

const (
	// StateDisconnected means no connection exists and none is being attempted.
	StateDisconnected State = iota
	// StateConnecting means the initial handshake is in progress.
	StateConnecting
	// StateConnected means the channel is established and healthy.
	StateConnected
	// StateReconnecting means the connection dropped and retries are underway.
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is the externally visible health of the connection. Exactly one
// Status is current at any time; the Manager is its sole owner and every
// transition is published synchronously to subscribers.
type Status struct {
	// State is the lifecycle state.
	State State
	// Attempt is the reconnect attempt counter. It increments on every
	// failed attempt within one outage and resets to 0 once connected.
	Attempt int
	// Err is the most recent error, set while reconnecting or after a
	// terminal failure. Nil when connected.
	Err error
}

// ErrRetriesExhausted is returned by Connect when the configured retry
// budget ran out without establishing a connection.
var ErrRetriesExhausted = errors.New("realtime: retry budget exhausted")

// AuthError indicates the backend rejected the session token. Authentication
// failures are terminal: the manager transitions to Disconnected without
// retrying, and the caller must obtain a fresh token and call Connect again.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return "realtime: authentication rejected"
	}
	return "realtime: authentication rejected: " + e.Reason
}
