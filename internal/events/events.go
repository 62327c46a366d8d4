// Package events demultiplexes inbound channel frames into typed,
// per-category streams so downstream consumers never see raw payloads.
package events

import (
	"encoding/json"
	"time"
)

// Frame types carried on the persistent channel.
const (
	TypeLocationUpdate = "location_update"
	TypeChatMessage    = "chat_message"
	TypeRideStatus     = "ride_status"
	TypeNotification   = "notification"
)

// Envelope is the tagged wire format: every inbound frame declares its type
// and carries an opaque payload decoded per type.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// LocationUpdate is a raw driver position fix as sent by the backend.
type LocationUpdate struct {
	RideID     string    `json:"rideId"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recordedAt"`
}

// ChatMessage is a rider/driver chat message.
type ChatMessage struct {
	ID     string    `json:"id"`
	RideID string    `json:"rideId"`
	Sender string    `json:"sender"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sentAt"`
}

// RideState is the lifecycle state of a booking.
type RideState string

const (
	RideRequested      RideState = "requested"
	RideDriverAssigned RideState = "driver_assigned"
	RideDriverArriving RideState = "driver_arriving"
	RideInProgress     RideState = "in_progress"
	RideCompleted      RideState = "completed"
	RideCancelled      RideState = "cancelled"
)

// RideStatusChange reports a booking transitioning between states.
type RideStatusChange struct {
	RideID    string    `json:"rideId"`
	Previous  RideState `json:"previous"`
	Current   RideState `json:"current"`
	Message   string    `json:"message,omitempty"`
	ChangedAt time.Time `json:"changedAt"`
}

// Notice is a generic server-pushed notification.
type Notice struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"createdAt"`
}
