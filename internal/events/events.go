// README: Event bus contract; the delivery guarantee is part of the API.
package events

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

// Topics produced by this service.
const (
	TopicLocationUpdated = "driver.location.updated" // best-effort
	TopicRideFinished    = "ride.finished"           // at-least-once
	TopicRideSOS         = "ride.sos"                // at-least-once
)

// Event is one message bound for the bus. ID travels with the payload so
// consumers of at-least-once topics can deduplicate.
type Event struct {
	ID      string
	Topic   string
	Payload any
}

// Publisher publishes events with an explicit delivery guarantee.
//
// PublishBestEffort may drop the event under transient broker failure;
// superseding data arrives shortly after, so staleness beats queueing.
// PublishDurable returns only after the broker has confirmed the message,
// retrying with backoff, and errors only once retries are exhausted.
type Publisher interface {
	PublishBestEffort(ctx context.Context, e Event) error
	PublishDurable(ctx context.Context, e Event) error
}

// LocationUpdated is the driver.location.updated payload.
type LocationUpdated struct {
	RideID    string  `json:"rideId"`
	DriverID  string  `json:"driverId"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Timestamp int64   `json:"timestamp"` // unix milliseconds
}

// RideFinished is the ride.finished payload consumed by payment capture.
type RideFinished struct {
	EventID    string `json:"eventId"`
	RideID     string `json:"rideId"`
	CustomerID string `json:"customerId"`
}

// RideSOS is the ride.sos payload.
type RideSOS struct {
	EventID string `json:"eventId"`
	RideID  string `json:"rideId"`
	UserID  string `json:"userId"`
	Type    string `json:"type"`
}

const SOSTypeEmergency = "EMERGENCY"

// NewID returns a random 32-char hex identifier for events and outbox rows.
// Consumer dedup on the at-least-once topics relies on these never colliding.
func NewID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
