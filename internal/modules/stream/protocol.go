// README: Wire envelope and message payloads for the streaming protocol.
package stream

import "encoding/json"

// Envelope frames every message on the socket in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Client → server message types.
const (
	TypeSubscribeRide  = "subscribe_ride"
	TypeLocationUpdate = "location_update"
)

// Server → client message types.
const (
	TypeDriverLocation = "driver_location"
	TypeError          = "error"
)

type SubscribeRide struct {
	RideID string `json:"rideId"`
}

type LocationUpdate struct {
	RideID   string  `json:"rideId"`
	DriverID string  `json:"driverId"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

type DriverLocation struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	DriverID string  `json:"driverId"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}

func mustEnvelope(typ string, data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		panic(err)
	}
	out, err := json.Marshal(Envelope{Type: typ, Data: raw})
	if err != nil {
		panic(err)
	}
	return out
}
