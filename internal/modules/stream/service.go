// README: Session-hub service; location fan-out side effects and SOS.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ridewire/internal/events"
	"ridewire/internal/types"
)

var ErrInvalidLocation = errors.New("coordinates out of range")

// GeoWriter is the geospatial store's write side.
type GeoWriter interface {
	Upsert(ctx context.Context, driverID types.ID, pt types.Point) error
}

// RideLocations mirrors the latest sample into the ride record.
type RideLocations interface {
	UpdateCurrentLocation(ctx context.Context, id types.ID, pt types.Point) error
}

type Service struct {
	hub   *Hub
	geo   GeoWriter
	rides RideLocations
	bus   events.Publisher
	log   *slog.Logger
}

func NewService(hub *Hub, geo GeoWriter, rides RideLocations, bus events.Publisher, log *slog.Logger) *Service {
	return &Service{hub: hub, geo: geo, rides: rides, bus: bus, log: log}
}

func (s *Service) Hub() *Hub {
	return s.hub
}

// PublishLocation fans one driver sample out. A failure in the geo upsert
// or the ride mirror never blocks the broadcast or the bus event. Broadcast
// and the bus event are best-effort; the next sample supersedes a dropped
// one.
func (s *Service) PublishLocation(ctx context.Context, driverID, rideID types.ID, pt types.Point) error {
	if !pt.Valid() {
		return ErrInvalidLocation
	}
	now := time.Now()

	if err := s.geo.Upsert(ctx, driverID, pt); err != nil {
		s.log.Warn("geo upsert failed", "driver", driverID, "error", err)
	}
	if s.rides != nil {
		if err := s.rides.UpdateCurrentLocation(ctx, rideID, pt); err != nil {
			// the ride may not be in a moving state; nothing to do here
			s.log.Debug("ride location mirror skipped", "ride", rideID, "error", err)
		}
	}

	s.hub.Broadcast(rideID, mustEnvelope(TypeDriverLocation, DriverLocation{
		Lat:      pt.Lat,
		Lng:      pt.Lng,
		DriverID: string(driverID),
	}))

	_ = s.bus.PublishBestEffort(ctx, events.Event{
		ID:    events.NewID(),
		Topic: events.TopicLocationUpdated,
		Payload: events.LocationUpdated{
			RideID:    string(rideID),
			DriverID:  string(driverID),
			Lat:       pt.Lat,
			Lng:       pt.Lng,
			Timestamp: now.UnixMilli(),
		},
	})
	return nil
}

// RaiseSOS publishes the safety-critical event. The call does not succeed
// until the broker has confirmed delivery.
func (s *Service) RaiseSOS(ctx context.Context, rideID, userID types.ID) error {
	eventID := events.NewID()
	return s.bus.PublishDurable(ctx, events.Event{
		ID:    eventID,
		Topic: events.TopicRideSOS,
		Payload: events.RideSOS{
			EventID: eventID,
			RideID:  string(rideID),
			UserID:  string(userID),
			Type:    events.SOSTypeEmergency,
		},
	})
}
