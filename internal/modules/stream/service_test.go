// README: Location fan-out service tests with in-memory collaborators.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"ridewire/internal/events"
	"ridewire/internal/types"
)

type fakeGeo struct {
	mu      sync.Mutex
	upserts map[types.ID]types.Point
	err     error
}

func newFakeGeo() *fakeGeo { return &fakeGeo{upserts: make(map[types.ID]types.Point)} }

func (g *fakeGeo) Upsert(_ context.Context, driverID types.ID, pt types.Point) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.upserts[driverID] = pt
	return nil
}

func (g *fakeGeo) position(driverID types.ID) (types.Point, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	pt, ok := g.upserts[driverID]
	return pt, ok
}

type fakeRideLocations struct {
	mu      sync.Mutex
	updates map[types.ID]types.Point
	err     error
}

func newFakeRideLocations() *fakeRideLocations {
	return &fakeRideLocations{updates: make(map[types.ID]types.Point)}
}

func (f *fakeRideLocations) UpdateCurrentLocation(_ context.Context, id types.ID, pt types.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.updates[id] = pt
	return nil
}

type captureBus struct {
	mu         sync.Mutex
	bestEffort []events.Event
	durable    []events.Event
	durableErr error
}

func (b *captureBus) PublishBestEffort(_ context.Context, e events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bestEffort = append(b.bestEffort, e)
	return nil
}

func (b *captureBus) PublishDurable(_ context.Context, e events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.durableErr != nil {
		return b.durableErr
	}
	b.durable = append(b.durable, e)
	return nil
}

func newTestService(geo *fakeGeo, rides *fakeRideLocations, bus *captureBus) *Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(NewHub(), geo, rides, bus, log)
}

func TestPublishLocationFansOut(t *testing.T) {
	geo := newFakeGeo()
	rides := newFakeRideLocations()
	bus := &captureBus{}
	svc := newTestService(geo, rides, bus)

	sub := testClient("customer1")
	svc.Hub().Subscribe(sub, "ride1")

	pt := types.Point{Lat: 10.77, Lng: 106.7}
	if err := svc.PublishLocation(context.Background(), "driver1", "ride1", pt); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// geo index updated
	if got, ok := geo.position("driver1"); !ok || got != pt {
		t.Fatalf("geo position = %v %v", got, ok)
	}
	// ride record mirrored
	if got := rides.updates["ride1"]; got != pt {
		t.Fatalf("ride mirror = %v", got)
	}

	// subscriber received a driver_location envelope
	msgs := drain(t, sub)
	if len(msgs) != 1 {
		t.Fatalf("subscriber messages = %d, want 1", len(msgs))
	}
	var env Envelope
	if err := json.Unmarshal(msgs[0], &env); err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if env.Type != TypeDriverLocation {
		t.Fatalf("type = %s", env.Type)
	}
	var loc DriverLocation
	if err := json.Unmarshal(env.Data, &loc); err != nil {
		t.Fatalf("data: %v", err)
	}
	if loc.DriverID != "driver1" || loc.Lat != pt.Lat || loc.Lng != pt.Lng {
		t.Fatalf("payload = %+v", loc)
	}

	// best-effort bus event carried the same sample
	if len(bus.bestEffort) != 1 {
		t.Fatalf("bus events = %d, want 1", len(bus.bestEffort))
	}
	e := bus.bestEffort[0]
	if e.Topic != events.TopicLocationUpdated {
		t.Fatalf("topic = %s", e.Topic)
	}
	payload, ok := e.Payload.(events.LocationUpdated)
	if !ok {
		t.Fatalf("payload type %T", e.Payload)
	}
	if payload.RideID != "ride1" || payload.DriverID != "driver1" || payload.Timestamp == 0 {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestPublishLocationRejectsOutOfRange(t *testing.T) {
	geo := newFakeGeo()
	rides := newFakeRideLocations()
	bus := &captureBus{}
	svc := newTestService(geo, rides, bus)

	sub := testClient("customer1")
	svc.Hub().Subscribe(sub, "ride1")

	for _, pt := range []types.Point{{Lat: 91, Lng: 0}, {Lat: 0, Lng: 181}, {Lat: -95, Lng: -200}} {
		if err := svc.PublishLocation(context.Background(), "driver1", "ride1", pt); !errors.Is(err, ErrInvalidLocation) {
			t.Fatalf("point %v: expected ErrInvalidLocation, got %v", pt, err)
		}
	}

	// nothing observable happened
	if _, ok := geo.position("driver1"); ok {
		t.Fatal("geo mutated by rejected sample")
	}
	if len(rides.updates) != 0 {
		t.Fatal("ride record mutated by rejected sample")
	}
	if msgs := drain(t, sub); len(msgs) != 0 {
		t.Fatalf("subscriber received %d messages from rejected samples", len(msgs))
	}
	if len(bus.bestEffort) != 0 {
		t.Fatal("bus event published for rejected sample")
	}
}

func TestPublishLocationSideEffectsAreIsolated(t *testing.T) {
	geo := newFakeGeo()
	geo.err = errors.New("redis down")
	rides := newFakeRideLocations()
	rides.err = errors.New("ride not in a moving state")
	bus := &captureBus{}
	svc := newTestService(geo, rides, bus)

	sub := testClient("customer1")
	svc.Hub().Subscribe(sub, "ride1")

	pt := types.Point{Lat: 10.77, Lng: 106.7}
	if err := svc.PublishLocation(context.Background(), "driver1", "ride1", pt); err != nil {
		t.Fatalf("publish with failing geo: %v", err)
	}

	// broadcast and bus event still went out
	if msgs := drain(t, sub); len(msgs) != 1 {
		t.Fatalf("subscriber messages = %d, want 1", len(msgs))
	}
	if len(bus.bestEffort) != 1 {
		t.Fatalf("bus events = %d, want 1", len(bus.bestEffort))
	}
}

func TestRaiseSOSPublishesDurably(t *testing.T) {
	bus := &captureBus{}
	svc := newTestService(newFakeGeo(), newFakeRideLocations(), bus)

	if err := svc.RaiseSOS(context.Background(), "ride1", "customer1"); err != nil {
		t.Fatalf("sos: %v", err)
	}
	if len(bus.durable) != 1 {
		t.Fatalf("durable events = %d, want 1", len(bus.durable))
	}
	e := bus.durable[0]
	if e.Topic != events.TopicRideSOS {
		t.Fatalf("topic = %s", e.Topic)
	}
	payload, ok := e.Payload.(events.RideSOS)
	if !ok {
		t.Fatalf("payload type %T", e.Payload)
	}
	if payload.RideID != "ride1" || payload.UserID != "customer1" || payload.Type != events.SOSTypeEmergency {
		t.Fatalf("payload = %+v", payload)
	}
	if payload.EventID == "" || payload.EventID != e.ID {
		t.Fatalf("event id mismatch: %s vs %s", payload.EventID, e.ID)
	}
}

func TestRaiseSOSSurfacesBrokerFailure(t *testing.T) {
	bus := &captureBus{durableErr: errors.New("broker unavailable")}
	svc := newTestService(newFakeGeo(), newFakeRideLocations(), bus)

	if err := svc.RaiseSOS(context.Background(), "ride1", "customer1"); err == nil {
		t.Fatal("expected error when the broker rejects the event")
	}
}
