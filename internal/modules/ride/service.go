// README: Ride lifecycle manager; validates transitions and persists them with CAS.
package ride

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"ridewire/internal/events"
	"ridewire/internal/types"
)

var (
	ErrNotFound          = errors.New("ride not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrConflict          = errors.New("ride state conflict")
	ErrActiveRide        = errors.New("party already has an active ride")
	ErrBadRequest        = errors.New("bad request")
	ErrDriverRequired    = errors.New("driver id required for assignment")
	ErrNotParty          = errors.New("caller is not a party to this ride")
)

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

type CreateCommand struct {
	CustomerID types.ID
	Pickup     Place
	Dropoff    Place
}

// Actor is the authenticated identity requesting a transition.
type Actor struct {
	ID   types.ID
	Role string
}

const (
	RoleCustomer = "customer"
	RoleDriver   = "driver"
	// RoleService marks trusted internal collaborators (dispatch, payment).
	RoleService = "service"
)

type TransitionCommand struct {
	RideID types.ID
	Target Status
	Actor  Actor
	// DriverID is required when Target is ASSIGNED and the actor is not the
	// driver taking the ride.
	DriverID *types.ID
	// Fare is accepted on COMPLETED/PAID and stored once; the pricing
	// collaborator supplies the value.
	Fare *types.Money
}

// Create persists a new ride in CREATED on behalf of the booking
// collaborator. One active ride per customer is enforced here and backed by
// a partial unique index in the store.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Ride, error) {
	if cmd.CustomerID == "" {
		return nil, ErrBadRequest
	}
	if !cmd.Pickup.Point.Valid() || !cmd.Dropoff.Point.Valid() {
		return nil, ErrBadRequest
	}
	if active, err := s.activeExists(ctx, cmd.CustomerID); err != nil {
		return nil, err
	} else if active {
		return nil, ErrActiveRide
	}

	r := &Ride{
		ID:         newID(),
		CustomerID: cmd.CustomerID,
		Status:     StatusCreated,
		Pickup:     cmd.Pickup,
		Dropoff:    cmd.Dropoff,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Transition validates that target is a legal successor of the ride's
// current status and applies it. On COMPLETED the ride.finished event is
// written to the outbox inside the same transaction, so payment capture can
// never miss a completed ride.
func (s *Service) Transition(ctx context.Context, cmd TransitionCommand) (*Ride, error) {
	r, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	if err := authorizeTransition(r, cmd.Actor); err != nil {
		return nil, err
	}
	if !CanTransition(r.Status, cmd.Target) {
		return nil, ErrInvalidTransition
	}

	driverID := cmd.DriverID
	if cmd.Target == StatusAssigned && driverID == nil {
		if cmd.Actor.Role == RoleDriver {
			id := cmd.Actor.ID
			driverID = &id
		} else {
			return nil, ErrDriverRequired
		}
	}

	t := Transition{
		ID:          r.ID,
		From:        r.Status,
		FromVersion: r.StatusVersion,
		To:          cmd.Target,
		DriverID:    driverID,
		Fare:        cmd.Fare,
	}
	if cmd.Target == StatusCompleted {
		// the outbox row id doubles as the event id so duplicate deliveries
		// are detectable downstream
		eventID := events.NewID()
		payload, err := json.Marshal(events.RideFinished{
			EventID:    eventID,
			RideID:     string(r.ID),
			CustomerID: string(r.CustomerID),
		})
		if err != nil {
			return nil, err
		}
		t.Outbox = &OutboxEvent{ID: eventID, Topic: events.TopicRideFinished, Payload: payload}
	}

	ok, err := s.store.ApplyTransition(ctx, t)
	if err != nil {
		return nil, err
	}
	if !ok {
		// someone else moved the ride first; the caller may re-read and retry
		return nil, ErrConflict
	}
	return s.store.Get(ctx, cmd.RideID)
}

// ActiveFor returns the ride where userID is the customer or the assigned
// driver and the status is active. Absence is a normal negative result.
func (s *Service) ActiveFor(ctx context.Context, userID types.ID) (*Ride, error) {
	return s.store.ActiveFor(ctx, userID)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Ride, error) {
	return s.store.Get(ctx, id)
}

// UpdateCurrentLocation mirrors the latest driver position into the ride
// record. Accepted only while the ride is in a moving state; outside those
// states the update is silently a no-op for the caller but reported here.
func (s *Service) UpdateCurrentLocation(ctx context.Context, id types.ID, pt types.Point) error {
	if !pt.Valid() {
		return ErrBadRequest
	}
	ok, err := s.store.SetCurrentLocation(ctx, id, pt)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// IsParty reports whether userID is the customer or assigned driver of r.
func (r *Ride) IsParty(userID types.ID) bool {
	if r.CustomerID == userID {
		return true
	}
	return r.DriverID != nil && *r.DriverID == userID
}

func authorizeTransition(r *Ride, a Actor) error {
	if a.Role == RoleService {
		return nil
	}
	// drivers may take an unassigned ride; once assigned only parties may act
	if r.DriverID == nil && a.Role == RoleDriver {
		return nil
	}
	if !r.IsParty(a.ID) {
		return ErrNotParty
	}
	return nil
}

func (s *Service) activeExists(ctx context.Context, userID types.ID) (bool, error) {
	_, err := s.store.ActiveFor(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func newID() types.ID {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return types.ID(hex.EncodeToString(b))
}
