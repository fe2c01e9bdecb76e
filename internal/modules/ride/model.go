// README: Ride aggregate and lifecycle status definitions.
package ride

import (
	"time"

	"ridewire/internal/types"
)

type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusMatching   Status = "MATCHING"
	StatusAssigned   Status = "ASSIGNED"
	StatusPickup     Status = "PICKUP"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusPaid       Status = "PAID"
	StatusCancelled  Status = "CANCELLED"
)

// Place is a coordinate plus the free-text address shown to riders.
type Place struct {
	Point   types.Point `json:"point"`
	Address string      `json:"address"`
}

type Ride struct {
	ID            types.ID
	CustomerID    types.ID
	DriverID      *types.ID
	Status        Status
	StatusVersion int
	Pickup        Place
	Dropoff       Place
	Current       *types.Point
	Fare          *types.Money
	CreatedAt     time.Time
}

// AllowedTransitions represents the ride state flow as code. CANCELLED is
// reachable from every non-terminal state; PAID and CANCELLED are terminal.
var AllowedTransitions = map[Status][]Status{
	StatusCreated:    {StatusMatching, StatusCancelled},
	StatusMatching:   {StatusAssigned, StatusCancelled},
	StatusAssigned:   {StatusPickup, StatusCancelled},
	StatusPickup:     {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {StatusPaid, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ActiveStatuses are the states during which a ride occupies its customer
// and driver; the store enforces at most one such ride per party.
var ActiveStatuses = []Status{StatusMatching, StatusAssigned, StatusPickup, StatusInProgress}

func (s Status) Active() bool {
	for _, a := range ActiveStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// AcceptsLocation reports whether driver position updates are accepted in
// this state.
func (s Status) AcceptsLocation() bool {
	return s == StatusAssigned || s == StatusPickup || s == StatusInProgress
}

func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// HasDriver reports whether the status implies an assigned driver.
func (s Status) HasDriver() bool {
	switch s {
	case StatusAssigned, StatusPickup, StatusInProgress, StatusCompleted, StatusPaid:
		return true
	}
	return false
}
