// README: Ride control-surface handlers.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridewire/internal/http/middleware"
	"ridewire/internal/modules/ride"
	"ridewire/internal/modules/stream"
	"ridewire/internal/types"
)

// TravelEstimator enriches the route projection with an ETA when a routing
// backend is configured.
type TravelEstimator interface {
	Estimate(ctx context.Context, origin, destination types.Point) (time.Duration, string, error)
}

type RideHandler struct {
	rides  *ride.Service
	stream *stream.Service
	routes TravelEstimator // nil when no maps key is configured
}

func NewRideHandler(rides *ride.Service, streamSvc *stream.Service, routes TravelEstimator) *RideHandler {
	return &RideHandler{rides: rides, stream: streamSvc, routes: routes}
}

type placeRequest struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

type createRideRequest struct {
	Pickup  placeRequest `json:"pickup"`
	Dropoff placeRequest `json:"dropoff"`
}

type rideResponse struct {
	ID         string       `json:"id"`
	CustomerID string       `json:"customerId"`
	DriverID   *string      `json:"driverId,omitempty"`
	Status     string       `json:"status"`
	Pickup     placeRequest `json:"pickup"`
	Dropoff    placeRequest `json:"dropoff"`
	Current    *types.Point `json:"currentLocation,omitempty"`
	Fare       *types.Money `json:"fare,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
}

func toRideResponse(r *ride.Ride) rideResponse {
	resp := rideResponse{
		ID:         string(r.ID),
		CustomerID: string(r.CustomerID),
		Status:     string(r.Status),
		Pickup:     placeRequest{Lat: r.Pickup.Point.Lat, Lng: r.Pickup.Point.Lng, Address: r.Pickup.Address},
		Dropoff:    placeRequest{Lat: r.Dropoff.Point.Lat, Lng: r.Dropoff.Point.Lng, Address: r.Dropoff.Address},
		Current:    r.Current,
		Fare:       r.Fare,
		CreatedAt:  r.CreatedAt,
	}
	if r.DriverID != nil {
		d := string(*r.DriverID)
		resp.DriverID = &d
	}
	return resp
}

// Create handles POST /rides for the booking collaborator.
func (h *RideHandler) Create(c *gin.Context) {
	var req createRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid body")
		return
	}
	caller := middleware.Caller(c)
	r, err := h.rides.Create(c.Request.Context(), ride.CreateCommand{
		CustomerID: types.ID(caller.ID),
		Pickup:     ride.Place{Point: types.Point{Lat: req.Pickup.Lat, Lng: req.Pickup.Lng}, Address: req.Pickup.Address},
		Dropoff:    ride.Place{Point: types.Point{Lat: req.Dropoff.Lat, Lng: req.Dropoff.Lng}, Address: req.Dropoff.Address},
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRideResponse(r))
}

// Active handles GET /rides/active. No active ride is a 404, not an error.
func (h *RideHandler) Active(c *gin.Context) {
	caller := middleware.Caller(c)
	r, err := h.rides.ActiveFor(c.Request.Context(), types.ID(caller.ID))
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRideResponse(r))
}

// Get handles GET /rides/:rideId (and its /tracking alias).
func (h *RideHandler) Get(c *gin.Context) {
	id := c.Param("rideId")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid ride id")
		return
	}
	r, err := h.rides.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRideResponse(r))
}

type routeResponse struct {
	RideID   string       `json:"rideId"`
	Pickup   placeRequest `json:"pickup"`
	Dropoff  placeRequest `json:"dropoff"`
	Current  *types.Point `json:"currentLocation,omitempty"`
	Distance string       `json:"distance,omitempty"`
	ETA      string       `json:"eta,omitempty"`
}

// Route handles GET /rides/:rideId/route, the pickup/dropoff projection,
// with an ETA when the routing backend is available.
func (h *RideHandler) Route(c *gin.Context) {
	id := c.Param("rideId")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid ride id")
		return
	}
	r, err := h.rides.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeRideError(c, err)
		return
	}
	resp := routeResponse{
		RideID:  string(r.ID),
		Pickup:  placeRequest{Lat: r.Pickup.Point.Lat, Lng: r.Pickup.Point.Lng, Address: r.Pickup.Address},
		Dropoff: placeRequest{Lat: r.Dropoff.Point.Lat, Lng: r.Dropoff.Point.Lng, Address: r.Dropoff.Address},
		Current: r.Current,
	}
	if h.routes != nil {
		if eta, dist, err := h.routes.Estimate(c.Request.Context(), r.Pickup.Point, r.Dropoff.Point); err == nil {
			resp.ETA = eta.String()
			resp.Distance = dist
		}
	}
	c.JSON(http.StatusOK, resp)
}

type statusRequest struct {
	Status string       `json:"status"`
	Fare   *types.Money `json:"fare,omitempty"`
}

// UpdateStatus handles PUT /rides/:rideId/status.
func (h *RideHandler) UpdateStatus(c *gin.Context) {
	id := c.Param("rideId")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid ride id")
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		writeError(c, http.StatusBadRequest, "invalid body")
		return
	}
	caller := middleware.Caller(c)
	r, err := h.rides.Transition(c.Request.Context(), ride.TransitionCommand{
		RideID: types.ID(id),
		Target: ride.Status(req.Status),
		Actor:  ride.Actor{ID: types.ID(caller.ID), Role: caller.Role},
		Fare:   req.Fare,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRideResponse(r))
}

type locationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// UpdateLocation handles PUT /rides/:rideId/location, the non-streaming
// fallback for clients that cannot hold a socket open.
func (h *RideHandler) UpdateLocation(c *gin.Context) {
	id := c.Param("rideId")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid ride id")
		return
	}
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid body")
		return
	}
	caller := middleware.Caller(c)
	r, err := h.rides.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeRideError(c, err)
		return
	}
	// only the assigned driver may move the ride
	if r.DriverID == nil || *r.DriverID != types.ID(caller.ID) {
		writeRideError(c, ride.ErrNotParty)
		return
	}
	err = h.stream.PublishLocation(c.Request.Context(), types.ID(caller.ID), types.ID(id), types.Point{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "location updated"})
}

// SOS handles POST /rides/:rideId/sos. The 200 is withheld until the event
// bus has acknowledged the event.
func (h *RideHandler) SOS(c *gin.Context) {
	id := c.Param("rideId")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid ride id")
		return
	}
	caller := middleware.Caller(c)
	if err := h.stream.RaiseSOS(c.Request.Context(), types.ID(id), types.ID(caller.ID)); err != nil {
		writeUpstreamError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "SOS sent"})
}
