// README: HTTP router registration.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridewire/internal/http/handlers"
	"ridewire/internal/http/middleware"
	"ridewire/internal/infra"
	"ridewire/internal/modules/ride"
	"ridewire/internal/modules/stream"
)

type RouterDeps struct {
	Rides    *ride.Service
	Stream   *stream.Service
	Verifier infra.TokenVerifier
	Routes   handlers.TravelEstimator // optional
	Log      *slog.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	rideHandler := handlers.NewRideHandler(deps.Rides, deps.Stream, deps.Routes)
	wsHandler := handlers.NewWSHandler(deps.Rides, deps.Stream, deps.Log)

	api := r.Group("/api/v1", middleware.Auth(deps.Verifier))
	api.POST("/rides", rideHandler.Create)
	api.GET("/rides/active", rideHandler.Active)
	api.GET("/rides/:rideId", rideHandler.Get)
	api.GET("/rides/:rideId/route", rideHandler.Route)
	api.GET("/rides/:rideId/tracking", rideHandler.Get)
	api.PUT("/rides/:rideId/status", rideHandler.UpdateStatus)
	api.PUT("/rides/:rideId/location", rideHandler.UpdateLocation)
	api.POST("/rides/:rideId/sos", rideHandler.SOS)
	api.GET("/ws", wsHandler.Serve)

	return r
}
