// README: Shared handler utilities; error-to-status mapping.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridewire/internal/modules/ride"
	"ridewire/internal/modules/stream"
)

type errorResponse struct {
	Error string `json:"error"`
	Retry bool   `json:"retry,omitempty"`
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, errorResponse{Error: msg})
}

// writeRideError maps domain errors onto the HTTP taxonomy: precise 4xx for
// invalid input and transitions, 404 for absence, 409 for lost races, and
// 5xx only for genuine upstream trouble.
func writeRideError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ride.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ride.ErrInvalidTransition):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, ride.ErrActiveRide), errors.Is(err, ride.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, ride.ErrBadRequest), errors.Is(err, ride.ErrDriverRequired):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, stream.ErrInvalidLocation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ride.ErrNotParty):
		writeError(c, http.StatusForbidden, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// writeUpstreamError reports a durable-path delivery failure with retry
// guidance.
func writeUpstreamError(c *gin.Context) {
	c.JSON(http.StatusBadGateway, errorResponse{Error: "event bus unavailable, retry later", Retry: true})
}

// isValidID keeps path ids to the shapes the id generator and upstream
// services produce.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, ch := range v {
		if (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch == '-' {
			continue
		}
		return false
	}
	return true
}
