// README: WebSocket entry point; upgrades, authorizes and pumps messages.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"ridewire/internal/http/middleware"
	"ridewire/internal/modules/ride"
	"ridewire/internal/modules/stream"
	"ridewire/internal/types"
)

const wsPongWait = 60 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type WSHandler struct {
	rides  *ride.Service
	stream *stream.Service
	log    *slog.Logger
}

func NewWSHandler(rides *ride.Service, streamSvc *stream.Service, log *slog.Logger) *WSHandler {
	return &WSHandler{rides: rides, stream: streamSvc, log: log}
}

// Serve handles GET /ws. The caller is already authenticated by the HTTP
// middleware; this loop only decides what each identity may do per message.
func (h *WSHandler) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response
		return
	}
	caller := middleware.Caller(c)
	client := stream.NewClient(conn, types.ID(caller.ID), caller.Role)
	hub := h.stream.Hub()

	go client.WritePump()
	defer hub.Drop(client)

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env stream.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.sendError(client, "malformed message")
			continue
		}
		switch env.Type {
		case stream.TypeSubscribeRide:
			h.handleSubscribe(c, client, env.Data)
		case stream.TypeLocationUpdate:
			h.handleLocationUpdate(c, client, env.Data)
		default:
			h.sendError(client, "unknown message type")
		}
	}
}

// handleSubscribe admits the client to a ride's subscriber group only when
// it is a party to that ride; location data is not public.
func (h *WSHandler) handleSubscribe(c *gin.Context, client *stream.Client, data json.RawMessage) {
	var msg stream.SubscribeRide
	if err := json.Unmarshal(data, &msg); err != nil || msg.RideID == "" {
		h.sendError(client, "invalid subscribe_ride payload")
		return
	}
	r, err := h.rides.Get(c.Request.Context(), types.ID(msg.RideID))
	if err != nil {
		h.sendError(client, "ride not found")
		return
	}
	if !r.IsParty(client.UserID) {
		h.sendError(client, "not a party to this ride")
		return
	}
	h.stream.Hub().Subscribe(client, r.ID)
}

func (h *WSHandler) handleLocationUpdate(c *gin.Context, client *stream.Client, data json.RawMessage) {
	var msg stream.LocationUpdate
	if err := json.Unmarshal(data, &msg); err != nil || msg.RideID == "" {
		h.sendError(client, "invalid location_update payload")
		return
	}
	// drivers publish their own position only
	if types.ID(msg.DriverID) != client.UserID {
		h.sendError(client, "driver id does not match connection")
		return
	}
	r, err := h.rides.Get(c.Request.Context(), types.ID(msg.RideID))
	if err != nil {
		h.sendError(client, "ride not found")
		return
	}
	if r.DriverID == nil || *r.DriverID != client.UserID {
		h.sendError(client, "not the assigned driver")
		return
	}
	err = h.stream.PublishLocation(c.Request.Context(), client.UserID, types.ID(msg.RideID), types.Point{Lat: msg.Lat, Lng: msg.Lng})
	if err != nil {
		h.sendError(client, err.Error())
	}
}

func (h *WSHandler) sendError(client *stream.Client, msg string) {
	raw, err := json.Marshal(stream.ErrorMessage{Message: msg})
	if err != nil {
		return
	}
	env, err := json.Marshal(stream.Envelope{Type: stream.TypeError, Data: raw})
	if err != nil {
		return
	}
	if !client.TrySend(env) {
		h.log.Debug("error message dropped, client backlogged")
	}
}
