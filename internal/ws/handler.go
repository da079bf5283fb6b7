package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser origin checks are delegated to the CORS layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades HTTP requests to websocket connections and attaches them
// to the hub.
type Handler struct {
	hub *Hub
	log zerolog.Logger
}

// NewHandler creates a websocket handler backed by hub.
func NewHandler(hub *Hub, log zerolog.Logger) *Handler {
	return &Handler{hub: hub, log: log}
}

// Serve is the gin handler for the websocket endpoint.
func (h *Handler) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newClient(h.hub, conn, uuid.NewString(), h.log)
	h.hub.register <- client

	go client.writePump()
	go client.readPump()

	h.log.Debug().Str("ws_client_id", client.id).Msg("websocket client connected")
}
