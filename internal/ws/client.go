package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Control frames only come from clients, so a small limit suffices.
	maxMessageSize = 4 * 1024
)

// Room control messages understood by the read pump.
const (
	joinRoomType  = "joinTicketRoom"
	leaveRoomType = "leaveTicketRoom"
)

// controlMessage is the shape of inbound client frames.
type controlMessage struct {
	Type     string `json:"type"`
	TicketID string `json:"ticketId"`
}

// Client is one websocket connection. It holds no domain state; room
// membership lives in the hub.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	id   string
	log  zerolog.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, id string, log zerolog.Logger) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, 64),
		hub:  hub,
		id:   id,
		log:  log.With().Str("ws_client_id", id).Logger(),
	}
}

// readPump consumes room control messages until the connection drops, then
// unregisters the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}
		c.handleControl(raw)
	}
}

func (c *Client) handleControl(raw []byte) {
	var msg controlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.log.Debug().Err(err).Msg("malformed control message")
		return
	}
	if msg.TicketID == "" {
		return
	}
	switch msg.Type {
	case joinRoomType:
		c.hub.join <- subscription{client: c, ticketID: msg.TicketID}
	case leaveRoomType:
		c.hub.leave <- subscription{client: c, ticketID: msg.TicketID}
	default:
		c.log.Debug().Str("type", msg.Type).Msg("unknown control message")
	}
}

// writePump forwards hub broadcasts to the connection and keeps it alive
// with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
