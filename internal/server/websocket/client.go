package websocket

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentstation/fleetmap/pkg/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10 // must stay below pongWait
	maxMessageSize = 512
	sendBuffer     = 256
)

// Message is the JSON frame written for every event.
type Message struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

func frame(e events.Event) Message {
	return Message{Type: string(e.Type), Timestamp: e.Timestamp, Data: e.Data}
}

// Client is one WebSocket connection and its subscription.
type Client struct {
	id    string
	hub   *Hub
	conn  *websocket.Conn
	match events.Match
	send  chan events.Event
}

// NewClient creates a client that receives the events selected by match.
func NewClient(id string, hub *Hub, conn *websocket.Conn, match events.Match) *Client {
	return &Client{
		id:    id,
		hub:   hub,
		conn:  conn,
		match: match,
		send:  make(chan events.Event, sendBuffer),
	}
}

// ID returns the client identifier.
func (c *Client) ID() string {
	return c.id
}

// Match returns the client's subscription.
func (c *Client) Match() events.Match {
	return c.match
}

// ReadPump drains the connection so control frames are handled, and
// leaves the hub when the peer goes away. The stream is one-way; payloads
// sent by the peer are ignored.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.leave(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn().Err(err).Str("client_id", c.id).Msg("WebSocket read failed")
			}
			return
		}
	}
}

// WritePump writes queued events as JSON frames and pings the peer until
// the hub closes the send channel or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case e, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame(e)); err != nil {
				c.hub.logger.Debug().Err(err).Str("client_id", c.id).Msg("WebSocket write failed")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
