package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Ping period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Client frames are filter commands, never bulk data.
	maxMessageSize = 512

	sendBufferSize = 256
)

// clientCommand is the only frame clients send: a filter mutation.
// An empty filter receives every game.
type clientCommand struct {
	Action  string      `json:"action"`
	GameIDs []uuid.UUID `json:"game_ids"`
}

// Client is one subscriber connection. The hub delivers pre-marshaled
// updates through send; writePump owns all writes to the conn.
type Client struct {
	id     uuid.UUID
	conn   *websocket.Conn
	hub    *Hub
	logger *slog.Logger

	send chan []byte

	mu    sync.RWMutex
	games map[uuid.UUID]struct{}
}

func newClient(conn *websocket.Conn, h *Hub) *Client {
	id := uuid.New()
	return &Client{
		id:     id,
		conn:   conn,
		hub:    h,
		logger: h.logger.With("client_id", id),
		send:   make(chan []byte, sendBufferSize),
		games:  make(map[uuid.UUID]struct{}),
	}
}

// wants reports whether updates for gameID pass the client's filter.
func (c *Client) wants(gameID uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.games) == 0 {
		return true
	}
	_, ok := c.games[gameID]
	return ok
}

// trySend queues an update without blocking. A false return means the
// client is not draining its buffer.
func (c *Client) trySend(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// readPump consumes filter commands until the connection drops. It owns
// the read side: deadlines, pong handling, unregistration on exit.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("client read failed", "error", err)
			}
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.logger.Warn("dropping malformed client command", "error", err)
			continue
		}
		c.apply(cmd)
	}
}

func (c *Client) apply(cmd clientCommand) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch cmd.Action {
	case "subscribe":
		for _, id := range cmd.GameIDs {
			c.games[id] = struct{}{}
		}
		c.logger.Debug("client filter updated", "games", len(c.games))
	case "unsubscribe":
		for _, id := range cmd.GameIDs {
			delete(c.games, id)
		}
		c.logger.Debug("client filter updated", "games", len(c.games))
	default:
		c.logger.Warn("ignoring unknown client action", "action", cmd.Action)
	}
}

// writePump drains send onto the connection and keeps the peer alive with
// pings. The hub closing send is the shutdown signal.
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
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn("client write failed", "error", err)
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
