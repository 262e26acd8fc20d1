// Package hub fans price updates out to WebSocket subscribers.
//
// One Hub per front-end process. Every update is marshaled once and offered
// to each matching client without blocking; a client that cannot keep up is
// disconnected rather than allowed to stall the broadcast loop.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/gamelinehq/marketfeed/internal/model"
)

const broadcastBuffer = 1024

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from arbitrary origins; access control is
	// the deployment's reverse proxy concern.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks connected clients and routes updates through their filters.
//
// Membership is mutex-guarded so ServeWS and dying read pumps can mutate it
// directly; delivery stays serialized on the Run goroutine. A client's send
// channel is only ever closed under the write lock, and only ever written
// under the read lock, so a disconnect cannot race a delivery.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool

	broadcast chan model.PriceUpdate

	totalConnections atomic.Int64
	totalMessages    atomic.Int64
	dropped          atomic.Int64

	wg sync.WaitGroup
}

// HubStats is the /stats payload.
type HubStats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	TotalMessages    int64 `json:"total_messages"`
	Dropped          int64 `json:"dropped"`
	BroadcastBacklog int   `json:"broadcast_backlog"`
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:    logger,
		clients:   make(map[*Client]struct{}),
		broadcast: make(chan model.PriceUpdate, broadcastBuffer),
	}
}

// Run delivers broadcasts until ctx is canceled, then closes every
// connection and waits for the pumps to exit.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("hub started")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			h.wg.Wait()
			h.logger.Info("hub stopped")
			return

		case update := <-h.broadcast:
			h.deliver(update)
		}
	}
}

// Broadcast offers an update to the hub without blocking. Updates are
// last-value-wins; when the loop is backed up the dropped frame is already
// moments stale.
func (h *Hub) Broadcast(update model.PriceUpdate) {
	select {
	case h.broadcast <- update:
	default:
		h.dropped.Add(1)
	}
}

// Unregister removes a client and closes its send channel. Safe from any
// goroutine; duplicate calls are no-ops.
func (h *Hub) Unregister(c *Client) {
	h.removeClient(c)
}

// ServeWS upgrades the request and registers the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	c := newClient(conn, h)
	if !h.addClient(c) {
		// Hub is shutting down.
		conn.Close()
		return
	}

	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump()
	}()
}

func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	active := len(h.clients)
	h.mu.RUnlock()

	return HubStats{
		ActiveClients:    active,
		TotalConnections: h.totalConnections.Load(),
		TotalMessages:    h.totalMessages.Load(),
		Dropped:          h.dropped.Load(),
		BroadcastBacklog: len(h.broadcast),
	}
}

func (h *Hub) addClient(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	// Pump accounting happens under the same lock as closed, so shutdown's
	// Wait observes every pump it must wait for.
	h.wg.Add(2)
	h.totalConnections.Add(1)
	c.logger.Info("client connected", "active", len(h.clients))
	return true
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	c.logger.Info("client disconnected", "active", len(h.clients))
}

// deliver marshals once and fans out through each client's filter.
func (h *Hub) deliver(update model.PriceUpdate) {
	h.mu.RLock()
	empty := len(h.clients) == 0
	h.mu.RUnlock()
	if empty {
		return
	}

	data, err := json.Marshal(update)
	if err != nil {
		h.logger.Error("marshaling price update", "error", err)
		return
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.clients {
		if !c.wants(update.GameID) {
			continue
		}
		if c.trySend(data) {
			h.totalMessages.Add(1)
			continue
		}
		slow = append(slow, c)
	}
	h.mu.RUnlock()

	for _, c := range slow {
		c.logger.Warn("client send buffer full, disconnecting")
		h.removeClient(c)
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}
