package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gamelinehq/marketfeed/internal/model"
)

// setupHub runs a Hub behind a live HTTP server and tears both down in
// order: stop the hub first so every ws conn is closed, then the server.
func setupHub(t *testing.T) (*Hub, string) {
	t.Helper()

	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Error("hub did not stop")
		}
		srv.Close()
	})

	return h, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func update(gameID uuid.UUID) model.PriceUpdate {
	return model.PriceUpdate{
		GameID:     gameID,
		Ticker:     "KXNBAGAME-26FEB05CHAHOU-CHA",
		Away:       model.PriceSide{Bid: 55, Ask: 57},
		Home:       model.PriceSide{Bid: 43, Ask: 45},
		ExchangeTS: 1760000000,
	}
}

func readUpdate(t *testing.T, conn *websocket.Conn) model.PriceUpdate {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading update: %v", err)
	}
	var u model.PriceUpdate
	if err := json.Unmarshal(data, &u); err != nil {
		t.Fatalf("unmarshaling update: %v", err)
	}
	return u
}

func sendCommand(t *testing.T, conn *websocket.Conn, action string, gameIDs ...uuid.UUID) {
	t.Helper()
	if err := conn.WriteJSON(clientCommand{Action: action, GameIDs: gameIDs}); err != nil {
		t.Fatalf("sending %s: %v", action, err)
	}
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// filterApplied reports whether some connected client's filter includes
// gameID.
func (h *Hub) filterApplied(gameID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.mu.RLock()
		_, ok := c.games[gameID]
		c.mu.RUnlock()
		if ok {
			return true
		}
	}
	return false
}

func TestHubBroadcastsToAllWithoutFilters(t *testing.T) {
	h, url := setupHub(t)

	conn1 := dial(t, url)
	conn2 := dial(t, url)
	waitUntil(t, "both clients registered", func() bool { return h.clientCount() == 2 })

	gameID := uuid.New()
	h.Broadcast(update(gameID))

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		got := readUpdate(t, conn)
		if got.GameID != gameID {
			t.Errorf("GameID = %s, want %s", got.GameID, gameID)
		}
		if got.Away.Bid != 55 || got.Home.Bid != 43 {
			t.Errorf("prices = away %d / home %d, want 55/43", got.Away.Bid, got.Home.Bid)
		}
	}
}

func TestHubFiltersByGame(t *testing.T) {
	h, url := setupHub(t)

	conn := dial(t, url)
	waitUntil(t, "client registered", func() bool { return h.clientCount() == 1 })

	wantGame := uuid.New()
	otherGame := uuid.New()
	sendCommand(t, conn, "subscribe", wantGame)
	waitUntil(t, "filter applied", func() bool { return h.filterApplied(wantGame) })

	h.Broadcast(update(otherGame))
	h.Broadcast(update(wantGame))

	got := readUpdate(t, conn)
	if got.GameID != wantGame {
		t.Errorf("first delivered GameID = %s, want %s (filtered game leaked)", got.GameID, wantGame)
	}
}

func TestHubUnsubscribeNarrowsFilter(t *testing.T) {
	h, url := setupHub(t)

	conn := dial(t, url)
	waitUntil(t, "client registered", func() bool { return h.clientCount() == 1 })

	keep := uuid.New()
	drop := uuid.New()
	sendCommand(t, conn, "subscribe", keep, drop)
	waitUntil(t, "filter applied", func() bool { return h.filterApplied(keep) })

	sendCommand(t, conn, "unsubscribe", drop)
	waitUntil(t, "filter narrowed", func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		for c := range h.clients {
			c.mu.RLock()
			_, has := c.games[drop]
			c.mu.RUnlock()
			return !has
		}
		return false
	})

	h.Broadcast(update(drop))
	h.Broadcast(update(keep))

	got := readUpdate(t, conn)
	if got.GameID != keep {
		t.Errorf("delivered GameID = %s, want %s", got.GameID, keep)
	}
}

func TestHubEmptyFilterReceivesEverything(t *testing.T) {
	h, url := setupHub(t)

	conn := dial(t, url)
	waitUntil(t, "client registered", func() bool { return h.clientCount() == 1 })

	sub := uuid.New()
	sendCommand(t, conn, "subscribe", sub)
	waitUntil(t, "filter applied", func() bool { return h.filterApplied(sub) })
	sendCommand(t, conn, "unsubscribe", sub)
	waitUntil(t, "filter emptied", func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		for c := range h.clients {
			c.mu.RLock()
			size := len(c.games)
			c.mu.RUnlock()
			return size == 0
		}
		return false
	})

	other := uuid.New()
	h.Broadcast(update(other))

	got := readUpdate(t, conn)
	if got.GameID != other {
		t.Errorf("GameID = %s, want %s", got.GameID, other)
	}
}

func TestHubIgnoresMalformedClientCommands(t *testing.T) {
	h, url := setupHub(t)

	conn := dial(t, url)
	waitUntil(t, "client registered", func() bool { return h.clientCount() == 1 })

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("writing garbage: %v", err)
	}
	if err := conn.WriteJSON(clientCommand{Action: "bogus"}); err != nil {
		t.Fatalf("writing unknown action: %v", err)
	}

	gameID := uuid.New()
	h.Broadcast(update(gameID))

	got := readUpdate(t, conn)
	if got.GameID != gameID {
		t.Errorf("GameID = %s, want %s", got.GameID, gameID)
	}
	if h.clientCount() != 1 {
		t.Errorf("client count = %d, want 1 (garbage should not disconnect)", h.clientCount())
	}
}

func TestHubDisconnectsSlowClient(t *testing.T) {
	h := NewHub(nil)

	// A client with no pump and no buffer: the first trySend fails.
	c := &Client{
		id:     uuid.New(),
		hub:    h,
		logger: slog.Default(),
		send:   make(chan []byte),
		games:  make(map[uuid.UUID]struct{}),
	}
	if !h.addClient(c) {
		t.Fatal("addClient returned false")
	}
	// addClient reserves pump slots this test never starts.
	h.wg.Add(-2)

	h.deliver(update(uuid.New()))

	if h.clientCount() != 0 {
		t.Fatalf("client count = %d, want 0 after slow-client disconnect", h.clientCount())
	}
	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("send channel delivered data, want closed")
		}
	default:
		t.Error("send channel still open")
	}
}

func TestHubShutdownSendsCloseFrame(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws")
	waitUntil(t, "client registered", func() bool { return h.clientCount() == 1 })

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("hub did not stop")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("read error = %v, want close frame", err)
	}
	if closeErr.Code != websocket.CloseNormalClosure {
		t.Errorf("close code = %d, want %d", closeErr.Code, websocket.CloseNormalClosure)
	}
}

func TestHubRejectsClientsAfterShutdown(t *testing.T) {
	h := NewHub(nil)
	h.shutdown()

	c := &Client{
		id:     uuid.New(),
		hub:    h,
		logger: slog.Default(),
		send:   make(chan []byte, 1),
		games:  make(map[uuid.UUID]struct{}),
	}
	if h.addClient(c) {
		t.Error("addClient accepted a client after shutdown")
	}
}

func TestHubStats(t *testing.T) {
	h, url := setupHub(t)

	conn1 := dial(t, url)
	conn2 := dial(t, url)
	waitUntil(t, "both clients registered", func() bool { return h.clientCount() == 2 })

	gameID := uuid.New()
	h.Broadcast(update(gameID))
	readUpdate(t, conn1)
	readUpdate(t, conn2)

	stats := h.Stats()
	if stats.ActiveClients != 2 {
		t.Errorf("ActiveClients = %d, want 2", stats.ActiveClients)
	}
	if stats.TotalConnections != 2 {
		t.Errorf("TotalConnections = %d, want 2", stats.TotalConnections)
	}
	if stats.TotalMessages != 2 {
		t.Errorf("TotalMessages = %d, want 2", stats.TotalMessages)
	}

	conn1.Close()
	waitUntil(t, "disconnect observed", func() bool { return h.clientCount() == 1 })
	if got := h.Stats().ActiveClients; got != 1 {
		t.Errorf("ActiveClients after disconnect = %d, want 1", got)
	}
}

func TestClientFilterMutations(t *testing.T) {
	c := &Client{
		id:     uuid.New(),
		logger: slog.Default(),
		send:   make(chan []byte, 1),
		games:  make(map[uuid.UUID]struct{}),
	}

	a, b := uuid.New(), uuid.New()

	if !c.wants(a) {
		t.Error("empty filter rejected an update")
	}

	c.apply(clientCommand{Action: "subscribe", GameIDs: []uuid.UUID{a}})
	if !c.wants(a) {
		t.Error("subscribed game rejected")
	}
	if c.wants(b) {
		t.Error("unsubscribed game admitted through non-empty filter")
	}

	c.apply(clientCommand{Action: "unknown"})
	if !c.wants(a) {
		t.Error("unknown action mutated the filter")
	}

	c.apply(clientCommand{Action: "unsubscribe", GameIDs: []uuid.UUID{a}})
	if !c.wants(b) {
		t.Error("empty filter after unsubscribe rejected an update")
	}
}

// A plain GET without upgrade headers gets a 400 and registers nothing.
func TestServeWSRejectsPlainHTTP(t *testing.T) {
	h, url := setupHub(t)

	resp, err := http.Get("http" + strings.TrimPrefix(url, "ws"))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if h.clientCount() != 0 {
		t.Errorf("client count = %d, want 0", h.clientCount())
	}
}
