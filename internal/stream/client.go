package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	channelTicker    = "ticker"
)

// Client maintains the single feed connection: dialing with fresh signed
// headers, heartbeats, the reconnect ladder, and subscription state that
// outlives any one socket.
type Client struct {
	cfg      Config
	signPath string
	logger   *slog.Logger

	mu           sync.Mutex
	state        State
	shuttingDown bool
	attempts     int
	conn         *websocket.Conn
	subscribed   map[string]struct{}
	pending      map[string]struct{}
	lastUnknown  map[string]time.Time

	// Write serialization
	writeMu sync.Mutex

	cmdID        atomic.Int64
	ticksDropped atomic.Uint64

	ticks chan Tick
	fatal chan error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient creates a streaming client. Zero config fields take defaults.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	def := DefaultConfig()
	if cfg.MaxSubscriptions <= 0 {
		cfg.MaxSubscriptions = def.MaxSubscriptions
	}
	if cfg.SubscribeBatchSize <= 0 {
		cfg.SubscribeBatchSize = def.SubscribeBatchSize
	}
	if cfg.SubscribeBatchDelay <= 0 {
		cfg.SubscribeBatchDelay = def.SubscribeBatchDelay
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = def.PongTimeout
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = def.MaxReconnectAttempts
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.TickBuffer <= 0 {
		cfg.TickBuffer = def.TickBuffer
	}

	signPath := "/"
	if u, err := url.Parse(cfg.URL); err == nil && u.Path != "" {
		signPath = u.Path
	}

	return &Client{
		cfg:         cfg,
		signPath:    signPath,
		logger:      logger,
		subscribed:  make(map[string]struct{}),
		pending:     make(map[string]struct{}),
		lastUnknown: make(map[string]time.Time),
		ticks:       make(chan Tick, cfg.TickBuffer),
		fatal:       make(chan error, 1),
	}
}

// Start begins the connect/reconnect loop.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.shuttingDown {
		c.mu.Unlock()
		return ErrShuttingDown
	}
	c.mu.Unlock()

	c.ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go c.run()

	c.logger.Info("stream client started",
		"url", c.cfg.URL,
		"max_subscriptions", c.cfg.MaxSubscriptions,
	)
	return nil
}

// Stop shuts the client down: no further reconnects, a normal close frame
// when connected, and subscription state cleared.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.shuttingDown {
		c.mu.Unlock()
		return nil
	}
	c.shuttingDown = true
	conn := c.conn
	c.subscribed = make(map[string]struct{})
	c.pending = make(map[string]struct{})
	c.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline,
		)
	}
	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		c.logger.Warn("stream client stop timed out")
		return ctx.Err()
	}

	close(c.ticks)
	c.logger.Info("stream client stopped")
	return nil
}

// Ticks returns the inbound price update channel. It closes on Stop.
func (c *Client) Ticks() <-chan Tick {
	return c.ticks
}

// Fatal delivers the terminal error once the reconnect cap is exhausted.
// The operator is expected to restart the process.
func (c *Client) Fatal() <-chan error {
	return c.fatal
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns current counters.
func (c *Client) Stats() ClientStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ClientStats{
		State:             c.state.String(),
		Subscribed:        len(c.subscribed),
		Pending:           len(c.pending),
		ReconnectAttempts: c.attempts,
		TicksDropped:      c.ticksDropped.Load(),
	}
}

// Subscribe requests ticks for the given tickers. While disconnected the
// tickers are queued and issued on the next successful connect.
func (c *Client) Subscribe(tickers []string) {
	if len(tickers) == 0 {
		return
	}

	c.mu.Lock()
	if c.shuttingDown {
		c.mu.Unlock()
		return
	}

	if c.state != StateConnected {
		queued := 0
		for _, t := range tickers {
			if _, ok := c.subscribed[t]; ok {
				continue
			}
			if _, ok := c.pending[t]; ok {
				continue
			}
			c.pending[t] = struct{}{}
			queued++
		}
		c.mu.Unlock()
		if queued > 0 {
			c.logger.Debug("queued subscriptions until connect", "count", queued)
		}
		return
	}

	fresh := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if _, ok := c.subscribed[t]; ok {
			continue
		}
		c.subscribed[t] = struct{}{}
		fresh = append(fresh, t)
	}

	truncated := 0
	if over := len(c.subscribed) - c.cfg.MaxSubscriptions; over > 0 {
		truncated = over
		for _, t := range fresh[len(fresh)-over:] {
			delete(c.subscribed, t)
		}
		fresh = fresh[:len(fresh)-over]
	}
	c.mu.Unlock()

	if truncated > 0 {
		c.logger.Warn("subscription cap exceeded, truncating",
			"cap", c.cfg.MaxSubscriptions,
			"dropped", truncated,
		)
	}
	if len(fresh) == 0 {
		return
	}
	c.sendBatches("subscribe", fresh)
}

// Unsubscribe stops ticks for the given tickers. Local state drops
// immediately; a failed send only means the upstream keeps sending until
// the next reconnect.
func (c *Client) Unsubscribe(tickers []string) {
	if len(tickers) == 0 {
		return
	}

	c.mu.Lock()
	removed := make([]string, 0, len(tickers))
	for _, t := range tickers {
		delete(c.pending, t)
		if _, ok := c.subscribed[t]; ok {
			delete(c.subscribed, t)
			removed = append(removed, t)
		}
	}
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || len(removed) == 0 {
		return
	}
	c.sendBatches("unsubscribe", removed)
}

// run is the supervisor loop: connect, serve until the connection drops,
// then walk the reconnect ladder unless shutting down.
func (c *Client) run() {
	defer c.wg.Done()

	for {
		targets, err := c.connect()
		if err == nil {
			err = c.serve(targets)
		}

		if c.ctx.Err() != nil || c.isShuttingDown() {
			return
		}

		delay, attempt, ok := c.nextReconnectDelay()
		if !ok {
			c.logger.Error("reconnect attempts exhausted",
				"attempts", c.cfg.MaxReconnectAttempts,
				"error", err,
			)
			select {
			case c.fatal <- ErrReconnectsExceeded:
			default:
			}
			return
		}

		c.logger.Info("reconnecting",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		select {
		case <-time.After(delay):
		case <-c.ctx.Done():
			return
		}
	}
}

// connect dials the feed. It is a no-op when already connected or
// connecting. On success it returns the tickers to re-issue, pending
// subscriptions folded in.
func (c *Client) connect() ([]string, error) {
	c.mu.Lock()
	if c.shuttingDown {
		c.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil, nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(c.ctx, c.cfg.URL, c.authHeaders())
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		return nil, err
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	targets, truncated := c.mergePendingLocked()
	c.mu.Unlock()

	if truncated > 0 {
		c.logger.Warn("subscription cap exceeded, truncating",
			"cap", c.cfg.MaxSubscriptions,
			"dropped", truncated,
		)
	}
	c.logger.Info("feed connected", "url", c.cfg.URL)
	return targets, nil
}

// authHeaders signs the dial request. The signature embeds the current
// timestamp, so it is recomputed on every attempt. A signing failure
// downgrades the attempt to unauthenticated rather than aborting it.
func (c *Client) authHeaders() http.Header {
	if c.cfg.Credentials == nil {
		return nil
	}
	header, err := c.cfg.Credentials.Headers(http.MethodGet, c.signPath)
	if err != nil {
		c.logger.Warn("signing failed, connecting unauthenticated", "error", err)
		return nil
	}
	return header
}

// mergePendingLocked folds queued subscriptions into the subscribed set,
// enforces the cap, and returns the full target list sorted. Caller holds mu.
func (c *Client) mergePendingLocked() (targets []string, truncated int) {
	for t := range c.pending {
		c.subscribed[t] = struct{}{}
	}
	c.pending = make(map[string]struct{})

	targets = make([]string, 0, len(c.subscribed))
	for t := range c.subscribed {
		targets = append(targets, t)
	}
	sort.Strings(targets)

	if len(targets) > c.cfg.MaxSubscriptions {
		truncated = len(targets) - c.cfg.MaxSubscriptions
		for _, t := range targets[c.cfg.MaxSubscriptions:] {
			delete(c.subscribed, t)
		}
		targets = targets[:c.cfg.MaxSubscriptions]
	}
	return targets, truncated
}

// serve owns one live connection until it drops, returning the read error.
func (c *Client) serve(targets []string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	done := make(chan struct{})
	defer close(done)

	// Reports why the socket was closed locally (pong timeout).
	causeCh := make(chan error, 1)

	pongCh := make(chan struct{}, 1)
	conn.SetPongHandler(func(string) error {
		select {
		case pongCh <- struct{}{}:
		default:
		}
		return nil
	})

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.heartbeat(conn, pongCh, done, causeCh)
	}()
	go func() {
		defer c.wg.Done()
		select {
		case <-c.ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if len(targets) > 0 {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.logger.Info("issuing subscriptions", "count", len(targets))
			c.sendBatches("subscribe", targets)
		}()
	}

	err := c.readLoop(conn)

	c.mu.Lock()
	c.state = StateDisconnected
	c.conn = nil
	c.mu.Unlock()
	conn.Close()

	select {
	case cause := <-causeCh:
		err = cause
	default:
	}
	return err
}

// heartbeat pings on a fixed interval and arms a pong deadline per ping.
// A missed pong forcibly terminates the connection.
func (c *Client) heartbeat(conn *websocket.Conn, pongCh <-chan struct{}, done <-chan struct{}, causeCh chan<- error) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		// Drop any pong that predates this ping.
		select {
		case <-pongCh:
		default:
		}

		deadline := time.Now().Add(c.cfg.WriteTimeout)
		if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
			c.logger.Debug("ping write failed", "error", err)
			return
		}

		select {
		case <-pongCh:
		case <-done:
			return
		case <-time.After(c.cfg.PongTimeout):
			c.logger.Warn("pong timeout, terminating connection",
				"timeout", c.cfg.PongTimeout,
			)
			select {
			case causeCh <- ErrPongTimeout:
			default:
			}
			conn.Close()
			return
		}
	}
}

// readLoop reads until the connection fails or closes.
func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleMessage(data, time.Now())
	}
}

// handleMessage parses one inbound message and dispatches on its type.
// Malformed messages are dropped, never fatal.
func (c *Client) handleMessage(data []byte, receivedAt time.Time) {
	var env serverMessage
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("dropping malformed message", "error", err)
		return
	}

	switch env.Type {
	case "ticker":
		var tick Tick
		if err := json.Unmarshal(env.Msg, &tick); err != nil {
			c.logger.Warn("dropping malformed tick", "error", err)
			return
		}
		tick.ReceivedAt = receivedAt
		select {
		case c.ticks <- tick:
		default:
			c.ticksDropped.Add(1)
			c.logger.Warn("tick buffer full, dropping", "ticker", tick.Ticker)
		}

	case "subscribed":
		var sub subscribedMsg
		json.Unmarshal(env.Msg, &sub)
		c.logger.Debug("subscription confirmed",
			"id", env.ID,
			"sid", sub.SID,
			"channel", sub.Channel,
		)

	case "unsubscribed":
		c.logger.Debug("unsubscribe confirmed", "id", env.ID)

	case "error":
		var em errorMsg
		json.Unmarshal(env.Msg, &em)
		c.logger.Warn("feed error",
			"id", env.ID,
			"code", em.Code,
			"message", em.Message,
		)

	default:
		c.logUnknown(env.Type)
	}
}

// logUnknown logs an unrecognized message type at most once per minute so
// a new upstream type cannot flood the logs.
func (c *Client) logUnknown(msgType string) {
	c.mu.Lock()
	last, seen := c.lastUnknown[msgType]
	now := time.Now()
	if seen && now.Sub(last) < time.Minute {
		c.mu.Unlock()
		return
	}
	c.lastUnknown[msgType] = now
	c.mu.Unlock()

	c.logger.Info("ignoring unknown message type", "type", msgType)
}

// sendBatches issues a command in fixed-size chunks with a short delay
// between chunks. A failed send stops the run; subscription state is
// already recorded, so a reconnect re-issues what matters.
func (c *Client) sendBatches(cmd string, tickers []string) {
	for start := 0; start < len(tickers); start += c.cfg.SubscribeBatchSize {
		end := start + c.cfg.SubscribeBatchSize
		if end > len(tickers) {
			end = len(tickers)
		}

		command := Command{
			ID:  c.cmdID.Add(1),
			Cmd: cmd,
			Params: CommandParams{
				Channels:      []string{channelTicker},
				MarketTickers: tickers[start:end],
			},
		}
		data, err := json.Marshal(command)
		if err != nil {
			c.logger.Error("marshaling command", "cmd", cmd, "error", err)
			return
		}
		if err := c.send(data); err != nil {
			c.logger.Warn("command send failed", "cmd", cmd, "error", err)
			return
		}

		if end < len(tickers) {
			select {
			case <-time.After(c.cfg.SubscribeBatchDelay):
			case <-c.ctx.Done():
				return
			}
		}
	}
}

// send writes one frame, serialized against concurrent senders.
func (c *Client) send(data []byte) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// nextReconnectDelay advances the attempt counter and returns the ladder
// delay for this attempt, or ok=false once the cap is exhausted.
func (c *Client) nextReconnectDelay() (time.Duration, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.attempts++
	if c.attempts > c.cfg.MaxReconnectAttempts {
		return 0, c.attempts, false
	}
	return reconnectDelay(c.attempts - 1), c.attempts, true
}

func (c *Client) isShuttingDown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shuttingDown
}
