package stream

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gamelinehq/marketfeed/internal/auth"
)

// Errors
var (
	ErrNotConnected       = errors.New("not connected")
	ErrShuttingDown       = errors.New("client is shutting down")
	ErrPongTimeout        = errors.New("pong timeout, connection stale")
	ErrReconnectsExceeded = errors.New("reconnect attempts exhausted")
)

// State is the connection state of a Client.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "unknown"
}

// reconnectLadder is the fixed delay schedule for reconnects. The final
// rung repeats until the attempt cap is hit.
var reconnectLadder = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
	60 * time.Second,
}

// reconnectDelay returns the wait before reconnect attempt n (0-based).
func reconnectDelay(attempt int) time.Duration {
	if attempt >= len(reconnectLadder) {
		attempt = len(reconnectLadder) - 1
	}
	return reconnectLadder[attempt]
}

// Command is an outbound feed command.
type Command struct {
	ID     int64         `json:"id"`
	Cmd    string        `json:"cmd"`
	Params CommandParams `json:"params"`
}

// CommandParams carries the channels and tickers for subscribe/unsubscribe.
type CommandParams struct {
	Channels      []string `json:"channels"`
	MarketTickers []string `json:"market_tickers"`
}

// serverMessage is the envelope for every inbound feed message.
type serverMessage struct {
	ID   int64           `json:"id,omitempty"`
	Type string          `json:"type"`
	SID  int64           `json:"sid,omitempty"`
	Msg  json.RawMessage `json:"msg"`
}

// Tick is one price update for a market.
type Tick struct {
	Ticker     string    `json:"market_ticker"`
	YesBid     int       `json:"yes_bid"`
	YesAsk     int       `json:"yes_ask"`
	NoBid      int       `json:"no_bid"`
	NoAsk      int       `json:"no_ask"`
	Timestamp  int64     `json:"ts"`
	ReceivedAt time.Time `json:"-"`
}

// subscribedMsg is the payload of a "subscribed" ack.
type subscribedMsg struct {
	SID     int64  `json:"sid"`
	Channel string `json:"channel"`
}

// errorMsg is the payload of an "error" message.
type errorMsg struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Config configures the streaming client.
type Config struct {
	URL                  string // full feed URL; its path is signed into the auth headers
	Credentials          *auth.Credentials
	MaxSubscriptions     int
	SubscribeBatchSize   int
	SubscribeBatchDelay  time.Duration
	PingInterval         time.Duration
	PongTimeout          time.Duration
	MaxReconnectAttempts int
	WriteTimeout         time.Duration
	TickBuffer           int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxSubscriptions:     900,
		SubscribeBatchSize:   50,
		SubscribeBatchDelay:  100 * time.Millisecond,
		PingInterval:         30 * time.Second,
		PongTimeout:          5 * time.Second,
		MaxReconnectAttempts: 10,
		WriteTimeout:         5 * time.Second,
		TickBuffer:           1000,
	}
}

// ClientStats reports current client state for health output.
type ClientStats struct {
	State             string `json:"state"`
	Subscribed        int    `json:"subscribed"`
	Pending           int    `json:"pending"`
	ReconnectAttempts int    `json:"reconnect_attempts"`
	TicksDropped      uint64 `json:"ticks_dropped"`
}
