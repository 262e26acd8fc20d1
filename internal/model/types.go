package model

import (
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Exchange Markets
// -----------------------------------------------------------------------------

// Market statuses as reported by the exchange.
const (
	StatusUnopened = "unopened"
	StatusOpen     = "open"
	StatusActive   = "active"
	StatusClosed   = "closed"
	StatusSettled  = "settled"
)

// Market is one tradeable exchange market, persisted in exchange_markets.
// Rows are created/updated by the fetch poller; the resolver owns the
// GameID column.
type Market struct {
	Ticker    string    // Primary key (e.g., "KXNBAGAME-26FEB05CHAHOU-HOU")
	EventID   string    // Exchange event ticker (e.g., "KXNBAGAME-26FEB05CHAHOU")
	Title     string    // Display title
	Status    string    // unopened, open, active, closed, settled
	CloseTime time.Time // Market close time

	// Identifier fields parsed from the ticker.
	Sport      string    // Lower-case sport key ("nba", "nhl", "nfl", ...)
	AwayCode   string    // Away team code after alias translation ("" until known)
	HomeCode   string    // Home team code after alias translation ("" until known)
	SingleCode string    // Lone code of a single-team market ("" for game markets)
	GameDate   time.Time // Date-only, midnight UTC; zero when unparseable

	// Current top-of-book prices in cents (0-100).
	YesBid int
	YesAsk int
	NoBid  int
	NoAsk  int

	// Matched internal game, set and cleared by the resolver.
	GameID uuid.NullUUID

	UpdatedAt time.Time
}

// SingleTeam reports whether the market is the single-team variant
// (one lone team code, slot resolved only at match time).
func (m Market) SingleTeam() bool {
	return m.SingleCode != ""
}

// -----------------------------------------------------------------------------
// Ticker Mappings
// -----------------------------------------------------------------------------

// TickerMapping is the resolved ticker-to-game association served from the
// mapping cache. One mapping exists per matched, live exchange_markets row.
// Away/home codes come from the game slug, so they are always the registry
// forms regardless of how the exchange spelled them.
type TickerMapping struct {
	Ticker   string    `json:"ticker"`
	GameID   uuid.UUID `json:"game_id"`
	AwayCode string    `json:"away_code"`
	HomeCode string    `json:"home_code"`
	Sport    string    `json:"sport"`
	GameDate time.Time `json:"game_date"`
	GameSlug string    `json:"game_slug"`
}

// Assignment is one resolver decision: this ticker belongs to this game.
type Assignment struct {
	Ticker string
	GameID uuid.UUID
}

// -----------------------------------------------------------------------------
// Game Registry (collaborator-owned, read only)
// -----------------------------------------------------------------------------

// Game is the slice of a registry game row the resolver consumes.
// Slug format: sport-away-home-YYYY-MM-DD (e.g., "nfl-sea-ne-2026-02-08").
type Game struct {
	ID     uuid.UUID
	Sport  string
	Slug   string
	Ended  bool
	Closed bool
}

// -----------------------------------------------------------------------------
// Price Fan-out
// -----------------------------------------------------------------------------

// PriceSide is one team's display price in cents.
type PriceSide struct {
	Bid int `json:"bid"`
	Ask int `json:"ask"`
}

// PriceUpdate is the payload broadcast from the ingestion worker to the
// front-end workers. Delivery is best-effort, last-value-wins.
type PriceUpdate struct {
	GameID     uuid.UUID `json:"game_id"`
	Ticker     string    `json:"ticker"`
	Away       PriceSide `json:"away"`
	Home       PriceSide `json:"home"`
	ExchangeTS int64     `json:"ts"`          // Exchange timestamp (unix seconds)
	ReceivedAt time.Time `json:"received_at"` // Ingestor receive time
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// IsLiveStatus reports whether a market status counts as live for matching
// and cache purposes ("open" and "active" do; terminal states do not).
func IsLiveStatus(status string) bool {
	return status == StatusOpen || status == StatusActive
}

// DateOnly truncates t to midnight UTC. Game dates compare by calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
