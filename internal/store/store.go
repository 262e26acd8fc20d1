// Package store persists exchange market rows and reads the game registry
// tables. All SQL lives here; callers work with model types.
//
// Expected tables:
//
//	games (owned by the registry service, read-only here)
//	    id UUID PRIMARY KEY,
//	    sport TEXT NOT NULL,
//	    slug TEXT NOT NULL UNIQUE,       -- sport-away-home-YYYY-MM-DD
//	    ended BOOLEAN NOT NULL DEFAULT FALSE,
//	    closed BOOLEAN NOT NULL DEFAULT FALSE
//
//	exchange_markets (owned by this service)
//	    ticker TEXT PRIMARY KEY,
//	    event_id TEXT NOT NULL DEFAULT '',
//	    title TEXT NOT NULL DEFAULT '',
//	    status TEXT NOT NULL,
//	    close_time TIMESTAMPTZ NOT NULL,
//	    sport TEXT NOT NULL DEFAULT '',
//	    away_code TEXT NOT NULL DEFAULT '',
//	    home_code TEXT NOT NULL DEFAULT '',
//	    single_code TEXT NOT NULL DEFAULT '',
//	    game_date DATE NOT NULL,
//	    yes_bid INT NOT NULL DEFAULT 0,
//	    yes_ask INT NOT NULL DEFAULT 0,
//	    no_bid INT NOT NULL DEFAULT 0,
//	    no_ask INT NOT NULL DEFAULT 0,
//	    game_id UUID REFERENCES games (id),
//	    updated_at TIMESTAMPTZ NOT NULL
package store

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps the shared connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}
