package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gamelinehq/marketfeed/internal/model"
)

var liveStatuses = []string{model.StatusOpen, model.StatusActive}

// UpsertMarkets inserts or refreshes exchange market rows. The game_id
// column is never touched here; only the resolver assigns games.
func (s *Store) UpsertMarkets(ctx context.Context, markets []model.Market) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range markets {
		batch.Queue(`
			INSERT INTO exchange_markets
				(ticker, event_id, title, status, close_time, sport,
				 away_code, home_code, single_code, game_date,
				 yes_bid, yes_ask, no_bid, no_ask, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (ticker) DO UPDATE SET
				event_id = EXCLUDED.event_id,
				title = EXCLUDED.title,
				status = EXCLUDED.status,
				close_time = EXCLUDED.close_time,
				sport = EXCLUDED.sport,
				away_code = EXCLUDED.away_code,
				home_code = EXCLUDED.home_code,
				single_code = EXCLUDED.single_code,
				game_date = EXCLUDED.game_date,
				yes_bid = EXCLUDED.yes_bid,
				yes_ask = EXCLUDED.yes_ask,
				no_bid = EXCLUDED.no_bid,
				no_ask = EXCLUDED.no_ask,
				updated_at = EXCLUDED.updated_at
		`, m.Ticker, m.EventID, m.Title, m.Status, m.CloseTime, m.Sport,
			m.AwayCode, m.HomeCode, m.SingleCode, m.GameDate,
			m.YesBid, m.YesAsk, m.NoBid, m.NoAsk, m.UpdatedAt)
	}

	start := time.Now()
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for _, m := range markets {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert market %s: %w", m.Ticker, err)
		}
	}

	s.logger.Debug("upserted markets", "count", len(markets), "duration", time.Since(start))
	return nil
}

// UnmatchedLiveMarkets returns live markets with no game assignment, in
// ticker order so resolver runs process them deterministically.
func (s *Store) UnmatchedLiveMarkets(ctx context.Context) ([]model.Market, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ticker, event_id, title, status, close_time, sport,
		       away_code, home_code, single_code, game_date,
		       yes_bid, yes_ask, no_bid, no_ask, updated_at
		FROM exchange_markets
		WHERE game_id IS NULL AND status = ANY($1)
		ORDER BY ticker
	`, liveStatuses)
	if err != nil {
		return nil, fmt.Errorf("query unmatched markets: %w", err)
	}
	defer rows.Close()

	var markets []model.Market
	for rows.Next() {
		var m model.Market
		err := rows.Scan(&m.Ticker, &m.EventID, &m.Title, &m.Status, &m.CloseTime, &m.Sport,
			&m.AwayCode, &m.HomeCode, &m.SingleCode, &m.GameDate,
			&m.YesBid, &m.YesAsk, &m.NoBid, &m.NoAsk, &m.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan market: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// ApplyAssignments writes resolver decisions in one transaction, so a
// refresh cycle either lands fully or not at all.
func (s *Store) ApplyAssignments(ctx context.Context, assignments []model.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, a := range assignments {
		batch.Queue(`
			UPDATE exchange_markets SET game_id = $2, updated_at = now()
			WHERE ticker = $1
		`, a.Ticker, a.GameID)
	}

	results := tx.SendBatch(ctx, batch)
	for _, a := range assignments {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("assign %s: %w", a.Ticker, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	return tx.Commit(ctx)
}

// ClearStaleMatches removes assignments whose market is no longer live or
// whose game has ended or been closed. Returns the number of rows cleared.
func (s *Store) ClearStaleMatches(ctx context.Context) (int64, error) {
	ct, err := s.pool.Exec(ctx, `
		UPDATE exchange_markets m SET game_id = NULL, updated_at = now()
		WHERE m.game_id IS NOT NULL
		  AND (m.status <> ALL($1)
		       OR EXISTS (
		           SELECT 1 FROM games g
		           WHERE g.id = m.game_id AND (g.ended OR g.closed)
		       ))
	`, liveStatuses)
	if err != nil {
		return 0, fmt.Errorf("clear stale matches: %w", err)
	}
	return ct.RowsAffected(), nil
}

// LiveMappings returns the current ticker-to-game associations for live,
// matched markets whose close time is not already far in the past. Codes
// are taken from the game slug; rows whose slug does not parse are skipped
// with a warning since orientation would be guesswork.
func (s *Store) LiveMappings(ctx context.Context) ([]model.TickerMapping, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.ticker, m.game_id, m.sport, m.game_date, g.slug
		FROM exchange_markets m
		JOIN games g ON g.id = m.game_id
		WHERE m.status = ANY($1)
		  AND NOT g.ended AND NOT g.closed
		  AND m.close_time > now() - interval '12 hours'
		ORDER BY m.ticker
	`, liveStatuses)
	if err != nil {
		return nil, fmt.Errorf("query live mappings: %w", err)
	}
	defer rows.Close()

	var mappings []model.TickerMapping
	for rows.Next() {
		var tm model.TickerMapping
		if err := rows.Scan(&tm.Ticker, &tm.GameID, &tm.Sport, &tm.GameDate, &tm.GameSlug); err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}

		slug, ok := model.ParseGameSlug(tm.GameSlug)
		if !ok {
			s.logger.Warn("skipping mapping with unparseable game slug",
				"ticker", tm.Ticker, "slug", tm.GameSlug)
			continue
		}
		tm.AwayCode = slug.AwayCode
		tm.HomeCode = slug.HomeCode

		mappings = append(mappings, tm)
	}
	return mappings, rows.Err()
}

// MarketCounts reports live totals for health output.
func (s *Store) MarketCounts(ctx context.Context) (live, matched int64, err error) {
	err = s.pool.QueryRow(ctx, `
		SELECT count(*), count(game_id)
		FROM exchange_markets
		WHERE status = ANY($1)
	`, liveStatuses).Scan(&live, &matched)
	if err != nil {
		return 0, 0, fmt.Errorf("count markets: %w", err)
	}
	return live, matched, nil
}
