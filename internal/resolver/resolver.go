package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gamelinehq/marketfeed/internal/model"
)

// Store is the persistence surface the resolver needs.
type Store interface {
	UnmatchedLiveMarkets(ctx context.Context) ([]model.Market, error)
	ActiveGames(ctx context.Context) ([]model.Game, error)
	ApplyAssignments(ctx context.Context, assignments []model.Assignment) error
	ClearStaleMatches(ctx context.Context) (int64, error)
}

// Stats summarizes one resolver pass.
type Stats struct {
	Matched   int
	Cleared   int64
	Unmatched int
	Ambiguous int
}

// Resolver assigns exchange tickers to registry games in bulk passes.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

// New creates a Resolver. A nil logger falls back to slog.Default.
func New(store Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// Run executes one full pass: clear assignments gone stale, then match
// every unmatched live market against the active games. Clearing runs
// first so freed tickers are eligible again within the same pass. Any
// error abandons the pass; the next scheduled cycle retries from scratch.
func (r *Resolver) Run(ctx context.Context) (Stats, error) {
	start := time.Now()

	cleared, err := r.store.ClearStaleMatches(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("clear stale matches: %w", err)
	}

	markets, err := r.store.UnmatchedLiveMarkets(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("load unmatched markets: %w", err)
	}

	games, err := r.store.ActiveGames(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("load active games: %w", err)
	}

	plan := planMatches(markets, games)

	for id, tickers := range plan.SharedGames {
		r.logger.Warn("multiple tickers matched one game",
			"game_id", id, "tickers", tickers)
	}
	if len(plan.Ambiguous) > 0 {
		r.logger.Warn("ambiguous candidates skipped", "tickers", plan.Ambiguous)
	}
	if plan.BadSlugs > 0 {
		r.logger.Warn("games with unparseable slugs ignored", "count", plan.BadSlugs)
	}

	if err := r.store.ApplyAssignments(ctx, plan.Assignments); err != nil {
		return Stats{}, fmt.Errorf("apply assignments: %w", err)
	}

	stats := Stats{
		Matched:   len(plan.Assignments),
		Cleared:   cleared,
		Unmatched: plan.Unmatched,
		Ambiguous: len(plan.Ambiguous),
	}

	r.logger.Info("resolver pass complete",
		"matched", stats.Matched,
		"cleared", stats.Cleared,
		"unmatched", stats.Unmatched,
		"candidates", len(markets),
		"games", len(games),
		"duration", time.Since(start),
	)

	return stats, nil
}
