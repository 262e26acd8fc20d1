package store

import (
	"context"
	"fmt"

	"github.com/gamelinehq/marketfeed/internal/model"
)

// ActiveGames returns registry games still awaiting or in play. The games
// table is owned by the registry service; this reads it, never writes.
func (s *Store) ActiveGames(ctx context.Context) ([]model.Game, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sport, slug, ended, closed
		FROM games
		WHERE NOT ended AND NOT closed
		ORDER BY slug
	`)
	if err != nil {
		return nil, fmt.Errorf("query active games: %w", err)
	}
	defer rows.Close()

	var games []model.Game
	for rows.Next() {
		var g model.Game
		if err := rows.Scan(&g.ID, &g.Sport, &g.Slug, &g.Ended, &g.Closed); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}
