package fanout

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/gamelinehq/marketfeed/internal/model"
)

// Publisher broadcasts price updates from the ingestion worker.
type Publisher struct {
	client *redis.Client
	logger *slog.Logger
}

// NewPublisher creates a publisher on the shared broadcast channel.
func NewPublisher(client *redis.Client, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{client: client, logger: logger}
}

// Publish sends one update to the game's channel. Failures are logged and
// not retried; the next tick supersedes this one.
func (p *Publisher) Publish(ctx context.Context, update model.PriceUpdate) {
	data, err := json.Marshal(update)
	if err != nil {
		p.logger.Error("marshaling price update", "ticker", update.Ticker, "error", err)
		return
	}

	if err := p.client.Publish(ctx, channelFor(update.GameID), data).Err(); err != nil {
		p.logger.Warn("price update publish failed",
			"game_id", update.GameID,
			"ticker", update.Ticker,
			"error", err,
		)
	}
}
