package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/gamelinehq/marketfeed/internal/model"
)

// Subscriber receives every game's price updates on a front-end worker.
// Redis pattern subscription reconnects are handled by the client library.
type Subscriber struct {
	client  *redis.Client
	logger  *slog.Logger
	pubsub  *redis.PubSub
	updates chan model.PriceUpdate
	wg      sync.WaitGroup
}

// NewSubscriber creates a subscriber for the shared broadcast channel.
func NewSubscriber(client *redis.Client, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		client:  client,
		logger:  logger,
		updates: make(chan model.PriceUpdate, 1024),
	}
}

// Start subscribes and begins decoding updates onto Updates.
func (s *Subscriber) Start(ctx context.Context) error {
	s.pubsub = s.client.PSubscribe(ctx, channelPattern)

	// Force the subscription round trip so a dead broker fails Start
	// instead of silently delivering nothing.
	if _, err := s.pubsub.Receive(ctx); err != nil {
		s.pubsub.Close()
		return fmt.Errorf("subscribing to %s: %w", channelPattern, err)
	}

	ch := s.pubsub.Channel()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for msg := range ch {
			var update model.PriceUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				s.logger.Warn("dropping malformed price update",
					"channel", msg.Channel,
					"error", err,
				)
				continue
			}
			select {
			case s.updates <- update:
			default:
				s.logger.Warn("update buffer full, dropping", "game_id", update.GameID)
			}
		}
		close(s.updates)
	}()

	s.logger.Info("price subscriber started", "pattern", channelPattern)
	return nil
}

// Updates returns the decoded update channel. It closes after Stop.
func (s *Subscriber) Updates() <-chan model.PriceUpdate {
	return s.updates
}

// Stop closes the subscription and waits for the decode loop to drain.
func (s *Subscriber) Stop(ctx context.Context) error {
	if s.pubsub != nil {
		s.pubsub.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("price subscriber stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("price subscriber stop timed out")
		return ctx.Err()
	}
}
