// Package registry listens for the game registry's refresh signal.
//
// The registry service publishes to a well-known Redis channel whenever its
// games table changes. Consumers treat the message as a pure wake-up: the
// payload carries no data, and bursts coalesce to a single pending event.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const refreshChannel = "marketfeed:registry:refreshed"

// Signal surfaces registry refresh notifications as a channel of events.
type Signal struct {
	client *redis.Client
	logger *slog.Logger

	pubsub *redis.PubSub
	events chan struct{}
	wg     sync.WaitGroup
}

func NewSignal(client *redis.Client, logger *slog.Logger) *Signal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Signal{
		client: client,
		logger: logger,
		events: make(chan struct{}, 1),
	}
}

// Start subscribes to the refresh channel and begins forwarding events.
func (s *Signal) Start(ctx context.Context) error {
	s.pubsub = s.client.Subscribe(ctx, refreshChannel)

	// Force the subscription round trip so a dead broker fails Start
	// instead of silently delivering nothing.
	if _, err := s.pubsub.Receive(ctx); err != nil {
		s.pubsub.Close()
		return fmt.Errorf("subscribing to %s: %w", refreshChannel, err)
	}

	ch := s.pubsub.Channel()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for range ch {
			select {
			case s.events <- struct{}{}:
			default:
				// An event is already pending; one wake-up covers both.
			}
		}
		close(s.events)
	}()

	s.logger.Info("registry signal started", "channel", refreshChannel)
	return nil
}

// Events yields one value per coalesced refresh notification. The channel
// closes after Stop.
func (s *Signal) Events() <-chan struct{} {
	return s.events
}

// Stop closes the subscription and waits for the forward loop to drain.
func (s *Signal) Stop(ctx context.Context) error {
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
		s.logger.Info("registry signal stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("registry signal stop timed out")
		return ctx.Err()
	}
}

// Notify publishes a refresh notification. The payload is a timestamp for
// operators tailing the channel; subscribers ignore it.
func Notify(ctx context.Context, client *redis.Client) error {
	payload := time.Now().UTC().Format(time.RFC3339)
	if err := client.Publish(ctx, refreshChannel, payload).Err(); err != nil {
		return fmt.Errorf("publishing registry refresh: %w", err)
	}
	return nil
}
