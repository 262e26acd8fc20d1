package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gamelinehq/marketfeed/internal/model"
)

const snapshotKey = "marketfeed:mappings:snapshot"

// Snapshot persists the mapping set to Redis so a restarting process can
// warm its cache without waiting for the database. Entries expire on their
// own; a stale or missing snapshot is never an error.
type Snapshot struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshot creates a snapshot store writing with the given TTL.
func NewSnapshot(client *redis.Client, ttl time.Duration) *Snapshot {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Snapshot{client: client, ttl: ttl}
}

// Save overwrites the shared snapshot with the given mappings.
func (s *Snapshot) Save(ctx context.Context, mappings []model.TickerMapping) error {
	data, err := json.Marshal(mappings)
	if err != nil {
		return fmt.Errorf("marshaling mappings: %w", err)
	}
	return s.client.Set(ctx, snapshotKey, data, s.ttl).Err()
}

// Load reads the shared snapshot. A missing key returns an empty slice.
func (s *Snapshot) Load(ctx context.Context) ([]model.TickerMapping, error) {
	data, err := s.client.Get(ctx, snapshotKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var mappings []model.TickerMapping
	if err := json.Unmarshal([]byte(data), &mappings); err != nil {
		return nil, fmt.Errorf("unmarshaling mappings: %w", err)
	}
	return mappings, nil
}
