package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are sane.
// Defaults are expected to have been applied first.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := c.Database.validate(); err != nil {
		return err
	}

	if c.Redis.Addr == "" {
		return errors.New("redis.addr is required")
	}

	if c.Stream.MaxSubscriptions < 1 {
		return errors.New("stream.max_subscriptions must be >= 1")
	}
	if c.Stream.SubscribeBatchSize < 1 {
		return errors.New("stream.subscribe_batch_size must be >= 1")
	}
	if c.Stream.SubscribeBatchSize > c.Stream.MaxSubscriptions {
		return fmt.Errorf("stream.subscribe_batch_size (%d) cannot exceed max_subscriptions (%d)",
			c.Stream.SubscribeBatchSize, c.Stream.MaxSubscriptions)
	}
	if c.Stream.PingInterval <= 0 {
		return errors.New("stream.ping_interval must be positive")
	}
	if c.Stream.PongTimeout <= 0 {
		return errors.New("stream.pong_timeout must be positive")
	}
	if c.Stream.MaxReconnectAttempts < 1 {
		return errors.New("stream.max_reconnect_attempts must be >= 1")
	}

	if c.Mappings.MaxEntries < 10 {
		return fmt.Errorf("mappings.max_entries must be >= 10, got %d", c.Mappings.MaxEntries)
	}
	if c.Mappings.RefreshInterval <= 0 {
		return errors.New("mappings.refresh_interval must be positive")
	}

	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be positive")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	return nil
}

func (db *DBConfig) validate() error {
	if db.Host == "" {
		return errors.New("database.host is required")
	}
	if db.Name == "" {
		return errors.New("database.name is required")
	}
	if db.User == "" {
		return errors.New("database.user is required")
	}
	if db.Password == "" {
		return errors.New("database.password is required")
	}
	if db.MaxConns < 1 {
		return errors.New("database.max_conns must be >= 1")
	}
	if db.MinConns < 0 {
		return errors.New("database.min_conns must be >= 0")
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("database.min_conns (%d) cannot exceed max_conns (%d)", db.MinConns, db.MaxConns)
	}
	return nil
}
