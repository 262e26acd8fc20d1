package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL        = "https://api.elections.kalshi.com/trade-api/v2"
	DefaultWSURL          = "wss://api.elections.kalshi.com/trade-api/ws/v2"
	DefaultAPITimeout     = 30 * time.Second
	DefaultMaxRetries     = 3
	DefaultRequestSpacing = 100 * time.Millisecond

	DefaultDBPort    = 5432
	DefaultDBSSLMode = "prefer"
	DefaultMaxConns  = 10
	DefaultMinConns  = 2

	DefaultRedisAddr = "localhost:6379"

	DefaultMaxSubscriptions     = 900
	DefaultSubscribeBatchSize   = 50
	DefaultSubscribeBatchDelay  = 100 * time.Millisecond
	DefaultPingInterval         = 30 * time.Second
	DefaultPongTimeout          = 5 * time.Second
	DefaultMaxReconnectAttempts = 10

	DefaultMappingMaxEntries = 2000
	DefaultRefreshInterval   = 5 * time.Minute
	DefaultSnapshotTTL       = 30 * time.Minute

	DefaultPollInterval = 10 * time.Minute

	DefaultServerPort = 8080
)

func (c *Config) applyDefaults() {
	if c.Exchange.RestURL == "" {
		c.Exchange.RestURL = DefaultRestURL
	}
	if c.Exchange.WSURL == "" {
		c.Exchange.WSURL = DefaultWSURL
	}
	if c.Exchange.Timeout == 0 {
		c.Exchange.Timeout = DefaultAPITimeout
	}
	if c.Exchange.MaxRetries == 0 {
		c.Exchange.MaxRetries = DefaultMaxRetries
	}
	if c.Exchange.RequestSpacing == 0 {
		c.Exchange.RequestSpacing = DefaultRequestSpacing
	}

	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = DefaultRedisAddr
	}

	if c.Stream.MaxSubscriptions == 0 {
		c.Stream.MaxSubscriptions = DefaultMaxSubscriptions
	}
	if c.Stream.SubscribeBatchSize == 0 {
		c.Stream.SubscribeBatchSize = DefaultSubscribeBatchSize
	}
	if c.Stream.SubscribeBatchDelay == 0 {
		c.Stream.SubscribeBatchDelay = DefaultSubscribeBatchDelay
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}
	if c.Stream.PongTimeout == 0 {
		c.Stream.PongTimeout = DefaultPongTimeout
	}
	if c.Stream.MaxReconnectAttempts == 0 {
		c.Stream.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}

	if c.Mappings.MaxEntries == 0 {
		c.Mappings.MaxEntries = DefaultMappingMaxEntries
	}
	if c.Mappings.RefreshInterval == 0 {
		c.Mappings.RefreshInterval = DefaultRefreshInterval
	}
	if c.Mappings.SnapshotTTL == 0 {
		c.Mappings.SnapshotTTL = DefaultSnapshotTTL
	}

	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}

	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
}
