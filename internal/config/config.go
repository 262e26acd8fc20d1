package config

import "time"

// Config is the root configuration shared by the ingestor and front-end
// binaries. Each binary reads the sections it needs; unused sections may be
// omitted from that binary's config file.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Database DBConfig       `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Stream   StreamConfig   `yaml:"stream"`
	Mappings MappingsConfig `yaml:"mappings"`
	Poller   PollerConfig   `yaml:"poller"`
	Server   ServerConfig   `yaml:"server"`
}

// InstanceConfig identifies this process in logs and health output.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ExchangeConfig holds exchange API settings. APIKey and PrivateKeyPath are
// optional: without them the stream connects unauthenticated.
type ExchangeConfig struct {
	RestURL        string        `yaml:"rest_url"`
	WSURL          string        `yaml:"ws_url"`
	APIKey         string        `yaml:"api_key"`
	PrivateKeyPath string        `yaml:"private_key_path"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RequestSpacing time.Duration `yaml:"request_spacing"`
}

// DBConfig holds the Postgres connection settings.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RedisConfig holds the Redis connection used for price fan-out, registry
// refresh signals and the mapping snapshot.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StreamConfig holds websocket stream settings.
type StreamConfig struct {
	MaxSubscriptions     int           `yaml:"max_subscriptions"`
	SubscribeBatchSize   int           `yaml:"subscribe_batch_size"`
	SubscribeBatchDelay  time.Duration `yaml:"subscribe_batch_delay"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	PongTimeout          time.Duration `yaml:"pong_timeout"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
}

// MappingsConfig holds mapping cache settings.
type MappingsConfig struct {
	MaxEntries      int           `yaml:"max_entries"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	SnapshotTTL     time.Duration `yaml:"snapshot_ttl"`
}

// PollerConfig holds market fetch settings. Series lists the exchange
// series to poll (e.g. KXNBAGAME); the ingestor requires at least one.
type PollerConfig struct {
	Interval time.Duration `yaml:"interval"`
	Series   []string      `yaml:"series"`
}

// ServerConfig holds the HTTP listener settings (health endpoints on the
// ingestor, the full client-facing surface on front-end workers).
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}
