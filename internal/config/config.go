package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Correlation store backends
const (
	CorrelationBackendMemory = "memory"
	CorrelationBackendRedis  = "redis"
)

// Ledger backends
const (
	LedgerBackendMemory   = "memory"
	LedgerBackendPostgres = "postgres"
)

// Config represents the complete application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Upstream    UpstreamConfig    `yaml:"upstream"`
	Callback    CallbackConfig    `yaml:"callback"`
	Correlation CorrelationConfig `yaml:"correlation"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Credits     CreditsConfig     `yaml:"credits"`
	Redis       RedisConfig       `yaml:"redis"`
	Database    DatabaseConfig    `yaml:"database"`
	RabbitMQ    RabbitMQConfig    `yaml:"rabbitmq"`
	Events      EventsConfig      `yaml:"events"`
	Bot         BotConfig         `yaml:"bot"`
	Logging     LoggingConfig     `yaml:"logging"`
	App         AppConfig         `yaml:"app"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// UpstreamConfig holds the external image-transformation API configuration
type UpstreamConfig struct {
	// URL is the job-start endpoint.
	URL string `yaml:"url"`
	// CallbackURL is the publicly reachable webhook the upstream calls
	// back with results.
	CallbackURL string `yaml:"callback_url"`
	// FileField is the multipart field name for the outbound photo.
	FileField string `yaml:"file_field"`
	// AuthHeaderName/AuthHeaderValue form an optional static auth header.
	AuthHeaderName  string        `yaml:"auth_header_name"`
	AuthHeaderValue string        `yaml:"auth_header_value"`
	Timeout         time.Duration `yaml:"timeout"`
}

// CallbackConfig holds inbound webhook field names
type CallbackConfig struct {
	IDField            string `yaml:"id_field"`
	FileField          string `yaml:"file_field"`
	MaxMultipartMemory int64  `yaml:"max_multipart_memory"`
}

// CorrelationConfig selects the job correlation store backend
type CorrelationConfig struct {
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
}

// LedgerConfig selects the credit ledger backend
type LedgerConfig struct {
	Backend string `yaml:"backend"`
}

// CreditsConfig holds the static credit pack catalog
type CreditsConfig struct {
	Packs []PackConfig `yaml:"packs"`
}

// PackConfig is one purchasable credit pack
type PackConfig struct {
	PackID  string `yaml:"pack_id"`
	Title   string `yaml:"title"`
	Credits int    `yaml:"credits"`
	// Price is in the payment provider's smallest unit.
	Price int `yaml:"price"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// EventsConfig toggles lifecycle event publishing
type EventsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// BotConfig holds chat event processing configuration
type BotConfig struct {
	Concurrency int `yaml:"concurrency"`
	QueueSize   int `yaml:"queue_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Upstream.URL == "" {
		return fmt.Errorf("upstream url is required")
	}

	if c.Upstream.CallbackURL == "" {
		return fmt.Errorf("upstream callback_url is required")
	}

	switch c.Correlation.Backend {
	case "", CorrelationBackendMemory:
	case CorrelationBackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required for the redis correlation backend")
		}
	default:
		return fmt.Errorf("unknown correlation backend: %q", c.Correlation.Backend)
	}

	switch c.Ledger.Backend {
	case "", LedgerBackendMemory:
	case LedgerBackendPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required for the postgres ledger backend")
		}
		if c.Database.Port < MinPort || c.Database.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required for the postgres ledger backend")
		}
	default:
		return fmt.Errorf("unknown ledger backend: %q", c.Ledger.Backend)
	}

	if c.Events.Enabled {
		if c.RabbitMQ.Host == "" {
			return fmt.Errorf("rabbitmq host is required when event publishing is enabled")
		}
		if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
		}
		if c.RabbitMQ.Exchange.Name == "" {
			return fmt.Errorf("rabbitmq exchange name is required when event publishing is enabled")
		}
	}

	if len(c.Credits.Packs) == 0 {
		return fmt.Errorf("at least one credit pack is required")
	}

	return nil
}
