package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "https://api.example.com/v1/jobs", cfg.Upstream.URL)
				assert.Equal(t, "https://relay.example.com/webhook/photo", cfg.Upstream.CallbackURL)
				assert.Equal(t, "photo", cfg.Upstream.FileField)
				assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
				assert.Equal(t, "id_gen", cfg.Callback.IDField)
				assert.Equal(t, "image", cfg.Callback.FileField)
				assert.Equal(t, CorrelationBackendMemory, cfg.Correlation.Backend)
				assert.Equal(t, time.Hour, cfg.Correlation.TTL)
				require.Len(t, cfg.Credits.Packs, 2)
				assert.Equal(t, "starter", cfg.Credits.Packs[0].PackID)
				assert.Equal(t, 5, cfg.Credits.Packs[0].Credits)
				assert.Equal(t, "photo-relay", cfg.App.Name)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Upstream: UpstreamConfig{
			URL:         "https://api.example.com/v1/jobs",
			CallbackURL: "https://relay.example.com/webhook/photo",
		},
		Correlation: CorrelationConfig{Backend: CorrelationBackendMemory},
		Ledger:      LedgerConfig{Backend: LedgerBackendMemory},
		Credits: CreditsConfig{
			Packs: []PackConfig{
				{PackID: "starter", Title: "Starter pack", Credits: 5, Price: 199},
			},
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "missing upstream url",
			mutate:    func(c *Config) { c.Upstream.URL = "" },
			wantErr:   true,
			errString: "upstream url is required",
		},
		{
			name:      "missing callback url",
			mutate:    func(c *Config) { c.Upstream.CallbackURL = "" },
			wantErr:   true,
			errString: "upstream callback_url is required",
		},
		{
			name: "redis backend without addr",
			mutate: func(c *Config) {
				c.Correlation.Backend = CorrelationBackendRedis
			},
			wantErr:   true,
			errString: "redis addr is required",
		},
		{
			name: "redis backend with addr",
			mutate: func(c *Config) {
				c.Correlation.Backend = CorrelationBackendRedis
				c.Redis.Addr = "localhost:6379"
			},
			wantErr: false,
		},
		{
			name:      "unknown correlation backend",
			mutate:    func(c *Config) { c.Correlation.Backend = "etcd" },
			wantErr:   true,
			errString: "unknown correlation backend",
		},
		{
			name: "postgres ledger without database",
			mutate: func(c *Config) {
				c.Ledger.Backend = LedgerBackendPostgres
			},
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name: "postgres ledger with database",
			mutate: func(c *Config) {
				c.Ledger.Backend = LedgerBackendPostgres
				c.Database.Host = "localhost"
				c.Database.Port = 5432
				c.Database.Database = "relay"
			},
			wantErr: false,
		},
		{
			name: "events enabled without rabbitmq",
			mutate: func(c *Config) {
				c.Events.Enabled = true
			},
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name: "events enabled with rabbitmq",
			mutate: func(c *Config) {
				c.Events.Enabled = true
				c.RabbitMQ.Host = "localhost"
				c.RabbitMQ.Port = 5672
				c.RabbitMQ.Exchange.Name = "relay_events"
			},
			wantErr: false,
		},
		{
			name:      "no credit packs",
			mutate:    func(c *Config) { c.Credits.Packs = nil },
			wantErr:   true,
			errString: "at least one credit pack",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
