package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownGrace)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowOrigins)
	assert.Equal(t, "kafka", cfg.Broker.DefaultDriver)
	assert.Equal(t, time.Second, cfg.Broker.ReceiveTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Broker.RetryBackoff)
	assert.Equal(t, 10*time.Second, cfg.Broker.NATS.LeaseTTL)
	assert.Equal(t, "viewer-sub", cfg.Stream.DefaultSubscription)
	assert.Equal(t, 15*time.Second, cfg.Stream.KeepaliveInterval)
	assert.False(t, cfg.Send.RateLimit.Enabled)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
  shutdown_grace: 3s
broker:
  default_driver: nats
  receive_timeout: 250ms
stream:
  default_subscription: ops-viewer
send:
  rate_limit:
    enabled: true
    rps: 5
    burst: 5
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownGrace)
	assert.Equal(t, "nats", cfg.Broker.DefaultDriver)
	assert.Equal(t, 250*time.Millisecond, cfg.Broker.ReceiveTimeout)
	assert.Equal(t, "ops-viewer", cfg.Stream.DefaultSubscription)
	assert.True(t, cfg.Send.RateLimit.Enabled)
	assert.Equal(t, 5.0, cfg.Send.RateLimit.RPS)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "4000")
	t.Setenv("BROKER_DEFAULT_DRIVER", "redpanda")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "redpanda", cfg.Broker.DefaultDriver)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidateStatic(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(cfg *Config)
		field  string
	}{
		{
			name:   "port out of range",
			mutate: func(cfg *Config) { cfg.Server.Port = 70000 },
			field:  "server.port",
		},
		{
			name:   "zero shutdown grace",
			mutate: func(cfg *Config) { cfg.Server.ShutdownGrace = 0 },
			field:  "server.shutdown_grace",
		},
		{
			name:   "unknown driver",
			mutate: func(cfg *Config) { cfg.Broker.DefaultDriver = "pulsar" },
			field:  "broker.default_driver",
		},
		{
			name:   "zero receive timeout",
			mutate: func(cfg *Config) { cfg.Broker.ReceiveTimeout = 0 },
			field:  "broker.receive_timeout",
		},
		{
			name:   "sub-second lease ttl",
			mutate: func(cfg *Config) { cfg.Broker.NATS.LeaseTTL = 500 * time.Millisecond },
			field:  "broker.nats.lease_ttl",
		},
		{
			name:   "empty default subscription",
			mutate: func(cfg *Config) { cfg.Stream.DefaultSubscription = " " },
			field:  "stream.default_subscription",
		},
		{
			name: "rate limit without rps",
			mutate: func(cfg *Config) {
				cfg.Send.RateLimit.Enabled = true
				cfg.Send.RateLimit.RPS = 0
			},
			field: "send.rate_limit.rps",
		},
		{
			name:   "bad logging level",
			mutate: func(cfg *Config) { cfg.Logging.Level = "trace" },
			field:  "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := ValidateStatic(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	var err error = &ValidationError{Field: "server.port", Message: "bad"}
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "validation error for field 'server.port': bad", err.Error())
}
