package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"streamview/internal/constants"
)

// LoadConfig reads configFile (optional; an empty path means defaults plus
// environment) and validates the result.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVariables(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", constants.DefaultHost)
	v.SetDefault("server.port", constants.DefaultPort)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.shutdown_grace", constants.DefaultShutdownGrace)
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.cors_allow_origins", []string{"*"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("broker.default_driver", constants.DriverKafka)
	v.SetDefault("broker.receive_timeout", constants.DefaultReceiveTimeout)
	v.SetDefault("broker.retry_backoff", constants.DefaultRetryBackoff)
	v.SetDefault("broker.connect_timeout", constants.DefaultConnectTimeout)
	v.SetDefault("broker.ack_timeout", constants.DefaultAckTimeout)
	v.SetDefault("broker.kafka.min_bytes", 1)
	v.SetDefault("broker.kafka.max_bytes", 10_000_000)
	v.SetDefault("broker.nats.max_ack_pending", 0)
	v.SetDefault("broker.nats.lease_ttl", constants.DefaultLeaseTTL)

	v.SetDefault("stream.default_subscription", constants.DefaultSubscription)
	v.SetDefault("stream.keepalive_interval", constants.DefaultKeepaliveInterval)

	v.SetDefault("send.rate_limit.enabled", false)
	v.SetDefault("send.rate_limit.rps", 10.0)
	v.SetDefault("send.rate_limit.burst", 20)
	v.SetDefault("send.rate_limit.cleanup_interval", "5m")
	v.SetDefault("send.rate_limit.max_age", "10m")

	v.SetDefault("send.circuit_breaker.enabled", false)
	v.SetDefault("send.circuit_breaker.max_requests", 3)
	v.SetDefault("send.circuit_breaker.interval", "60s")
	v.SetDefault("send.circuit_breaker.timeout", "30s")
	v.SetDefault("send.circuit_breaker.failure_ratio", 0.5)
	v.SetDefault("send.circuit_breaker.min_requests", 3)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", constants.ServiceName)
	v.SetDefault("tracing.otlp.endpoint", "")
	v.SetDefault("tracing.otlp.insecure", false)
	v.SetDefault("tracing.sampler.type", "always_on")
	v.SetDefault("tracing.sampler.param", 1.0)
}

func bindEnvVariables(v *viper.Viper) {
	v.BindEnv("server.host", "SERVER_HOST", "HOST")
	v.BindEnv("server.port", "SERVER_PORT", "PORT")
	v.BindEnv("server.shutdown_grace", "SERVER_SHUTDOWN_GRACE")
	v.BindEnv("server.static_dir", "SERVER_STATIC_DIR")

	v.BindEnv("logging.level", "LOGGING_LEVEL")
	v.BindEnv("logging.format", "LOGGING_FORMAT")

	v.BindEnv("broker.default_driver", "BROKER_DEFAULT_DRIVER")
	v.BindEnv("broker.receive_timeout", "BROKER_RECEIVE_TIMEOUT")
	v.BindEnv("broker.retry_backoff", "BROKER_RETRY_BACKOFF")

	v.BindEnv("stream.default_subscription", "STREAM_DEFAULT_SUBSCRIPTION")

	v.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	v.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}
