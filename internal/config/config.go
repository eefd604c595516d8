package config

import (
	"time"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Broker  BrokerConfig  `mapstructure:"broker"`
	Stream  StreamConfig  `mapstructure:"stream"`
	Send    SendConfig    `mapstructure:"send"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// ServerConfig has no write timeout on purpose: event streams stay open for
// as long as the subscriber is attached.
type ServerConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
	StaticDir     string        `mapstructure:"static_dir"`

	// CORSAllowOrigins lists origins allowed to call the api; "*" allows any.
	CORSAllowOrigins []string `mapstructure:"cors_allow_origins"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type BrokerConfig struct {
	DefaultDriver  string        `mapstructure:"default_driver"`
	ReceiveTimeout time.Duration `mapstructure:"receive_timeout"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	AckTimeout     time.Duration `mapstructure:"ack_timeout"`
	Kafka          KafkaConfig   `mapstructure:"kafka"`
	NATS           NATSConfig    `mapstructure:"nats"`
}

type KafkaConfig struct {
	MinBytes int `mapstructure:"min_bytes"`
	MaxBytes int `mapstructure:"max_bytes"`
}

type NATSConfig struct {
	MaxAckPending int           `mapstructure:"max_ack_pending"`
	LeaseTTL      time.Duration `mapstructure:"lease_ttl"`
}

type StreamConfig struct {
	DefaultSubscription string        `mapstructure:"default_subscription"`
	KeepaliveInterval   time.Duration `mapstructure:"keepalive_interval"`
}

type SendConfig struct {
	RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type RateLimitConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	RPS             float64       `mapstructure:"rps"`
	Burst           int           `mapstructure:"burst"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MaxAge          time.Duration `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
