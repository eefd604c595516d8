package config

import (
	"fmt"
	"strings"
	"time"

	"streamview/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateLogging(cfg.Logging); err != nil {
		errors = append(errors, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errors = append(errors, err)
	}

	if err := validateStream(cfg.Stream); err != nil {
		errors = append(errors, err)
	}

	if err := validateSend(cfg.Send); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeout < 0 {
		return &ValidationError{
			Field:   "server.read_timeout",
			Message: "read timeout must be non-negative",
		}
	}

	if cfg.ShutdownGrace <= 0 {
		return &ValidationError{
			Field:   "server.shutdown_grace",
			Message: "shutdown grace period must be positive",
		}
	}

	return nil
}

func validateLogging(cfg LoggingConfig) error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if cfg.Level != "" && !validLevels[strings.ToLower(cfg.Level)] {
		return &ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level: %s (valid: debug, info, warn, error)", cfg.Level),
		}
	}

	if cfg.Format != "" && cfg.Format != "json" && cfg.Format != "console" {
		return &ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid format: %s (valid: json, console)", cfg.Format),
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	switch cfg.DefaultDriver {
	case constants.DriverKafka, constants.DriverRedpanda, constants.DriverJetStream:
	default:
		return &ValidationError{
			Field:   "broker.default_driver",
			Message: fmt.Sprintf("unknown broker driver: %s (supported: kafka, redpanda, nats)", cfg.DefaultDriver),
		}
	}

	if cfg.ReceiveTimeout <= 0 {
		return &ValidationError{
			Field:   "broker.receive_timeout",
			Message: "receive timeout must be positive",
		}
	}

	if cfg.RetryBackoff <= 0 {
		return &ValidationError{
			Field:   "broker.retry_backoff",
			Message: "retry backoff must be positive",
		}
	}

	if cfg.ConnectTimeout <= 0 {
		return &ValidationError{
			Field:   "broker.connect_timeout",
			Message: "connect timeout must be positive",
		}
	}

	if cfg.AckTimeout <= 0 {
		return &ValidationError{
			Field:   "broker.ack_timeout",
			Message: "ack timeout must be positive",
		}
	}

	if cfg.Kafka.MinBytes < 0 || cfg.Kafka.MaxBytes < 0 {
		return &ValidationError{
			Field:   "broker.kafka",
			Message: "min_bytes and max_bytes must be non-negative",
		}
	}

	if cfg.Kafka.MaxBytes > 0 && cfg.Kafka.MinBytes > cfg.Kafka.MaxBytes {
		return &ValidationError{
			Field:   "broker.kafka.min_bytes",
			Message: "min_bytes must be less than or equal to max_bytes",
		}
	}

	if cfg.NATS.MaxAckPending < 0 {
		return &ValidationError{
			Field:   "broker.nats.max_ack_pending",
			Message: "max_ack_pending must be non-negative",
		}
	}

	if cfg.NATS.LeaseTTL < time.Second {
		return &ValidationError{
			Field:   "broker.nats.lease_ttl",
			Message: "lease_ttl must be at least 1s",
		}
	}

	return nil
}

func validateStream(cfg StreamConfig) error {
	if strings.TrimSpace(cfg.DefaultSubscription) == "" {
		return &ValidationError{
			Field:   "stream.default_subscription",
			Message: "default subscription name is required",
		}
	}

	if cfg.KeepaliveInterval < 0 {
		return &ValidationError{
			Field:   "stream.keepalive_interval",
			Message: "keepalive interval must be non-negative (0 disables keepalives)",
		}
	}

	return nil
}

func validateSend(cfg SendConfig) error {
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RPS <= 0 {
			return &ValidationError{
				Field:   "send.rate_limit.rps",
				Message: "rps must be positive when rate limiting is enabled",
			}
		}
		if cfg.RateLimit.Burst <= 0 {
			return &ValidationError{
				Field:   "send.rate_limit.burst",
				Message: "burst must be positive when rate limiting is enabled",
			}
		}
	}

	if cfg.CircuitBreaker.Enabled {
		if cfg.CircuitBreaker.FailureRatio <= 0 || cfg.CircuitBreaker.FailureRatio > 1 {
			return &ValidationError{
				Field:   "send.circuit_breaker.failure_ratio",
				Message: fmt.Sprintf("failure ratio must be in (0, 1], got %v", cfg.CircuitBreaker.FailureRatio),
			}
		}
		if cfg.CircuitBreaker.Timeout <= 0 {
			return &ValidationError{
				Field:   "send.circuit_breaker.timeout",
				Message: "open state timeout must be positive",
			}
		}
	}

	return nil
}
