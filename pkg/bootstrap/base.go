package bootstrap

import (
	"context"
	"fmt"

	"streamview/internal/broker"
	"streamview/internal/broker/jetstream"
	"streamview/internal/broker/kafka"
	"streamview/internal/broker/redpanda"
	"streamview/internal/config"
	"streamview/internal/constants"
	"streamview/internal/logger"
)

type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Registry *broker.Registry
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

// InitBroker registers every broker driver under its service url schemes.
// Nothing is dialed here: each stream or send opens its own client.
func (b *Base) InitBroker() error {
	brokerCfg := b.Config.Broker
	if brokerCfg.DefaultDriver == "" {
		return fmt.Errorf("broker default driver is not set")
	}

	r := broker.NewRegistry(brokerCfg.DefaultDriver)
	r.Register(constants.DriverKafka, kafka.NewDialer(kafka.Config{
		MinBytes: brokerCfg.Kafka.MinBytes,
		MaxBytes: brokerCfg.Kafka.MaxBytes,
	}, b.Logger), "kafka", "kafka+ssl")
	r.Register(constants.DriverRedpanda, redpanda.NewDialer(b.Logger), "redpanda", "redpanda+ssl")
	r.Register(constants.DriverJetStream, jetstream.NewDialer(jetstream.Config{
		MaxAckPending: brokerCfg.NATS.MaxAckPending,
		LeaseTTL:      brokerCfg.NATS.LeaseTTL,
	}, b.Logger), "nats", "tls")

	b.Registry = r
	b.Logger.Infow("Broker drivers registered",
		"default_driver", brokerCfg.DefaultDriver,
		"drivers", []string{constants.DriverKafka, constants.DriverRedpanda, constants.DriverJetStream},
	)
	return nil
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error
	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
