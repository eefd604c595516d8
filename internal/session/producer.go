package session

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"

	"streamview/internal/broker"
	"streamview/internal/logger"
	"streamview/pkg/logging"
	"streamview/pkg/metrics"
	"streamview/pkg/tracing"
)

type ProducerConfig struct {
	ServiceURL string
	Token      string
	Topic      string
	Verbose    bool
}

type SendRequest struct {
	Payload    []byte
	Key        string
	Properties map[string]string
}

// Producer publishes to one topic. Callers must Close it after every Send
// attempt; Publish does that for them.
type Producer struct {
	cfg      ProducerConfig
	opts     Options
	registry *broker.Registry
	logger   logger.Logger

	mu       sync.Mutex
	state    State
	driver   string
	client   broker.Client
	producer broker.Producer
}

func NewProducer(registry *broker.Registry, cfg ProducerConfig, opts Options, log logger.Logger) *Producer {
	return &Producer{
		cfg:      cfg,
		opts:     opts.withDefaults(),
		registry: registry,
		logger:   log,
		state:    StateCreated,
	}
}

func (p *Producer) Driver() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.driver
}

func (p *Producer) Connect(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateCreated {
		state := p.state
		p.mu.Unlock()
		if state == StateClosed {
			return ErrSessionClosed
		}
		return fmt.Errorf("connect called in state %s", state)
	}
	p.mu.Unlock()

	dialer, endpoint, driver, err := p.registry.Resolve(p.cfg.ServiceURL)
	if err != nil {
		return fmt.Errorf("Failed to create producer: %w", err)
	}
	p.mu.Lock()
	p.driver = driver
	p.mu.Unlock()

	connectCtx, cancel := context.WithTimeout(ctx, p.opts.ConnectTimeout)
	defer cancel()

	client, err := dialer.Dial(connectCtx, broker.ClientOptions{
		Endpoint:       endpoint,
		Token:          p.cfg.Token,
		ConnectTimeout: p.opts.ConnectTimeout,
	})
	if err != nil {
		metrics.IncConnectFailure(driver, "producer")
		return fmt.Errorf("Failed to create producer: %w", err)
	}

	producer, err := client.CreateProducer(connectCtx, broker.ProducerOptions{Topic: p.cfg.Topic})
	if err != nil {
		metrics.IncConnectFailure(driver, "producer")
		if closeErr := client.Close(); closeErr != nil {
			p.logger.DebugwCtx(ctx, "Failed to close client", "error", closeErr)
		}
		return fmt.Errorf("Failed to create producer: %w", err)
	}

	if p.cfg.Verbose {
		p.logger.InfowCtx(ctx, "Producer options",
			"service_url", p.cfg.ServiceURL,
			"driver", driver,
			"topic", p.cfg.Topic,
			"token", logging.SanitizeToken(p.cfg.Token),
		)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateCreated {
		_ = producer.Close()
		_ = client.Close()
		return ErrSessionClosed
	}
	p.client = client
	p.producer = producer
	p.state = StateConnected
	return nil
}

// Send publishes req and returns the broker id of the stored message.
func (p *Producer) Send(ctx context.Context, req SendRequest) (string, error) {
	p.mu.Lock()
	producer, state, driver := p.producer, p.state, p.driver
	p.mu.Unlock()

	switch state {
	case StateConnected:
	case StateClosed:
		return "", ErrSessionClosed
	default:
		return "", ErrNotConnected
	}

	ctx, span := tracing.StartSendSpan(ctx, driver, p.cfg.Topic)
	defer span.End()

	props := make(map[string]string, len(req.Properties)+2)
	maps.Copy(props, req.Properties)
	props = tracing.InjectIntoProperties(ctx, props)

	id, err := producer.Send(ctx, broker.OutboundMessage{
		Payload:    req.Payload,
		Key:        req.Key,
		Properties: props,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("send to %s: %w", p.cfg.Topic, err)
	}

	return id, nil
}

// Close releases the producer and then the client, each attempted regardless
// of the other's outcome. It is idempotent.
func (p *Producer) Close() {
	p.mu.Lock()
	if p.state == StateClosed {
		p.mu.Unlock()
		return
	}
	producer, client := p.producer, p.client
	p.producer, p.client = nil, nil
	p.state = StateClosed
	p.mu.Unlock()

	if producer != nil {
		if err := producer.Close(); err != nil {
			p.logger.Debugw("Failed to close producer", "error", err)
		}
	}
	if client != nil {
		if err := client.Close(); err != nil {
			p.logger.Debugw("Failed to close client", "error", err)
		}
	}
}

// Publish connects, sends one message and always closes before returning.
func Publish(ctx context.Context, registry *broker.Registry, cfg ProducerConfig, opts Options, req SendRequest, log logger.Logger) (string, error) {
	p := NewProducer(registry, cfg, opts, log)

	start := time.Now()
	status := "error"
	defer func() {
		metrics.ObserveProducerSend(p.Driver(), status, time.Since(start))
	}()
	defer p.Close()

	if err := p.Connect(ctx); err != nil {
		return "", err
	}

	id, err := p.Send(ctx, req)
	if err != nil {
		return "", err
	}

	status = "ok"
	log.InfowCtx(ctx, "Message published", "message_id", id, "driver", p.Driver())
	return id, nil
}
