// Package kafka is the kafka-go driver, registered for kafka:// and
// kafka+ssl:// service urls. Subscriptions are consumer groups named after
// the subscription; acknowledgement commits the message offset.
package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"

	"streamview/internal/broker"
	"streamview/internal/logger"
)

type Config struct {
	MinBytes int
	MaxBytes int
}

type Dialer struct {
	cfg    Config
	logger logger.Logger
}

func NewDialer(cfg Config, log logger.Logger) *Dialer {
	return &Dialer{cfg: cfg, logger: log}
}

// Dial checks that at least one seed broker accepts a connection. Readers and
// producers open their own connections later.
func (d *Dialer) Dial(ctx context.Context, opts broker.ClientOptions) (broker.Client, error) {
	var tlsConfig *tls.Config
	if opts.Endpoint.TLS {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	var mechanism sasl.Mechanism
	if opts.Token != "" {
		mechanism = oauthBearer{token: opts.Token}
	}

	dialer := &kafka.Dialer{
		Timeout:       opts.ConnectTimeout,
		DualStack:     true,
		TLS:           tlsConfig,
		SASLMechanism: mechanism,
	}

	var lastErr error
	for _, host := range opts.Endpoint.Hosts {
		conn, err := dialer.DialContext(ctx, "tcp", host)
		if err != nil {
			lastErr = err
			continue
		}
		_ = conn.Close()
		lastErr = nil
		break
	}
	if lastErr != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.Endpoint.URL(), lastErr)
	}

	return &client{
		cfg:    d.cfg,
		hosts:  opts.Endpoint.Hosts,
		dialer: dialer,
		transport: &kafka.Transport{
			DialTimeout: opts.ConnectTimeout,
			TLS:         tlsConfig,
			SASL:        mechanism,
		},
		logger: d.logger,
		closed: make(chan struct{}),
		subs:   make(map[*subscription]struct{}),
	}, nil
}

type client struct {
	cfg       Config
	hosts     []string
	dialer    *kafka.Dialer
	transport *kafka.Transport
	logger    logger.Logger

	mu        sync.Mutex
	subs      map[*subscription]struct{}
	closeOnce sync.Once
	closed    chan struct{}
}

func (c *client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *client) Subscribe(ctx context.Context, opts broker.SubscribeOptions) (broker.Subscription, error) {
	if c.isClosed() {
		return nil, broker.ErrClosed
	}

	if opts.Type == broker.SubscriptionExclusive {
		if err := checkExclusive(ctx, c.adminClient(), opts.Subscription); err != nil {
			return nil, err
		}
	}

	readerCfg := kafka.ReaderConfig{
		Brokers:        c.hosts,
		GroupID:        opts.Subscription,
		Topic:          opts.Topic,
		Dialer:         c.dialer,
		MinBytes:       c.cfg.MinBytes,
		MaxBytes:       c.cfg.MaxBytes,
		GroupBalancers: groupBalancers(opts.Type, time.Now()),
		StartOffset:    startOffset(opts.Position),
	}
	if err := readerCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reader config: %w", err)
	}

	c.logger.Debugw("Creating Kafka reader",
		"topic", opts.Topic,
		"brokers", c.hosts,
		"group_id", opts.Subscription,
		"subscription_type", opts.Type.String(),
		"start_offset", readerCfg.StartOffset,
	)

	sub := &subscription{
		client: c,
		reader: kafka.NewReader(readerCfg),
		closed: make(chan struct{}),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed() {
		_ = sub.reader.Close()
		return nil, broker.ErrClosed
	}
	c.subs[sub] = struct{}{}

	return sub, nil
}

func (c *client) CreateProducer(ctx context.Context, opts broker.ProducerOptions) (broker.Producer, error) {
	if c.isClosed() {
		return nil, broker.ErrClosed
	}

	kc := c.adminClient()
	partitions, err := lookupPartitions(ctx, kc, opts.Topic)
	if err != nil {
		return nil, err
	}

	return &producer{
		client:     kc,
		topic:      opts.Topic,
		partitions: partitions,
		closed:     make(chan struct{}),
	}, nil
}

func (c *client) adminClient() *kafka.Client {
	return &kafka.Client{
		Addr:      kafka.TCP(c.hosts...),
		Timeout:   c.dialer.Timeout,
		Transport: c.transport,
	}
}

// Close closes every subscription still open on this client.
func (c *client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)

		c.mu.Lock()
		subs := make([]*subscription, 0, len(c.subs))
		for s := range c.subs {
			subs = append(subs, s)
		}
		c.mu.Unlock()

		for _, s := range subs {
			if closeErr := s.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}
		c.transport.CloseIdleConnections()
	})
	return err
}

func (c *client) forget(s *subscription) {
	c.mu.Lock()
	delete(c.subs, s)
	c.mu.Unlock()
}

type subscription struct {
	client    *client
	reader    *kafka.Reader
	closeOnce sync.Once
	closed    chan struct{}
}

func (s *subscription) Receive(ctx context.Context, timeout time.Duration) (broker.Message, error) {
	select {
	case <-s.closed:
		return nil, broker.ErrClosed
	default:
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	m, err := s.reader.FetchMessage(fetchCtx)
	if err == nil {
		return &message{raw: m}, nil
	}

	select {
	case <-s.closed:
		return nil, broker.ErrClosed
	default:
	}
	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return nil, broker.ErrReceiveTimeout
	case isReaderClosed(err):
		return nil, broker.ErrClosed
	}
	return nil, err
}

func (s *subscription) Ack(ctx context.Context, msg broker.Message) error {
	m, ok := msg.(*message)
	if !ok {
		return fmt.Errorf("ack: unexpected message type %T", msg)
	}
	return s.reader.CommitMessages(ctx, m.raw)
}

func (s *subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.reader.Close()
		s.client.forget(s)
	})
	return err
}
