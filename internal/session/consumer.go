package session

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	"streamview/internal/broker"
	"streamview/internal/logger"
	"streamview/pkg/logging"
	"streamview/pkg/metrics"
	"streamview/pkg/models"
	"streamview/pkg/retry"
	"streamview/pkg/tracing"
)

type ConsumerConfig struct {
	ServiceURL       string
	Token            string
	Topic            string
	Subscription     string
	SubscriptionType string
	InitialPosition  string
	Verbose          bool
}

// Consumer owns one subscription. Close may be called from any goroutine at
// any point, including while Connect or a receive is in flight.
type Consumer struct {
	cfg      ConsumerConfig
	opts     Options
	registry *broker.Registry
	logger   logger.Logger

	mu     sync.Mutex
	state  State
	driver string
	client broker.Client
	sub    broker.Subscription
	err    error

	closeOnce sync.Once
	done      chan struct{}
	streamed  atomic.Bool
}

func NewConsumer(registry *broker.Registry, cfg ConsumerConfig, opts Options, log logger.Logger) *Consumer {
	return &Consumer{
		cfg:      cfg,
		opts:     opts.withDefaults(),
		registry: registry,
		logger:   log,
		state:    StateCreated,
		done:     make(chan struct{}),
	}
}

func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Driver is the name of the broker driver chosen by Connect.
func (c *Consumer) Driver() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.driver
}

// Err reports the unrecoverable error that ended the message sequence.
func (c *Consumer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Consumer) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateCreated:
		c.state = StateConnecting
	case StateClosing, StateClosed:
		c.mu.Unlock()
		return ErrSessionClosed
	default:
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("connect called in state %s", state)
	}
	c.mu.Unlock()

	subType, ok := ParseSubscriptionType(c.cfg.SubscriptionType)
	if !ok {
		c.logger.WarnwCtx(ctx, "Unknown subscription type, defaulting to Exclusive",
			"subscription_type", c.cfg.SubscriptionType,
		)
	}
	position, ok := ParseInitialPosition(c.cfg.InitialPosition)
	if !ok {
		c.logger.WarnwCtx(ctx, "Unknown initial position, using broker default",
			"initial_position", c.cfg.InitialPosition,
		)
	}

	dialer, endpoint, driver, err := c.registry.Resolve(c.cfg.ServiceURL)
	if err != nil {
		return c.fail(ctx, err)
	}
	c.mu.Lock()
	c.driver = driver
	c.mu.Unlock()

	connectCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-connectCtx.Done():
		}
	}()

	if c.cfg.Verbose {
		c.logger.InfowCtx(ctx, "Subscribe options",
			"service_url", c.cfg.ServiceURL,
			"driver", driver,
			"topic", c.cfg.Topic,
			"subscription", c.cfg.Subscription,
			"subscription_type", subType.String(),
			"initial_position", position.String(),
			"token", logging.SanitizeToken(c.cfg.Token),
		)
	}

	client, err := dialer.Dial(connectCtx, broker.ClientOptions{
		Endpoint:       endpoint,
		Token:          c.cfg.Token,
		ConnectTimeout: c.opts.ConnectTimeout,
	})
	if err != nil {
		return c.fail(ctx, err)
	}

	sub, err := client.Subscribe(connectCtx, broker.SubscribeOptions{
		Topic:        c.cfg.Topic,
		Subscription: c.cfg.Subscription,
		Type:         subType,
		Position:     position,
	})
	if err != nil {
		c.release(ctx, nil, client)
		return c.fail(ctx, err)
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		c.state = StateClosed
		c.mu.Unlock()
		c.release(ctx, sub, client)
		return ErrSessionClosed
	}
	c.client = client
	c.sub = sub
	c.state = StateConnected
	c.mu.Unlock()

	c.logger.InfowCtx(ctx, "Consumer connected",
		"driver", driver,
		"subscription", c.cfg.Subscription,
		"subscription_type", subType.String(),
	)
	return nil
}

func (c *Consumer) fail(ctx context.Context, cause error) error {
	c.mu.Lock()
	if c.state != StateConnecting {
		c.state = StateClosed
		c.mu.Unlock()
		return ErrSessionClosed
	}
	c.state = StateFailed
	driver := c.driver
	c.mu.Unlock()

	metrics.IncConnectFailure(driver, "consumer")
	c.logger.WarnwCtx(ctx, "Consumer connect failed", "error", cause)
	return fmt.Errorf("Failed to create consumer: %w", cause)
}

// Messages returns the lazy message sequence. It can be ranged over once;
// each message is acknowledged after the loop body returns for it. The
// sequence ends when Close is called, ctx is done, or the subscription fails
// permanently, in which case Err reports why.
func (c *Consumer) Messages(ctx context.Context) iter.Seq[models.NormalizedMessage] {
	return func(yield func(models.NormalizedMessage) bool) {
		if !c.streamed.CompareAndSwap(false, true) {
			c.setErr(ErrAlreadyStreaming)
			return
		}

		c.mu.Lock()
		switch c.state {
		case StateConnected:
			c.state = StateStreaming
		case StateClosing, StateClosed:
			c.mu.Unlock()
			return
		default:
			c.mu.Unlock()
			c.setErr(ErrNotConnected)
			return
		}
		sub := c.sub
		driver := c.driver
		c.mu.Unlock()

		backoff := retry.ConstantBackoff(c.opts.RetryBackoff)
		for !c.stopped(ctx) {
			raw, err := sub.Receive(ctx, c.opts.ReceiveTimeout)
			if err != nil {
				switch {
				case errors.Is(err, broker.ErrReceiveTimeout):
					continue
				case c.stopped(ctx):
					return
				case errors.Is(err, broker.ErrClosed):
					c.setErr(fmt.Errorf("subscription ended: %w", err))
					return
				}

				metrics.IncReceiveError(driver)
				c.logger.WarnwCtx(ctx, "Receive failed, retrying",
					"error", err,
					"backoff", c.opts.RetryBackoff,
				)
				if !retry.Wait(ctx, c.done, backoff) {
					return
				}
				continue
			}

			_, span := tracing.StartDeliverSpan(ctx, driver, c.cfg.Topic, raw.Properties())
			cont := yield(models.Normalize(raw))
			c.ack(ctx, sub, raw, driver)
			span.End()
			if !cont {
				return
			}
		}
	}
}

func (c *Consumer) ack(ctx context.Context, sub broker.Subscription, msg broker.Message, driver string) {
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.AckTimeout)
	defer cancel()

	if err := sub.Ack(ackCtx, msg); err != nil {
		if c.stopped(ctx) {
			c.logger.DebugwCtx(ctx, "Ack after close failed", "message_id", msg.ID(), "error", err)
			return
		}
		metrics.IncAckFailure(driver)
		c.logger.WarnwCtx(ctx, "Ack failed", "message_id", msg.ID(), "error", err)
	}
}

func (c *Consumer) stopped(ctx context.Context) bool {
	select {
	case <-c.done:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (c *Consumer) setErr(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}

// Close signals cancellation and releases the subscription and client. It is
// idempotent and never fails; release errors are logged.
func (c *Consumer) Close() {
	c.closeOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		sub, client := c.sub, c.client
		c.sub, c.client = nil, nil
		connecting := c.state == StateConnecting
		switch c.state {
		case StateFailed:
		case StateCreated:
			c.state = StateClosed
		default:
			c.state = StateClosing
		}
		c.mu.Unlock()

		// An in-flight Connect finishes the transition and releases what it created.
		if connecting {
			return
		}

		c.release(context.Background(), sub, client)

		c.mu.Lock()
		if c.state == StateClosing {
			c.state = StateClosed
		}
		c.mu.Unlock()
	})
}

func (c *Consumer) release(ctx context.Context, sub broker.Subscription, client broker.Client) {
	if sub != nil {
		if err := sub.Close(); err != nil {
			c.logger.DebugwCtx(ctx, "Failed to close subscription", "error", err)
		}
	}
	if client != nil {
		if err := client.Close(); err != nil {
			c.logger.DebugwCtx(ctx, "Failed to close client", "error", err)
		}
	}
}
