// Package jetstream is the NATS JetStream driver, registered for nats:// and
// tls:// service urls. A topic is a subject captured by an existing stream;
// a subscription is a durable pull consumer on that stream.
package jetstream

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"streamview/internal/broker"
	"streamview/internal/logger"
	"streamview/pkg/ids"
)

// KeyHeader carries the message key; NATS messages have none of their own.
const KeyHeader = "X-Message-Key"

type Config struct {
	// MaxAckPending bounds in-flight messages for shared subscriptions.
	// Zero keeps the server default.
	MaxAckPending int
	// LeaseTTL is how long an Exclusive or Failover consumer stays active
	// without renewing its lease.
	LeaseTTL time.Duration
}

type Dialer struct {
	cfg    Config
	logger logger.Logger
}

func NewDialer(cfg Config, log logger.Logger) *Dialer {
	return &Dialer{cfg: cfg, logger: log}
}

func serverURLs(ep broker.Endpoint) string {
	urls := make([]string, len(ep.Hosts))
	for i, h := range ep.Hosts {
		urls[i] = ep.Scheme + "://" + h
	}
	return strings.Join(urls, ",")
}

func (d *Dialer) Dial(ctx context.Context, opts broker.ClientOptions) (broker.Client, error) {
	natsOpts := []nats.Option{
		nats.Name("streamview"),
		nats.NoReconnect(),
	}
	if opts.ConnectTimeout > 0 {
		natsOpts = append(natsOpts, nats.Timeout(opts.ConnectTimeout))
	}
	if opts.Token != "" {
		natsOpts = append(natsOpts, nats.Token(opts.Token))
	}
	if opts.Endpoint.TLS {
		natsOpts = append(natsOpts, nats.Secure())
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nc, err := nats.Connect(serverURLs(opts.Endpoint), natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", opts.Endpoint.URL(), err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &client{cfg: d.cfg, nc: nc, js: js, logger: d.logger}, nil
}

type client struct {
	cfg    Config
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger logger.Logger
}

type consumerSettings struct {
	deliver       nats.DeliverPolicy
	setDeliver    bool
	maxAckPending int
}

func settingsFor(opts broker.SubscribeOptions, cfg Config) consumerSettings {
	var s consumerSettings

	switch opts.Position {
	case broker.PositionEarliest:
		s.deliver, s.setDeliver = nats.DeliverAllPolicy, true
	case broker.PositionLatest:
		s.deliver, s.setDeliver = nats.DeliverNewPolicy, true
	}

	if opts.Type.SingleActiveConsumer() {
		s.maxAckPending = 1
	} else {
		s.maxAckPending = cfg.MaxAckPending
	}
	return s
}

func (s consumerSettings) subOpts(stream string) []nats.SubOpt {
	out := []nats.SubOpt{
		nats.BindStream(stream),
		nats.AckExplicit(),
	}
	if s.setDeliver {
		switch s.deliver {
		case nats.DeliverAllPolicy:
			out = append(out, nats.DeliverAll())
		case nats.DeliverNewPolicy:
			out = append(out, nats.DeliverNew())
		}
	}
	if s.maxAckPending > 0 {
		out = append(out, nats.MaxAckPending(s.maxAckPending))
	}
	return out
}

func (c *client) Subscribe(ctx context.Context, opts broker.SubscribeOptions) (broker.Subscription, error) {
	if c.nc.IsClosed() {
		return nil, broker.ErrClosed
	}

	stream, err := c.js.StreamNameBySubject(opts.Topic, nats.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("no stream for subject %q: %w", opts.Topic, err)
	}

	var ls *lease
	if opts.Type.SingleActiveConsumer() {
		if ls, err = c.acquireLease(stream, opts); err != nil {
			return nil, err
		}
	}

	settings := settingsFor(opts, c.cfg)
	c.logger.Debugw("Creating JetStream pull consumer",
		"subject", opts.Topic,
		"stream", stream,
		"durable", opts.Subscription,
		"subscription_type", opts.Type.String(),
		"max_ack_pending", settings.maxAckPending,
	)

	sub, err := c.js.PullSubscribe(opts.Topic, opts.Subscription, settings.subOpts(stream)...)
	if err != nil {
		if ls != nil {
			_ = ls.release()
		}
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return &subscription{
		sub:       sub,
		lease:     ls,
		exclusive: opts.Type == broker.SubscriptionExclusive,
		closed:    make(chan struct{}),
	}, nil
}

// acquireLease makes an Exclusive subscriber the active one or fails. A
// Failover subscriber that finds the lease taken starts as a standby.
func (c *client) acquireLease(stream string, opts broker.SubscribeOptions) (*lease, error) {
	kv, ttl, err := c.leaseBucket()
	if err != nil {
		return nil, err
	}
	ls := newLease(kv, leaseKey(stream, opts.Subscription), ids.NewStreamID(), ttl)

	held, err := ls.hold(time.Now())
	if err != nil {
		return nil, err
	}
	if !held && opts.Type == broker.SubscriptionExclusive {
		return nil, fmt.Errorf("subscription %q already has an active consumer: %w", opts.Subscription, broker.ErrSubscriptionConflict)
	}
	c.logger.Debugw("Subscription lease checked",
		"key", ls.key,
		"active", held,
		"ttl", ttl,
	)
	return ls, nil
}

func (c *client) CreateProducer(ctx context.Context, opts broker.ProducerOptions) (broker.Producer, error) {
	if c.nc.IsClosed() {
		return nil, broker.ErrClosed
	}
	return &producer{js: c.js, subject: opts.Topic}, nil
}

// Close closes the connection and with it every subscription.
func (c *client) Close() error {
	c.nc.Close()
	return nil
}

type subscription struct {
	sub *nats.Subscription
	// lease is set for Exclusive and Failover subscriptions.
	lease     *lease
	exclusive bool
	closeOnce sync.Once
	closed    chan struct{}
}

func (s *subscription) Receive(ctx context.Context, timeout time.Duration) (broker.Message, error) {
	select {
	case <-s.closed:
		return nil, broker.ErrClosed
	default:
	}

	if s.lease != nil {
		held, err := s.lease.hold(time.Now())
		switch {
		case errors.Is(err, errLeaseLost) && s.exclusive:
			return nil, fmt.Errorf("%w: %w", broker.ErrClosed, broker.ErrSubscriptionConflict)
		case errors.Is(err, errLeaseLost):
		case err != nil:
			return nil, err
		}
		if !held {
			return nil, s.standby(ctx, timeout)
		}
		if every := s.lease.renewEvery(); timeout > every {
			timeout = every
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msgs, err := s.sub.Fetch(1, nats.Context(fetchCtx))
	if err == nil && len(msgs) > 0 {
		return &message{raw: msgs[0]}, nil
	}

	select {
	case <-s.closed:
		return nil, broker.ErrClosed
	default:
	}
	switch {
	case isClosedErr(err):
		return nil, broker.ErrClosed
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case err == nil,
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return nil, broker.ErrReceiveTimeout
	}
	return nil, err
}

// standby waits out one receive while another consumer holds the lease.
func (s *subscription) standby(ctx context.Context, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-s.closed:
		return broker.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return broker.ErrReceiveTimeout
	}
}

func isClosedErr(err error) bool {
	return errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrBadSubscription)
}

func (s *subscription) Ack(ctx context.Context, msg broker.Message) error {
	m, ok := msg.(*message)
	if !ok {
		return fmt.Errorf("ack: unexpected message type %T", msg)
	}
	return m.raw.AckSync(nats.Context(ctx))
}

// Close stops fetching, unblocks an in-flight Receive and hands the lease to
// a standby.
func (s *subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.sub.Unsubscribe()
		if isClosedErr(err) {
			err = nil
		}
		if s.lease != nil {
			if lerr := s.lease.release(); lerr != nil && !isClosedErr(lerr) {
				err = errors.Join(err, lerr)
			}
		}
	})
	return err
}

type producer struct {
	js      nats.JetStreamContext
	subject string
}

func (p *producer) Send(ctx context.Context, out broker.OutboundMessage) (string, error) {
	msg := nats.NewMsg(p.subject)
	msg.Data = out.Payload
	for k, v := range out.Properties {
		msg.Header.Set(k, v)
	}
	if out.Key != "" {
		msg.Header.Set(KeyHeader, out.Key)
	}

	ack, err := p.js.PublishMsg(msg, nats.Context(ctx))
	if err != nil {
		if isClosedErr(err) {
			return "", broker.ErrClosed
		}
		return "", err
	}
	return strconv.FormatUint(ack.Sequence, 10), nil
}

func (p *producer) Close() error {
	return nil
}

// message ids are stream sequence numbers, as returned by the producer.
type message struct {
	raw *nats.Msg
}

func (m *message) ID() string {
	meta, err := m.raw.Metadata()
	if err != nil {
		return ""
	}
	return strconv.FormatUint(meta.Sequence.Stream, 10)
}

func (m *message) PublishTime() time.Time {
	meta, err := m.raw.Metadata()
	if err != nil {
		return time.Time{}
	}
	return meta.Timestamp
}

func (m *message) EventTime() time.Time {
	return time.Time{}
}

func (m *message) Properties() map[string]string {
	props := make(map[string]string, len(m.raw.Header))
	for k, v := range m.raw.Header {
		if k == KeyHeader || len(v) == 0 {
			continue
		}
		props[k] = v[0]
	}
	return props
}

func (m *message) Key() string {
	if m.raw.Header == nil {
		return ""
	}
	return m.raw.Header.Get(KeyHeader)
}

func (m *message) Payload() []byte {
	return m.raw.Data
}
