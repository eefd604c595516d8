// Package redpanda is the franz-go driver, registered for redpanda:// and
// redpanda+ssl:// service urls.
package redpanda

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/oauth"

	"streamview/internal/broker"
	"streamview/internal/logger"
)

type Dialer struct {
	logger logger.Logger
}

func NewDialer(log logger.Logger) *Dialer {
	return &Dialer{logger: log}
}

func (d *Dialer) Dial(ctx context.Context, opts broker.ClientOptions) (broker.Client, error) {
	base := []kgo.Opt{
		kgo.SeedBrokers(opts.Endpoint.Hosts...),
	}
	if opts.ConnectTimeout > 0 {
		base = append(base, kgo.DialTimeout(opts.ConnectTimeout))
	}
	if opts.Endpoint.TLS {
		base = append(base, kgo.DialTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}))
	}
	if opts.Token != "" {
		base = append(base, kgo.SASL(oauth.Auth{Token: opts.Token}.AsMechanism()))
	}

	cl, err := kgo.NewClient(base...)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	if err := cl.Ping(ctx); err != nil {
		cl.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Endpoint.URL(), err)
	}

	return &client{
		base:   base,
		cl:     cl,
		logger: d.logger,
		subs:   make(map[*subscription]struct{}),
	}, nil
}

type client struct {
	base   []kgo.Opt
	cl     *kgo.Client
	logger logger.Logger

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

// Subscribe opens a dedicated group client. Offsets are committed only by Ack.
func (c *client) Subscribe(ctx context.Context, opts broker.SubscribeOptions) (broker.Subscription, error) {
	if opts.Type == broker.SubscriptionExclusive {
		if err := checkExclusive(ctx, c.cl, opts.Subscription); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, broker.ErrClosed
	}

	bal := balancer(opts.Type, time.Now())
	groupOpts := append([]kgo.Opt{}, c.base...)
	groupOpts = append(groupOpts,
		kgo.ConsumerGroup(opts.Subscription),
		kgo.ConsumeTopics(opts.Topic),
		kgo.Balancers(bal),
		kgo.DisableAutoCommit(),
	)
	if offset, ok := resetOffset(opts.Position); ok {
		groupOpts = append(groupOpts, kgo.ConsumeResetOffset(offset))
	}

	c.logger.Debugw("Creating group client",
		"topic", opts.Topic,
		"group", opts.Subscription,
		"subscription_type", opts.Type.String(),
		"balancer", bal.ProtocolName(),
		"position", opts.Position.String(),
	)

	cl, err := kgo.NewClient(groupOpts...)
	if err != nil {
		return nil, fmt.Errorf("create group client: %w", err)
	}

	sub := &subscription{client: c, cl: cl, closed: make(chan struct{})}
	c.subs[sub] = struct{}{}
	return sub, nil
}

func (c *client) CreateProducer(ctx context.Context, opts broker.ProducerOptions) (broker.Producer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, broker.ErrClosed
	}
	return &producer{cl: c.cl, topic: opts.Topic}, nil
}

func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := make([]*subscription, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		_ = s.Close()
	}
	c.cl.Close()
	return nil
}

func (c *client) forget(s *subscription) {
	c.mu.Lock()
	delete(c.subs, s)
	c.mu.Unlock()
}

type subscription struct {
	client    *client
	cl        *kgo.Client
	closeOnce sync.Once
	closed    chan struct{}
}

// Receive polls at most one record; the rest of a fetch stays buffered in the
// client for the next call.
func (s *subscription) Receive(ctx context.Context, timeout time.Duration) (broker.Message, error) {
	select {
	case <-s.closed:
		return nil, broker.ErrClosed
	default:
	}

	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fetches := s.cl.PollRecords(pollCtx, 1)
	if fetches.IsClientClosed() {
		return nil, broker.ErrClosed
	}

	if recs := fetches.Records(); len(recs) > 0 {
		return &message{rec: recs[0]}, nil
	}

	for _, fe := range fetches.Errors() {
		switch {
		case errors.Is(fe.Err, kgo.ErrClientClosed):
			return nil, broker.ErrClosed
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(fe.Err, context.DeadlineExceeded):
			return nil, broker.ErrReceiveTimeout
		default:
			return nil, fmt.Errorf("fetch %s[%d]: %w", fe.Topic, fe.Partition, fe.Err)
		}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, broker.ErrReceiveTimeout
}

func (s *subscription) Ack(ctx context.Context, msg broker.Message) error {
	m, ok := msg.(*message)
	if !ok {
		return fmt.Errorf("ack: unexpected message type %T", msg)
	}
	return s.cl.CommitRecords(ctx, m.rec)
}

// Close leaves the group.
func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.cl.Close()
		s.client.forget(s)
	})
	return nil
}

type producer struct {
	cl    *kgo.Client
	topic string
}

func (p *producer) Send(ctx context.Context, out broker.OutboundMessage) (string, error) {
	rec := &kgo.Record{
		Topic:   p.topic,
		Value:   out.Payload,
		Headers: headers(out.Properties),
	}
	if out.Key != "" {
		rec.Key = []byte(out.Key)
	}

	if err := p.cl.ProduceSync(ctx, rec).FirstErr(); err != nil {
		if errors.Is(err, kgo.ErrClientClosed) {
			return "", broker.ErrClosed
		}
		return "", err
	}
	return recordID(rec), nil
}

// Close is a no-op: the producer shares the client connection.
func (p *producer) Close() error {
	return nil
}

type message struct {
	rec *kgo.Record
}

func recordID(rec *kgo.Record) string {
	return strconv.FormatInt(int64(rec.Partition), 10) + ":" + strconv.FormatInt(rec.Offset, 10)
}

func (m *message) ID() string             { return recordID(m.rec) }
func (m *message) PublishTime() time.Time { return m.rec.Timestamp }
func (m *message) EventTime() time.Time   { return time.Time{} }
func (m *message) Key() string            { return string(m.rec.Key) }
func (m *message) Payload() []byte        { return m.rec.Value }

func (m *message) Properties() map[string]string {
	props := make(map[string]string, len(m.rec.Headers))
	for _, h := range m.rec.Headers {
		props[h.Key] = string(h.Value)
	}
	return props
}

func balancer(t broker.SubscriptionType, joined time.Time) kgo.GroupBalancer {
	switch {
	case t.SingleActiveConsumer():
		return singleActiveBalancer{joined: joined}
	case t == broker.SubscriptionShared:
		return kgo.RoundRobinBalancer()
	case t == broker.SubscriptionKeyShared:
		return kgo.CooperativeStickyBalancer()
	default:
		return kgo.RangeBalancer()
	}
}

func resetOffset(p broker.InitialPosition) (kgo.Offset, bool) {
	switch p {
	case broker.PositionEarliest:
		return kgo.NewOffset().AtStart(), true
	case broker.PositionLatest:
		return kgo.NewOffset().AtEnd(), true
	default:
		return kgo.Offset{}, false
	}
}

func headers(props map[string]string) []kgo.RecordHeader {
	if len(props) == 0 {
		return nil
	}
	out := make([]kgo.RecordHeader, 0, len(props))
	for k, v := range props {
		out = append(out, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return out
}
