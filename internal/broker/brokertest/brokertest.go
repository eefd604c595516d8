// Package brokertest provides an in-memory broker driver whose behaviour is
// scripted by tests.
package brokertest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"streamview/internal/broker"
)

type Message struct {
	MsgID     string
	Published time.Time
	Event     time.Time
	Props     map[string]string
	MsgKey    string
	Data      []byte
}

func (m *Message) ID() string                    { return m.MsgID }
func (m *Message) PublishTime() time.Time        { return m.Published }
func (m *Message) EventTime() time.Time          { return m.Event }
func (m *Message) Properties() map[string]string { return m.Props }
func (m *Message) Key() string                   { return m.MsgKey }
func (m *Message) Payload() []byte               { return m.Data }

// NewMessage builds a message published now with the given id and payload.
func NewMessage(id, payload string) *Message {
	return &Message{
		MsgID:     id,
		Published: time.Now(),
		Props:     map[string]string{},
		Data:      []byte(payload),
	}
}

// Delivery is one scripted Receive outcome: a message or an error.
type Delivery struct {
	Msg *Message
	Err error
}

// Broker is a broker.Dialer. Zero-value fields mean "succeed".
type Broker struct {
	DialErr      error
	SubscribeErr error
	ProducerErr  error
	SendErr      error
	AckErr       error
	CloseErr     error
	// DialGate, when set, blocks Dial until it is closed or ctx is done.
	DialGate chan struct{}

	deliveries chan Delivery

	mu          sync.Mutex
	events      []string
	dialed      []broker.ClientOptions
	subscribed  []broker.SubscribeOptions
	acks        []string
	sent        []broker.OutboundMessage
	nextID      int
	subCloses   atomic.Int32
	clientClose atomic.Int32
	prodCloses  atomic.Int32
}

func New() *Broker {
	return &Broker{deliveries: make(chan Delivery, 1024)}
}

// Deliver queues messages for Receive in order.
func (b *Broker) Deliver(msgs ...*Message) {
	for _, m := range msgs {
		b.deliveries <- Delivery{Msg: m}
	}
}

// Fail queues a receive error.
func (b *Broker) Fail(err error) {
	b.deliveries <- Delivery{Err: err}
}

func (b *Broker) record(event string) {
	b.mu.Lock()
	b.events = append(b.events, event)
	b.mu.Unlock()
}

// Events returns the ordered log of broker interactions, such as
// "subscribe", "ack:<id>", "close:subscription" and "close:client".
func (b *Broker) Events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

func (b *Broker) Acks() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.acks...)
}

func (b *Broker) Sent() []broker.OutboundMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broker.OutboundMessage(nil), b.sent...)
}

func (b *Broker) Dialed() []broker.ClientOptions {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broker.ClientOptions(nil), b.dialed...)
}

func (b *Broker) Subscribed() []broker.SubscribeOptions {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broker.SubscribeOptions(nil), b.subscribed...)
}

func (b *Broker) SubscriptionCloses() int { return int(b.subCloses.Load()) }
func (b *Broker) ClientCloses() int       { return int(b.clientClose.Load()) }
func (b *Broker) ProducerCloses() int     { return int(b.prodCloses.Load()) }

func (b *Broker) Dial(ctx context.Context, opts broker.ClientOptions) (broker.Client, error) {
	if b.DialGate != nil {
		select {
		case <-b.DialGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	b.dialed = append(b.dialed, opts)
	b.mu.Unlock()
	b.record("dial")

	if b.DialErr != nil {
		return nil, b.DialErr
	}
	return &client{b: b, closed: make(chan struct{})}, nil
}

type client struct {
	b         *Broker
	closeOnce sync.Once
	closed    chan struct{}
}

func (c *client) Subscribe(ctx context.Context, opts broker.SubscribeOptions) (broker.Subscription, error) {
	c.b.mu.Lock()
	c.b.subscribed = append(c.b.subscribed, opts)
	c.b.mu.Unlock()
	c.b.record("subscribe")

	if c.b.SubscribeErr != nil {
		return nil, c.b.SubscribeErr
	}
	return &subscription{b: c.b, client: c, closed: make(chan struct{})}, nil
}

func (c *client) CreateProducer(ctx context.Context, opts broker.ProducerOptions) (broker.Producer, error) {
	c.b.record("create-producer")
	if c.b.ProducerErr != nil {
		return nil, c.b.ProducerErr
	}
	return &producer{b: c.b, topic: opts.Topic}, nil
}

func (c *client) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	c.b.clientClose.Add(1)
	c.b.record("close:client")
	return c.b.CloseErr
}

type subscription struct {
	b         *Broker
	client    *client
	closeOnce sync.Once
	closed    chan struct{}
}

func (s *subscription) Receive(ctx context.Context, timeout time.Duration) (broker.Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.closed:
		return nil, broker.ErrClosed
	case <-s.client.closed:
		return nil, broker.ErrClosed
	default:
	}

	select {
	case d := <-s.b.deliveries:
		if d.Err != nil {
			return nil, d.Err
		}
		return d.Msg, nil
	case <-timer.C:
		return nil, broker.ErrReceiveTimeout
	case <-s.closed:
		return nil, broker.ErrClosed
	case <-s.client.closed:
		return nil, broker.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *subscription) Ack(ctx context.Context, msg broker.Message) error {
	s.b.mu.Lock()
	s.b.acks = append(s.b.acks, msg.ID())
	s.b.mu.Unlock()
	s.b.record("ack:" + msg.ID())
	return s.b.AckErr
}

func (s *subscription) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	s.b.subCloses.Add(1)
	s.b.record("close:subscription")
	return s.b.CloseErr
}

type producer struct {
	b     *Broker
	topic string
}

func (p *producer) Send(ctx context.Context, msg broker.OutboundMessage) (string, error) {
	p.b.record("send")
	if p.b.SendErr != nil {
		return "", p.b.SendErr
	}

	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	p.b.sent = append(p.b.sent, msg)
	p.b.nextID++
	return fmt.Sprintf("%s:%d", p.topic, p.b.nextID), nil
}

func (p *producer) Close() error {
	p.b.prodCloses.Add(1)
	p.b.record("close:producer")
	return p.b.CloseErr
}
