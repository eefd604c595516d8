// Package broker defines the capabilities the viewer needs from a pub-sub
// system. Drivers live in subpackages and are selected by serviceUrl scheme.
package broker

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrReceiveTimeout means no message arrived within the receive wait.
	// It is not a failure.
	ErrReceiveTimeout = errors.New("receive timed out")
	// ErrClosed is returned by a subscription or producer once it, or its
	// client, has been closed.
	ErrClosed            = errors.New("broker resource closed")
	ErrUnsupportedScheme = errors.New("unsupported service url scheme")
	// ErrSubscriptionConflict rejects a second consumer on an Exclusive
	// subscription that already has an active one.
	ErrSubscriptionConflict = errors.New("subscription already has an active consumer")
)

type SubscriptionType int

const (
	SubscriptionExclusive SubscriptionType = iota
	SubscriptionShared
	SubscriptionFailover
	SubscriptionKeyShared
)

func (t SubscriptionType) String() string {
	switch t {
	case SubscriptionShared:
		return "Shared"
	case SubscriptionFailover:
		return "Failover"
	case SubscriptionKeyShared:
		return "KeyShared"
	default:
		return "Exclusive"
	}
}

// SingleActiveConsumer reports whether at most one consumer of the
// subscription may receive at a time.
func (t SubscriptionType) SingleActiveConsumer() bool {
	return t == SubscriptionExclusive || t == SubscriptionFailover
}

type InitialPosition int

const (
	// PositionDefault leaves the choice to the broker or an existing cursor.
	PositionDefault InitialPosition = iota
	PositionEarliest
	PositionLatest
)

func (p InitialPosition) String() string {
	switch p {
	case PositionEarliest:
		return "Earliest"
	case PositionLatest:
		return "Latest"
	default:
		return "Default"
	}
}

type ClientOptions struct {
	Endpoint       Endpoint
	Token          string
	ConnectTimeout time.Duration
}

type SubscribeOptions struct {
	Topic        string
	Subscription string
	Type         SubscriptionType
	Position     InitialPosition
}

type ProducerOptions struct {
	Topic string
}

type OutboundMessage struct {
	Payload    []byte
	Key        string
	Properties map[string]string
}

// Message is a received message in broker-native form.
type Message interface {
	ID() string
	PublishTime() time.Time
	// EventTime is the zero time when the producer did not set one.
	EventTime() time.Time
	Properties() map[string]string
	Key() string
	Payload() []byte
}

type Dialer interface {
	Dial(ctx context.Context, opts ClientOptions) (Client, error)
}

type Client interface {
	Subscribe(ctx context.Context, opts SubscribeOptions) (Subscription, error)
	CreateProducer(ctx context.Context, opts ProducerOptions) (Producer, error)
	Close() error
}

// Subscription must tolerate Close being called while a Receive is in flight.
type Subscription interface {
	// Receive waits at most timeout and returns ErrReceiveTimeout when
	// nothing arrived.
	Receive(ctx context.Context, timeout time.Duration) (Message, error)
	Ack(ctx context.Context, msg Message) error
	Close() error
}

type Producer interface {
	// Send publishes one message and returns its broker id in string form.
	Send(ctx context.Context, msg OutboundMessage) (string, error)
	Close() error
}

// Endpoint is a parsed serviceUrl.
type Endpoint struct {
	Scheme string
	Hosts  []string
	TLS    bool
}

func (e Endpoint) URL() string {
	return e.Scheme + "://" + strings.Join(e.Hosts, ",")
}

// ParseEndpoint splits a serviceUrl of the form scheme://host[:port][,host[:port]...][/path].
// A missing scheme yields an empty Scheme.
func ParseEndpoint(serviceURL string) (Endpoint, error) {
	raw := strings.TrimSpace(serviceURL)
	var ep Endpoint

	if scheme, rest, ok := strings.Cut(raw, "://"); ok {
		ep.Scheme = strings.ToLower(scheme)
		raw = rest
	}
	if i := strings.IndexAny(raw, "/?#"); i >= 0 {
		raw = raw[:i]
	}

	for _, h := range strings.Split(raw, ",") {
		if h = strings.TrimSpace(h); h != "" {
			ep.Hosts = append(ep.Hosts, h)
		}
	}
	if len(ep.Hosts) == 0 {
		return Endpoint{}, errors.New("service url has no host")
	}

	ep.TLS = strings.HasSuffix(ep.Scheme, "+ssl") || ep.Scheme == "tls"
	return ep, nil
}
