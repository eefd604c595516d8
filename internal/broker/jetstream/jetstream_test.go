package jetstream

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamview/internal/broker"
	"streamview/internal/logger"
)

func TestSettingsFor(t *testing.T) {
	cfg := Config{MaxAckPending: 256}

	tests := []struct {
		name        string
		opts        broker.SubscribeOptions
		wantDeliver nats.DeliverPolicy
		wantSet     bool
		wantPending int
	}{
		{"exclusive default", broker.SubscribeOptions{Type: broker.SubscriptionExclusive}, 0, false, 1},
		{"failover earliest", broker.SubscribeOptions{Type: broker.SubscriptionFailover, Position: broker.PositionEarliest}, nats.DeliverAllPolicy, true, 1},
		{"shared latest", broker.SubscribeOptions{Type: broker.SubscriptionShared, Position: broker.PositionLatest}, nats.DeliverNewPolicy, true, 256},
		{"key shared", broker.SubscribeOptions{Type: broker.SubscriptionKeyShared}, 0, false, 256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := settingsFor(tt.opts, cfg)
			assert.Equal(t, tt.wantSet, s.setDeliver)
			if tt.wantSet {
				assert.Equal(t, tt.wantDeliver, s.deliver)
			}
			assert.Equal(t, tt.wantPending, s.maxAckPending)
		})
	}
}

func TestSubOpts(t *testing.T) {
	s := settingsFor(broker.SubscribeOptions{Type: broker.SubscriptionShared}, Config{})
	assert.Len(t, s.subOpts("EVENTS"), 2, "bind and explicit ack only")

	s = settingsFor(broker.SubscribeOptions{Type: broker.SubscriptionExclusive, Position: broker.PositionLatest}, Config{})
	assert.Len(t, s.subOpts("EVENTS"), 4)
}

func TestServerURLs(t *testing.T) {
	ep, err := broker.ParseEndpoint("nats://a:4222,b:4222")
	require.NoError(t, err)
	assert.Equal(t, "nats://a:4222,nats://b:4222", serverURLs(ep))
}

func TestMessageHeaders(t *testing.T) {
	raw := nats.NewMsg("events")
	raw.Data = []byte("payload")
	raw.Header.Set("source", "ui")
	raw.Header.Set(KeyHeader, "k1")
	m := &message{raw: raw}

	assert.Equal(t, "k1", m.Key())
	assert.Equal(t, map[string]string{"source": "ui"}, m.Properties())
	assert.Equal(t, "payload", string(m.Payload()))
	assert.Equal(t, "", m.ID(), "no metadata outside JetStream delivery")
	assert.True(t, m.PublishTime().IsZero())
}

// TestPublishAndReceive needs a JetStream enabled server on localhost:4222.
func TestPublishAndReceive(t *testing.T) {
	nc, err := nats.Connect(nats.DefaultURL)
	if err != nil {
		t.Skip("NATS not available, skipping test")
	}
	js, err := nc.JetStream()
	require.NoError(t, err)
	_, err = js.AddStream(&nats.StreamConfig{Name: "VIEWER_TEST", Subjects: []string{"viewer.test"}})
	if err != nil {
		nc.Close()
		t.Skip("JetStream not enabled, skipping test")
	}
	t.Cleanup(func() {
		_ = js.DeleteStream("VIEWER_TEST")
		nc.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ep, err := broker.ParseEndpoint(nats.DefaultURL)
	require.NoError(t, err)
	client, err := NewDialer(Config{}, logger.NopLogger()).Dial(ctx, broker.ClientOptions{Endpoint: ep, ConnectTimeout: time.Second})
	require.NoError(t, err)
	defer client.Close()

	prod, err := client.CreateProducer(ctx, broker.ProducerOptions{Topic: "viewer.test"})
	require.NoError(t, err)
	id, err := prod.Send(ctx, broker.OutboundMessage{Payload: []byte("hello"), Key: "k1", Properties: map[string]string{"a": "1"}})
	require.NoError(t, err)

	sub, err := client.Subscribe(ctx, broker.SubscribeOptions{
		Topic:        "viewer.test",
		Subscription: "viewer-sub",
		Position:     broker.PositionEarliest,
	})
	require.NoError(t, err)

	msg, err := sub.Receive(ctx, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, id, msg.ID())
	assert.Equal(t, "k1", msg.Key())
	assert.Equal(t, "1", msg.Properties()["a"])
	require.NoError(t, sub.Ack(ctx, msg))

	_, err = sub.Receive(ctx, 100*time.Millisecond)
	assert.ErrorIs(t, err, broker.ErrReceiveTimeout)

	require.NoError(t, sub.Close())
	_, err = sub.Receive(ctx, 100*time.Millisecond)
	assert.ErrorIs(t, err, broker.ErrClosed)
}

// TestExclusiveSubscriptionRejectsSecondConsumer needs a JetStream enabled
// server on localhost:4222.
func TestExclusiveSubscriptionRejectsSecondConsumer(t *testing.T) {
	nc, err := nats.Connect(nats.DefaultURL)
	if err != nil {
		t.Skip("NATS not available, skipping test")
	}
	js, err := nc.JetStream()
	require.NoError(t, err)
	_, err = js.AddStream(&nats.StreamConfig{Name: "VIEWER_EXCL", Subjects: []string{"viewer.excl"}})
	if err != nil {
		nc.Close()
		t.Skip("JetStream not enabled, skipping test")
	}
	t.Cleanup(func() {
		_ = js.DeleteStream("VIEWER_EXCL")
		nc.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ep, err := broker.ParseEndpoint(nats.DefaultURL)
	require.NoError(t, err)
	client, err := NewDialer(Config{}, logger.NopLogger()).Dial(ctx, broker.ClientOptions{Endpoint: ep, ConnectTimeout: time.Second})
	require.NoError(t, err)
	defer client.Close()

	opts := broker.SubscribeOptions{
		Topic:        "viewer.excl",
		Subscription: "viewer-excl",
		Type:         broker.SubscriptionExclusive,
	}
	first, err := client.Subscribe(ctx, opts)
	require.NoError(t, err)

	_, err = client.Subscribe(ctx, opts)
	assert.ErrorIs(t, err, broker.ErrSubscriptionConflict)

	require.NoError(t, first.Close())
	again, err := client.Subscribe(ctx, opts)
	require.NoError(t, err, "lease released on close")
	require.NoError(t, again.Close())
}
