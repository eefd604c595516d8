package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamview/internal/broker"
	"streamview/internal/logger"
)

func TestGroupBalancers(t *testing.T) {
	joined := time.Unix(1_700_000_000, 0)

	tests := []struct {
		typ  broker.SubscriptionType
		want kafka.GroupBalancer
	}{
		{broker.SubscriptionExclusive, singleActiveBalancer{joined: joined}},
		{broker.SubscriptionFailover, singleActiveBalancer{joined: joined}},
		{broker.SubscriptionShared, kafka.RoundRobinGroupBalancer{}},
		{broker.SubscriptionKeyShared, kafka.RangeGroupBalancer{}},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			assert.Equal(t, []kafka.GroupBalancer{tt.want}, groupBalancers(tt.typ, joined))
		})
	}
}

func groupMember(t *testing.T, id string, joined time.Time, topics ...string) kafka.GroupMember {
	t.Helper()
	stamp, err := singleActiveBalancer{joined: joined}.UserData()
	require.NoError(t, err)
	return kafka.GroupMember{ID: id, Topics: topics, UserData: stamp}
}

func TestSingleActiveBalancerAssignsOneMember(t *testing.T) {
	first := time.Unix(1_700_000_000, 0)
	partitions := []kafka.Partition{
		{Topic: "events", ID: 1},
		{Topic: "events", ID: 0},
	}

	for _, typ := range []broker.SubscriptionType{broker.SubscriptionExclusive, broker.SubscriptionFailover} {
		t.Run(typ.String(), func(t *testing.T) {
			b := groupBalancers(typ, first)[0]
			members := []kafka.GroupMember{
				groupMember(t, "viewer-tab-2", first.Add(time.Second), "events"),
				groupMember(t, "viewer-tab-1", first, "events"),
			}

			got := b.AssignGroups(members, partitions)

			assert.Equal(t, []int{0, 1}, got["viewer-tab-1"]["events"])
			assert.Empty(t, got["viewer-tab-2"]["events"], "standby receives nothing")

			active := 0
			for _, byTopic := range got {
				if len(byTopic["events"]) > 0 {
					active++
				}
			}
			assert.Equal(t, 1, active)
		})
	}
}

func TestSingleActiveBalancerStandbyTakesOver(t *testing.T) {
	first := time.Unix(1_700_000_000, 0)
	b := singleActiveBalancer{joined: first}
	partitions := []kafka.Partition{{Topic: "events", ID: 0}, {Topic: "events", ID: 1}}

	got := b.AssignGroups([]kafka.GroupMember{
		groupMember(t, "viewer-tab-2", first.Add(time.Second), "events"),
	}, partitions)
	assert.Equal(t, []int{0, 1}, got["viewer-tab-2"]["events"])
}

func TestSingleActiveBalancerPerTopic(t *testing.T) {
	first := time.Unix(1_700_000_000, 0)
	b := singleActiveBalancer{joined: first}

	got := b.AssignGroups([]kafka.GroupMember{
		groupMember(t, "a", first, "orders"),
		groupMember(t, "b", first.Add(time.Second), "orders", "payments"),
	}, []kafka.Partition{
		{Topic: "orders", ID: 0},
		{Topic: "payments", ID: 0},
	})

	assert.Equal(t, []int{0}, got["a"]["orders"])
	assert.Equal(t, []int{0}, got["b"]["payments"])
	assert.Empty(t, got["b"]["orders"])
}

func TestStartOffset(t *testing.T) {
	assert.Equal(t, kafka.FirstOffset, startOffset(broker.PositionEarliest))
	assert.Equal(t, kafka.LastOffset, startOffset(broker.PositionLatest))
	assert.Equal(t, int64(0), startOffset(broker.PositionDefault))
}

func TestMessageAccessors(t *testing.T) {
	published := time.UnixMilli(1_700_000_000_123)
	m := &message{raw: kafka.Message{
		Partition: 3,
		Offset:    42,
		Key:       []byte("k1"),
		Value:     []byte(`{"a":1}`),
		Time:      published,
		Headers:   []kafka.Header{{Key: "source", Value: []byte("ui")}},
	}}

	assert.Equal(t, "3:42", m.ID())
	assert.Equal(t, published, m.PublishTime())
	assert.True(t, m.EventTime().IsZero())
	assert.Equal(t, "k1", m.Key())
	assert.Equal(t, map[string]string{"source": "ui"}, m.Properties())
	assert.Equal(t, `{"a":1}`, string(m.Payload()))
}

func TestHeaders(t *testing.T) {
	assert.Nil(t, headers(nil))
	assert.Equal(t, []kafka.Header{{Key: "a", Value: []byte("1")}}, headers(map[string]string{"a": "1"}))
}

func TestOAuthBearer(t *testing.T) {
	m := oauthBearer{token: "secret"}
	assert.Equal(t, "OAUTHBEARER", m.Name())

	sm, ir, err := m.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "n,,\x01auth=Bearer secret\x01\x01", string(ir))

	done, _, err := sm.Next(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, done)

	_, _, err = sm.Next(context.Background(), []byte(`{"status":"invalid_token"}`))
	assert.ErrorContains(t, err, "invalid_token")
}

func TestProducerPartitioning(t *testing.T) {
	p := &producer{partitions: []int{0, 1, 2}, closed: make(chan struct{})}

	keyed := p.partitionFor(kafka.Message{Key: []byte("user-1")})
	for i := 0; i < 5; i++ {
		assert.Equal(t, keyed, p.partitionFor(kafka.Message{Key: []byte("user-1")}), "same key, same partition")
	}

	seen := map[int]bool{}
	for i := 0; i < 3; i++ {
		seen[p.partitionFor(kafka.Message{})] = true
	}
	assert.Len(t, seen, 3, "unkeyed records rotate across partitions")
}

func TestProducerSendAfterClose(t *testing.T) {
	p := &producer{closed: make(chan struct{})}
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err := p.Send(context.Background(), broker.OutboundMessage{Payload: []byte("x")})
	assert.ErrorIs(t, err, broker.ErrClosed)
}

func TestDialUnreachable(t *testing.T) {
	d := NewDialer(Config{}, logger.NopLogger())
	ep, err := broker.ParseEndpoint("kafka://127.0.0.1:1")
	require.NoError(t, err)

	_, err = d.Dial(context.Background(), broker.ClientOptions{Endpoint: ep, ConnectTimeout: 200 * time.Millisecond})
	assert.ErrorContains(t, err, "dial kafka://127.0.0.1:1")
}
