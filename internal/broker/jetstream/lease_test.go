package jetstream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamview/internal/broker"
)

// memLeases behaves like a KV bucket with History 1.
type memLeases struct {
	mu   sync.Mutex
	seq  uint64
	revs map[string]uint64
	vals map[string]string
	err  error
}

func newMemLeases() *memLeases {
	return &memLeases{revs: map[string]uint64{}, vals: map[string]string{}}
}

func (m *memLeases) Create(key string, value []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	if _, ok := m.revs[key]; ok {
		return 0, nats.ErrKeyExists
	}
	m.seq++
	m.revs[key], m.vals[key] = m.seq, string(value)
	return m.seq, nil
}

func (m *memLeases) Update(key string, value []byte, last uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	if m.revs[key] != last {
		return 0, &nats.APIError{Code: 400, ErrorCode: nats.JSErrCodeStreamWrongLastSequence}
	}
	m.seq++
	m.revs[key], m.vals[key] = m.seq, string(value)
	return m.seq, nil
}

func (m *memLeases) Delete(key string, _ ...nats.DeleteOpt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.revs, key)
	delete(m.vals, key)
	return nil
}

// expire drops the key the way the bucket ttl does.
func (m *memLeases) expire(key string) {
	_ = m.Delete(key)
}

func (m *memLeases) owner(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vals[key]
}

func TestLeaseKey(t *testing.T) {
	assert.Equal(t, "EVENTS.viewer-sub", leaseKey("EVENTS", "viewer-sub"))
	assert.Equal(t, "EVENTS.ops_viewer_1", leaseKey("EVENTS", "ops viewer*1"))
}

func TestLeaseSingleHolder(t *testing.T) {
	store := newMemLeases()
	now := time.Now()
	first := newLease(store, "EVENTS.viewer-sub", "viewer-tab-1", 9*time.Second)
	second := newLease(store, "EVENTS.viewer-sub", "viewer-tab-2", 9*time.Second)

	held, err := first.hold(now)
	require.NoError(t, err)
	assert.True(t, held)

	held, err = second.hold(now)
	require.NoError(t, err)
	assert.False(t, held, "lease already taken")
	assert.Equal(t, "viewer-tab-1", store.owner("EVENTS.viewer-sub"))
}

func TestLeaseRenewsWhenDue(t *testing.T) {
	store := newMemLeases()
	now := time.Now()
	l := newLease(store, "EVENTS.viewer-sub", "viewer-tab-1", 9*time.Second)

	_, err := l.hold(now)
	require.NoError(t, err)
	rev := l.rev

	held, err := l.hold(now.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, held)
	assert.Equal(t, rev, l.rev, "not due yet")

	held, err = l.hold(now.Add(3 * time.Second))
	require.NoError(t, err)
	assert.True(t, held)
	assert.Greater(t, l.rev, rev)
}

func TestLeaseFailoverTakesOver(t *testing.T) {
	store := newMemLeases()
	now := time.Now()
	active := newLease(store, "EVENTS.viewer-sub", "viewer-tab-1", 9*time.Second)
	standby := newLease(store, "EVENTS.viewer-sub", "viewer-tab-2", 9*time.Second)

	_, err := active.hold(now)
	require.NoError(t, err)
	held, err := standby.hold(now)
	require.NoError(t, err)
	require.False(t, held)

	require.NoError(t, active.release())

	held, err = standby.hold(now.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, held)
	assert.Equal(t, "viewer-tab-2", store.owner("EVENTS.viewer-sub"))
}

func TestLeaseLostAfterExpiry(t *testing.T) {
	store := newMemLeases()
	now := time.Now()
	stale := newLease(store, "EVENTS.viewer-sub", "viewer-tab-1", 9*time.Second)
	other := newLease(store, "EVENTS.viewer-sub", "viewer-tab-2", 9*time.Second)

	_, err := stale.hold(now)
	require.NoError(t, err)
	store.expire("EVENTS.viewer-sub")
	_, err = other.hold(now.Add(10 * time.Second))
	require.NoError(t, err)

	held, err := stale.hold(now.Add(10 * time.Second))
	assert.ErrorIs(t, err, errLeaseLost)
	assert.False(t, held)
	assert.Equal(t, "viewer-tab-2", store.owner("EVENTS.viewer-sub"))
	assert.NoError(t, stale.release(), "nothing left to release")
}

func TestLeaseStoreFailure(t *testing.T) {
	store := newMemLeases()
	store.err = errors.New("no responders")
	l := newLease(store, "EVENTS.viewer-sub", "viewer-tab-1", 0)

	_, err := l.hold(time.Now())
	require.Error(t, err)
	assert.NotErrorIs(t, err, errLeaseLost)
	assert.Equal(t, 10*time.Second, l.ttl)
}

func TestReceiveStandbyWaits(t *testing.T) {
	store := newMemLeases()
	now := time.Now()
	_, err := newLease(store, "EVENTS.viewer-sub", "viewer-tab-1", 9*time.Second).hold(now)
	require.NoError(t, err)

	sub := &subscription{
		lease:  newLease(store, "EVENTS.viewer-sub", "viewer-tab-2", 9*time.Second),
		closed: make(chan struct{}),
	}

	start := time.Now()
	_, err = sub.Receive(context.Background(), 50*time.Millisecond)
	assert.ErrorIs(t, err, broker.ErrReceiveTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestReceiveExclusiveLeaseLostEndsStream(t *testing.T) {
	store := newMemLeases()
	ls := newLease(store, "EVENTS.viewer-sub", "viewer-tab-1", 9*time.Second)
	_, err := ls.hold(time.Now().Add(-time.Minute))
	require.NoError(t, err)

	store.expire("EVENTS.viewer-sub")
	_, err = newLease(store, "EVENTS.viewer-sub", "viewer-tab-2", 9*time.Second).hold(time.Now())
	require.NoError(t, err)

	sub := &subscription{lease: ls, exclusive: true, closed: make(chan struct{})}
	_, err = sub.Receive(context.Background(), 50*time.Millisecond)
	assert.ErrorIs(t, err, broker.ErrClosed)
	assert.ErrorIs(t, err, broker.ErrSubscriptionConflict)
}

func TestReceiveFailoverLeaseLostGoesStandby(t *testing.T) {
	store := newMemLeases()
	ls := newLease(store, "EVENTS.viewer-sub", "viewer-tab-1", 9*time.Second)
	_, err := ls.hold(time.Now().Add(-time.Minute))
	require.NoError(t, err)

	store.expire("EVENTS.viewer-sub")
	_, err = newLease(store, "EVENTS.viewer-sub", "viewer-tab-2", 9*time.Second).hold(time.Now())
	require.NoError(t, err)

	sub := &subscription{lease: ls, closed: make(chan struct{})}
	_, err = sub.Receive(context.Background(), 20*time.Millisecond)
	assert.ErrorIs(t, err, broker.ErrReceiveTimeout)
	assert.NotErrorIs(t, err, broker.ErrClosed)
}
