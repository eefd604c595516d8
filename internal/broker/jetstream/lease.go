package jetstream

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"streamview/internal/constants"
)

// LeaseBucket is the key-value bucket holding one lease per Exclusive or
// Failover subscription. The holder is the only consumer that fetches.
const LeaseBucket = "streamview_subscriptions"

var errLeaseLost = errors.New("subscription lease lost")

// leaseStore is the part of nats.KeyValue a lease needs.
type leaseStore interface {
	Create(key string, value []byte) (uint64, error)
	Update(key string, value []byte, last uint64) (uint64, error)
	Delete(key string, opts ...nats.DeleteOpt) error
}

type lease struct {
	store leaseStore
	key   string
	owner []byte
	ttl   time.Duration

	mu      sync.Mutex
	rev     uint64
	renewed time.Time
}

func newLease(store leaseStore, key, owner string, ttl time.Duration) *lease {
	if ttl <= 0 {
		ttl = constants.DefaultLeaseTTL
	}
	return &lease{store: store, key: key, owner: []byte(owner), ttl: ttl}
}

func leaseKey(stream, durable string) string {
	return keySafe(stream) + "." + keySafe(durable)
}

func keySafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '=':
			return r
		}
		return '_'
	}, s)
}

// renewEvery keeps two renewals inside one ttl.
func (l *lease) renewEvery() time.Duration {
	return l.ttl / 3
}

// hold reports whether this consumer is the active one. A free lease is taken,
// a held one is renewed when due. errLeaseLost means another consumer took
// over after ours expired.
func (l *lease) hold(now time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rev == 0 {
		rev, err := l.store.Create(l.key, l.owner)
		if err != nil {
			if leaseTaken(err) {
				return false, nil
			}
			return false, fmt.Errorf("acquire lease %q: %w", l.key, err)
		}
		l.rev, l.renewed = rev, now
		return true, nil
	}

	if now.Sub(l.renewed) < l.renewEvery() {
		return true, nil
	}
	rev, err := l.store.Update(l.key, l.owner, l.rev)
	if err != nil {
		if leaseTaken(err) {
			l.rev = 0
			return false, errLeaseLost
		}
		return false, fmt.Errorf("renew lease %q: %w", l.key, err)
	}
	l.rev, l.renewed = rev, now
	return true, nil
}

func (l *lease) release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rev == 0 {
		return nil
	}
	rev := l.rev
	l.rev = 0
	if err := l.store.Delete(l.key, nats.LastRevision(rev)); err != nil && !leaseTaken(err) {
		return fmt.Errorf("release lease %q: %w", l.key, err)
	}
	return nil
}

func leaseTaken(err error) bool {
	var apiErr *nats.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode == nats.JSErrCodeStreamWrongLastSequence {
		return true
	}
	return errors.Is(err, nats.ErrKeyExists) || errors.Is(err, nats.ErrKeyNotFound)
}

// leaseBucket opens the lease bucket, creating it on first use. An existing
// bucket keeps the ttl it was created with.
func (c *client) leaseBucket() (nats.KeyValue, time.Duration, error) {
	ttl := c.cfg.LeaseTTL
	if ttl <= 0 {
		ttl = constants.DefaultLeaseTTL
	}

	kv, err := c.js.KeyValue(LeaseBucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = c.js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:  LeaseBucket,
			History: 1,
			TTL:     ttl,
		})
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open lease bucket: %w", err)
	}

	if status, err := kv.Status(); err == nil && status.TTL() > 0 {
		ttl = status.TTL()
	}
	return kv, ttl, nil
}
