package broker

import (
	"encoding/binary"
	"math"
	"time"
)

// Exclusive and Failover subscriptions deliver to one member of a consumer
// group at a time. Members advertise when they joined; the earliest joiner
// is active and the rest wait as standbys until it leaves.

// JoinStamp encodes a join time for group member metadata.
func JoinStamp(t time.Time) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(t.UnixNano()))
	return b
}

func joinedAt(stamp []byte) int64 {
	if len(stamp) != 8 {
		return math.MaxInt64
	}
	return int64(binary.BigEndian.Uint64(stamp))
}

type GroupCandidate struct {
	ID    string
	Stamp []byte
}

// FirstJoined returns the index of the active candidate, or -1 when there
// are none. Candidates without a valid stamp rank last; ties break on ID.
func FirstJoined(candidates []GroupCandidate) int {
	best := -1
	for i, c := range candidates {
		if best < 0 {
			best = i
			continue
		}
		ci, cb := joinedAt(c.Stamp), joinedAt(candidates[best].Stamp)
		if ci < cb || (ci == cb && c.ID < candidates[best].ID) {
			best = i
		}
	}
	return best
}
