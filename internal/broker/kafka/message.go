package kafka

import (
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"streamview/internal/broker"
)

// message ids are "<partition>:<offset>", the same form the producer returns.
type message struct {
	raw kafka.Message
}

func messageID(partition int, offset int64) string {
	return strconv.Itoa(partition) + ":" + strconv.FormatInt(offset, 10)
}

func (m *message) ID() string {
	return messageID(m.raw.Partition, m.raw.Offset)
}

func (m *message) PublishTime() time.Time {
	return m.raw.Time
}

// EventTime is unset: a Kafka record carries a single timestamp.
func (m *message) EventTime() time.Time {
	return time.Time{}
}

func (m *message) Properties() map[string]string {
	props := make(map[string]string, len(m.raw.Headers))
	for _, h := range m.raw.Headers {
		props[h.Key] = string(h.Value)
	}
	return props
}

func (m *message) Key() string {
	return string(m.raw.Key)
}

func (m *message) Payload() []byte {
	return m.raw.Value
}

func groupBalancers(t broker.SubscriptionType, joined time.Time) []kafka.GroupBalancer {
	switch {
	case t.SingleActiveConsumer():
		return []kafka.GroupBalancer{singleActiveBalancer{joined: joined}}
	case t == broker.SubscriptionShared:
		return []kafka.GroupBalancer{kafka.RoundRobinGroupBalancer{}}
	default:
		return []kafka.GroupBalancer{kafka.RangeGroupBalancer{}}
	}
}

// startOffset applies only to groups without committed offsets. Zero keeps
// the reader default.
func startOffset(p broker.InitialPosition) int64 {
	switch p {
	case broker.PositionEarliest:
		return kafka.FirstOffset
	case broker.PositionLatest:
		return kafka.LastOffset
	default:
		return 0
	}
}

func headers(props map[string]string) []kafka.Header {
	if len(props) == 0 {
		return nil
	}
	out := make([]kafka.Header, 0, len(props))
	for k, v := range props {
		out = append(out, kafka.Header{Key: k, Value: []byte(v)})
	}
	return out
}

func isReaderClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe)
}
