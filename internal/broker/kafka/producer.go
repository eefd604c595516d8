package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"streamview/internal/broker"
	"streamview/pkg/retry"
)

// producer writes single records through the low level client so the
// assigned offset can be returned as the message id.
type producer struct {
	client     *kafka.Client
	topic      string
	partitions []int

	balancer  kafka.RoundRobin
	hash      kafka.Hash
	mu        sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func lookupPartitions(ctx context.Context, kc *kafka.Client, topic string) ([]int, error) {
	var partitions []int

	err := retry.Retry(ctx, retry.DefaultPolicy(), func() error {
		resp, err := kc.Metadata(ctx, &kafka.MetadataRequest{Topics: []string{topic}})
		if err != nil {
			return err
		}
		if len(resp.Topics) == 0 {
			return retry.Permanent(fmt.Errorf("topic %q not found", topic))
		}

		t := resp.Topics[0]
		if t.Error != nil {
			var kerr kafka.Error
			if errors.As(t.Error, &kerr) && !kerr.Temporary() {
				return retry.Permanent(t.Error)
			}
			return t.Error
		}
		if len(t.Partitions) == 0 {
			return fmt.Errorf("topic %q has no partitions", topic)
		}

		partitions = partitions[:0]
		for _, p := range t.Partitions {
			partitions = append(partitions, p.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("metadata for topic %q: %w", topic, err)
	}
	return partitions, nil
}

func (p *producer) partitionFor(msg kafka.Message) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(msg.Key) > 0 {
		return p.hash.Balance(msg, p.partitions...)
	}
	return p.balancer.Balance(msg, p.partitions...)
}

func (p *producer) Send(ctx context.Context, out broker.OutboundMessage) (string, error) {
	select {
	case <-p.closed:
		return "", broker.ErrClosed
	default:
	}

	var key []byte
	if out.Key != "" {
		key = []byte(out.Key)
	}
	hdrs := headers(out.Properties)
	partition := p.partitionFor(kafka.Message{Key: key})

	resp, err := p.client.Produce(ctx, &kafka.ProduceRequest{
		Topic:        p.topic,
		Partition:    partition,
		RequiredAcks: kafka.RequireAll,
		Records: kafka.NewRecordReader(kafka.Record{
			Time:    time.Now(),
			Key:     bytesOrNil(key),
			Value:   kafka.NewBytes(out.Payload),
			Headers: hdrs,
		}),
	})
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", resp.Error
	}
	if len(resp.RecordErrors) > 0 {
		return "", resp.RecordErrors[0]
	}

	return messageID(partition, resp.BaseOffset), nil
}

func (p *producer) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func bytesOrNil(b []byte) kafka.Bytes {
	if b == nil {
		return nil
	}
	return kafka.NewBytes(b)
}
