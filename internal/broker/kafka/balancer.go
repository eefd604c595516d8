package kafka

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/segmentio/kafka-go"

	"streamview/internal/broker"
)

// singleActiveBalancer assigns every partition of a topic to the member that
// joined the group first. Later members get nothing and take over when a
// rebalance finds the active member gone.
type singleActiveBalancer struct {
	joined time.Time
}

func (b singleActiveBalancer) ProtocolName() string {
	return "streamview-single-active"
}

func (b singleActiveBalancer) UserData() ([]byte, error) {
	return broker.JoinStamp(b.joined), nil
}

func (b singleActiveBalancer) AssignGroups(members []kafka.GroupMember, partitions []kafka.Partition) kafka.GroupMemberAssignments {
	assignments := kafka.GroupMemberAssignments{}
	for _, m := range members {
		assignments[m.ID] = map[string][]int{}
	}

	byTopic := map[string][]int{}
	for _, p := range partitions {
		byTopic[p.Topic] = append(byTopic[p.Topic], p.ID)
	}

	for topic, ids := range byTopic {
		var candidates []broker.GroupCandidate
		for _, m := range members {
			if subscribes(m.Topics, topic) {
				candidates = append(candidates, broker.GroupCandidate{ID: m.ID, Stamp: m.UserData})
			}
		}
		active := broker.FirstJoined(candidates)
		if active < 0 {
			continue
		}
		sort.Ints(ids)
		assignments[candidates[active].ID][topic] = ids
	}
	return assignments
}

func subscribes(topics []string, topic string) bool {
	for _, t := range topics {
		if t == topic {
			return true
		}
	}
	return false
}

// checkExclusive fails when the consumer group already has members. Two
// readers racing past this check still end up with one active member
// through singleActiveBalancer.
func checkExclusive(ctx context.Context, kc *kafka.Client, group string) error {
	resp, err := kc.DescribeGroups(ctx, &kafka.DescribeGroupsRequest{GroupIDs: []string{group}})
	if err != nil {
		return fmt.Errorf("describe group %q: %w", group, err)
	}
	for _, g := range resp.Groups {
		if g.Error != nil {
			return fmt.Errorf("describe group %q: %w", group, g.Error)
		}
		if g.GroupID == group && len(g.Members) > 0 {
			return fmt.Errorf("subscription %q has %d active member(s): %w", group, len(g.Members), broker.ErrSubscriptionConflict)
		}
	}
	return nil
}
