package redpanda

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"

	"streamview/internal/broker"
)

// singleActiveBalancer hands every partition of a topic to the member that
// joined first; the rest of the group idles as standbys.
type singleActiveBalancer struct {
	joined time.Time
}

var _ kgo.GroupBalancer = singleActiveBalancer{}

func (b singleActiveBalancer) ProtocolName() string { return "streamview-single-active" }
func (b singleActiveBalancer) IsCooperative() bool  { return false }

func (b singleActiveBalancer) JoinGroupMetadata(interests []string, _ map[string][]int32, _ int32) []byte {
	meta := kmsg.NewConsumerMemberMetadata()
	meta.Topics = interests
	meta.UserData = broker.JoinStamp(b.joined)
	return meta.AppendTo(nil)
}

func (b singleActiveBalancer) ParseSyncAssignment(assignment []byte) (map[string][]int32, error) {
	return kgo.ParseConsumerSyncAssignment(assignment)
}

func (b singleActiveBalancer) MemberBalancer(members []kmsg.JoinGroupResponseMember) (kgo.GroupMemberBalancer, map[string]struct{}, error) {
	cb, err := kgo.NewConsumerBalancer(b, members)
	if err != nil {
		return nil, nil, err
	}
	return cb, cb.MemberTopics(), nil
}

// Balance implements kgo.ConsumerBalancerBalance.
func (b singleActiveBalancer) Balance(cb *kgo.ConsumerBalancer, topics map[string]int32) kgo.IntoSyncAssignment {
	plan := cb.NewPlan()

	names := make([]string, 0, len(topics))
	for topic := range topics {
		names = append(names, topic)
	}
	sort.Strings(names)

	for _, topic := range names {
		var (
			candidates []broker.GroupCandidate
			members    []*kmsg.JoinGroupResponseMember
		)
		cb.EachMember(func(m *kmsg.JoinGroupResponseMember, meta *kmsg.ConsumerMemberMetadata) {
			if subscribes(meta.Topics, topic) {
				candidates = append(candidates, broker.GroupCandidate{ID: m.MemberID, Stamp: meta.UserData})
				members = append(members, m)
			}
		})
		active := broker.FirstJoined(candidates)
		if active < 0 {
			continue
		}

		partitions := make([]int32, topics[topic])
		for i := range partitions {
			partitions[i] = int32(i)
		}
		plan.AddPartitions(members[active], topic, partitions)
	}
	return plan
}

func subscribes(topics []string, topic string) bool {
	for _, t := range topics {
		if t == topic {
			return true
		}
	}
	return false
}

// checkExclusive fails when the group already has members. A race between
// two readers past this point still leaves one active member.
func checkExclusive(ctx context.Context, cl *kgo.Client, group string) error {
	req := kmsg.NewPtrDescribeGroupsRequest()
	req.Groups = []string{group}
	resp, err := req.RequestWith(ctx, cl)
	if err != nil {
		return fmt.Errorf("describe group %q: %w", group, err)
	}
	for _, g := range resp.Groups {
		if err := kerr.ErrorForCode(g.ErrorCode); err != nil {
			return fmt.Errorf("describe group %q: %w", group, err)
		}
		if g.Group == group && len(g.Members) > 0 {
			return fmt.Errorf("subscription %q has %d active member(s): %w", group, len(g.Members), broker.ErrSubscriptionConflict)
		}
	}
	return nil
}
