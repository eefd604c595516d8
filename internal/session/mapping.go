package session

import (
	"strings"

	"streamview/internal/broker"
)

var subscriptionTypes = map[string]broker.SubscriptionType{
	"exclusive":  broker.SubscriptionExclusive,
	"shared":     broker.SubscriptionShared,
	"failover":   broker.SubscriptionFailover,
	"keyshared":  broker.SubscriptionKeyShared,
	"key_shared": broker.SubscriptionKeyShared,
}

var initialPositions = map[string]broker.InitialPosition{
	"earliest": broker.PositionEarliest,
	"latest":   broker.PositionLatest,
}

// ParseSubscriptionType maps a case-insensitive name to a subscription type.
// Unknown names yield Exclusive and ok=false; an empty name is Exclusive.
func ParseSubscriptionType(name string) (t broker.SubscriptionType, ok bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return broker.SubscriptionExclusive, true
	}
	if t, ok := subscriptionTypes[strings.ToLower(name)]; ok {
		return t, true
	}
	return broker.SubscriptionExclusive, false
}

// ParseInitialPosition maps a case-insensitive name to an initial position.
// Empty and unknown names yield PositionDefault; only unknown ones report
// ok=false.
func ParseInitialPosition(name string) (p broker.InitialPosition, ok bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return broker.PositionDefault, true
	}
	if p, ok := initialPositions[strings.ToLower(name)]; ok {
		return p, true
	}
	return broker.PositionDefault, false
}
