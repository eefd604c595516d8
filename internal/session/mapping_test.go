package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"streamview/internal/broker"
)

func TestParseSubscriptionType(t *testing.T) {
	tests := []struct {
		in     string
		want   broker.SubscriptionType
		wantOK bool
	}{
		{"", broker.SubscriptionExclusive, true},
		{"Exclusive", broker.SubscriptionExclusive, true},
		{"shared", broker.SubscriptionShared, true},
		{"FAILOVER", broker.SubscriptionFailover, true},
		{"KeyShared", broker.SubscriptionKeyShared, true},
		{"key_shared", broker.SubscriptionKeyShared, true},
		{"turbo", broker.SubscriptionExclusive, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseSubscriptionType(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestParseInitialPosition(t *testing.T) {
	tests := []struct {
		in     string
		want   broker.InitialPosition
		wantOK bool
	}{
		{"", broker.PositionDefault, true},
		{"earliest", broker.PositionEarliest, true},
		{"Latest", broker.PositionLatest, true},
		{"middle", broker.PositionDefault, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseInitialPosition(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}
