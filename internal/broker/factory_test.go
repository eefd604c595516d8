package broker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDialer struct{ name string }

func (d stubDialer) Dial(ctx context.Context, opts ClientOptions) (Client, error) {
	return nil, nil
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    Endpoint
		wantErr bool
	}{
		{
			name: "single host",
			url:  "kafka://localhost:9092",
			want: Endpoint{Scheme: "kafka", Hosts: []string{"localhost:9092"}},
		},
		{
			name: "multiple hosts with tls",
			url:  "kafka+ssl://a:9093, b:9093",
			want: Endpoint{Scheme: "kafka+ssl", Hosts: []string{"a:9093", "b:9093"}, TLS: true},
		},
		{
			name: "nats tls with path",
			url:  "TLS://nats.example.com:4222/ignored?x=1",
			want: Endpoint{Scheme: "tls", Hosts: []string{"nats.example.com:4222"}, TLS: true},
		},
		{
			name: "no scheme",
			url:  "broker:9092",
			want: Endpoint{Hosts: []string{"broker:9092"}},
		},
		{
			name:    "no host",
			url:     "kafka://",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEndpoint(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEndpointURL(t *testing.T) {
	ep := Endpoint{Scheme: "nats", Hosts: []string{"a:4222", "b:4222"}}
	assert.Equal(t, "nats://a:4222,b:4222", ep.URL())
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry("kafka")
	r.Register("kafka", stubDialer{name: "kafka"}, "kafka", "kafka+ssl")
	r.Register("nats", stubDialer{name: "nats"}, "nats", "tls")

	d, ep, driver, err := r.Resolve("kafka+ssl://b:9093")
	require.NoError(t, err)
	assert.Equal(t, stubDialer{name: "kafka"}, d)
	assert.Equal(t, "kafka", driver)
	assert.True(t, ep.TLS)

	d, ep, driver, err = r.Resolve("broker:9092")
	require.NoError(t, err)
	assert.Equal(t, stubDialer{name: "kafka"}, d)
	assert.Equal(t, "kafka", ep.Scheme)
	assert.Equal(t, "kafka", driver)

	_, _, driver, err = r.Resolve("tls://n:4222")
	require.NoError(t, err)
	assert.Equal(t, "nats", driver)

	_, _, _, err = r.Resolve("pulsar://localhost:6650")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
	assert.Contains(t, err.Error(), "pulsar")
}

func TestSubscriptionTypeSingleActive(t *testing.T) {
	assert.True(t, SubscriptionExclusive.SingleActiveConsumer())
	assert.True(t, SubscriptionFailover.SingleActiveConsumer())
	assert.False(t, SubscriptionShared.SingleActiveConsumer())
	assert.False(t, SubscriptionKeyShared.SingleActiveConsumer())
	assert.Equal(t, "KeyShared", SubscriptionKeyShared.String())
	assert.Equal(t, "Default", PositionDefault.String())
}
