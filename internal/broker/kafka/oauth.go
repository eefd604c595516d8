package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go/sasl"
)

// oauthBearer passes the request token as an OAUTHBEARER initial response
// (RFC 7628). kafka-go ships PLAIN and SCRAM only.
type oauthBearer struct {
	token string
}

func (m oauthBearer) Name() string {
	return "OAUTHBEARER"
}

func (m oauthBearer) Start(ctx context.Context) (sasl.StateMachine, []byte, error) {
	return m, []byte("n,,\x01auth=Bearer " + m.token + "\x01\x01"), nil
}

// Next fails on any challenge: the broker only sends one to report an
// authentication error.
func (m oauthBearer) Next(ctx context.Context, challenge []byte) (bool, []byte, error) {
	if len(challenge) > 0 {
		return false, nil, fmt.Errorf("oauthbearer authentication failed: %s", challenge)
	}
	return true, nil, nil
}
