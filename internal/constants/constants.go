package constants

import "time"

const (
	ServiceName = "viewer-service"
)

const (
	DefaultSubscription     = "viewer-sub"
	DefaultSubscriptionType = "Exclusive"
)

const (
	DefaultReceiveTimeout = 1 * time.Second
	DefaultRetryBackoff   = 500 * time.Millisecond
	DefaultConnectTimeout = 15 * time.Second
	DefaultAckTimeout     = 5 * time.Second
	DefaultLeaseTTL       = 10 * time.Second
)

const (
	DefaultKeepaliveInterval = 15 * time.Second
	DefaultShutdownGrace     = 10 * time.Second
	ReadHeaderTimeout        = 10 * time.Second
	TracingShutdownTimeout   = 5 * time.Second
)

const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 3000
)

const (
	DriverKafka     = "kafka"
	DriverRedpanda  = "redpanda"
	DriverJetStream = "nats"
)

const (
	EventInfo    = "info"
	EventError   = "error"
	EventMessage = "message"
)

const (
	VerboseOn = "1"
)
