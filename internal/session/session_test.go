package session

import (
	"time"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"streamview/internal/broker"
	"streamview/internal/broker/brokertest"
	"streamview/internal/logger"
)

func testOptions() Options {
	return Options{
		ReceiveTimeout: 20 * time.Millisecond,
		RetryBackoff:   5 * time.Millisecond,
		ConnectTimeout: time.Second,
		AckTimeout:     time.Second,
	}
}

func testRegistry(b *brokertest.Broker) *broker.Registry {
	r := broker.NewRegistry("mem")
	r.Register("mem", b, "mem")
	return r
}

func observedLogger() (logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.NewWithCore(core), logs
}
