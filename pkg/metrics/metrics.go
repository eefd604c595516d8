package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	StreamsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "viewer_streams_active",
			Help: "Number of event streams currently attached to a subscriber (count)",
		},
		[]string{"driver"},
	)

	StreamsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewer_streams_total",
			Help: "Total number of event streams by outcome (count)",
		},
		[]string{"driver", "outcome"},
	)

	StreamMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewer_stream_messages_total",
			Help: "Total number of received messages by filter result (count)",
		},
		[]string{"driver", "result"},
	)

	ReceiveErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewer_receive_errors_total",
			Help: "Total number of transient receive errors (count)",
		},
		[]string{"driver"},
	)

	AckFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewer_ack_failures_total",
			Help: "Total number of failed acknowledgements (count)",
		},
		[]string{"driver"},
	)

	ConnectFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewer_connect_failures_total",
			Help: "Total number of failed consumer or producer connects (count)",
		},
		[]string{"driver", "role"},
	)

	ProducerSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewer_producer_sends_total",
			Help: "Total number of single-message publishes (count)",
		},
		[]string{"driver", "status"},
	)

	ProducerSendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "viewer_producer_send_duration_ms",
			Help:    "Duration of a publish including connect and close in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 15000},
		},
		[]string{"driver", "status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)
)

var registerOnce sync.Once

// RegisterViewerMetrics registers every collector with the default registry.
// Calling it more than once is a no-op.
func RegisterViewerMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			StreamsActive,
			StreamsTotal,
			StreamMessagesTotal,
			ReceiveErrorsTotal,
			AckFailuresTotal,
			ConnectFailuresTotal,
			ProducerSendsTotal,
			ProducerSendDuration,
			CircuitBreakerState,
			CircuitBreakerRequests,
			RateLimitRequestsTotal,
		)
	})
}

func StreamStarted(driver string) {
	StreamsActive.WithLabelValues(driver).Inc()
}

func StreamEnded(driver, outcome string) {
	StreamsActive.WithLabelValues(driver).Dec()
	StreamsTotal.WithLabelValues(driver, outcome).Inc()
}

func IncStreamMessage(driver, result string) {
	StreamMessagesTotal.WithLabelValues(driver, result).Inc()
}

func IncReceiveError(driver string) {
	ReceiveErrorsTotal.WithLabelValues(driver).Inc()
}

func IncAckFailure(driver string) {
	AckFailuresTotal.WithLabelValues(driver).Inc()
}

func IncConnectFailure(driver, role string) {
	ConnectFailuresTotal.WithLabelValues(driver, role).Inc()
}

func ObserveProducerSend(driver, status string, duration time.Duration) {
	ProducerSendsTotal.WithLabelValues(driver, status).Inc()
	ProducerSendDuration.WithLabelValues(driver, status).Observe(float64(duration.Milliseconds()))
}
