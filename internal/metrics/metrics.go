package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_enqueued_total",
			Help: "Alarm messages accepted for dispatch",
		},
		[]string{"source"},
	)

	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sms_messages_sent_total",
		Help: "Recipient deliveries accepted by the provider",
	})

	MessagesFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sms_messages_failed_total",
		Help: "Recipient deliveries that failed, plus messages with no recipients",
	})

	DuplicatesBlocked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sms_duplicates_blocked_total",
		Help: "Deliveries suppressed as duplicates",
	})

	RateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sms_rate_limited_total",
		Help: "Deliveries that waited for a rate limit permit",
	})

	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sms_queue_depth",
		Help: "Messages waiting for the dispatch loop",
	})

	// GatewayDuration measures provider calls by outcome.
	GatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sms_gateway_duration_seconds",
			Help:    "Duration of SMS provider calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sms_http_request_duration_seconds",
			Help:    "Histogram of response durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

var once sync.Once

func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			MessagesEnqueued,
			MessagesSent,
			MessagesFailed,
			DuplicatesBlocked,
			RateLimited,
			QueueDepth,
			GatewayDuration,
			HTTPRequests,
			RequestDuration,
		)
	})
}
