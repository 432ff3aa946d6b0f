package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Realtime metrics
	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_online_users",
			Help: "Users with a registered connection",
		},
	)

	ConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_connections_total",
			Help: "Socket lifecycle events",
		},
		[]string{"event"}, // admitted, rejected, superseded, released
	)

	PresenceBroadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_presence_broadcasts_total",
			Help: "Presence snapshots fanned out",
		},
	)

	PushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_pushes_total",
			Help: "Server pushes by event and outcome",
		},
		[]string{"event", "outcome"}, // outcome: sent, failed, miss
	)

	// Business metrics
	MessagesPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_persisted_total",
			Help: "Messages stored",
		},
	)

	MessageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_message_failures_total",
			Help: "Send requests that failed",
		},
		[]string{"reason"},
	)

	// Infrastructure metrics
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_history_cache_requests_total",
			Help: "History cache lookups",
		},
		[]string{"result"}, // hit, miss, error
	)

	KafkaDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_kafka_deliveries_total",
			Help: "Kafka delivery reports",
		},
		[]string{"outcome"},
	)
)

// Push outcomes.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
	OutcomeMiss   = "miss"
)
