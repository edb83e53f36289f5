// Package metrics provides Prometheus metrics for the inbox service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEventsTotal tracks webhook events by provider, kind and processing outcome
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inbox",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Total number of webhook events by provider, kind and outcome",
		},
		[]string{"provider", "kind", "outcome"},
	)

	// WebhookPayloadsTotal tracks raw payloads by recognized shape
	WebhookPayloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inbox",
			Subsystem: "webhook",
			Name:      "payloads_total",
			Help:      "Total number of webhook payloads by recognized shape",
		},
		[]string{"shape"},
	)

	// IngestionDuration tracks the time spent processing one webhook payload
	IngestionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "inbox",
			Subsystem: "webhook",
			Name:      "processing_duration_seconds",
			Help:      "Duration of webhook payload processing in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	// IngestionInFlight tracks payloads currently being processed
	IngestionInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "inbox",
			Subsystem: "webhook",
			Name:      "in_flight",
			Help:      "Number of webhook payloads currently being processed",
		},
	)

	// RealtimeConnections tracks open websocket connections
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "inbox",
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Number of open websocket connections",
		},
	)

	// RealtimeEventsTotal tracks realtime events by type and delivery outcome
	RealtimeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inbox",
			Subsystem: "realtime",
			Name:      "events_total",
			Help:      "Total number of realtime events by type and status",
		},
		[]string{"type", "status"},
	)

	// GatewayRequestsTotal tracks outbound gateway requests
	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inbox",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Total number of outbound gateway requests",
		},
		[]string{"operation", "status"},
	)

	// GatewayRequestDuration tracks outbound gateway request duration
	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inbox",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound gateway requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// IntegrationEventsTotal tracks integration events published to the broker
	IntegrationEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inbox",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of integration events published",
		},
		[]string{"type", "status"},
	)

	// ScheduledTaskRunsTotal tracks periodic task runs by task name and outcome
	ScheduledTaskRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inbox",
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Total number of scheduled task runs",
		},
		[]string{"task", "status"},
	)

	// ScheduledTaskDuration tracks periodic task run duration
	ScheduledTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inbox",
			Subsystem: "scheduler",
			Name:      "run_duration_seconds",
			Help:      "Duration of scheduled task runs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"task"},
	)
)

// RecordWebhookEvent records the outcome of one normalized webhook event
func RecordWebhookEvent(provider, kind, outcome string) {
	WebhookEventsTotal.WithLabelValues(provider, kind, outcome).Inc()
}

// RecordGatewayRequest records an outbound gateway request
func RecordGatewayRequest(operation, status string, durationSeconds float64) {
	GatewayRequestsTotal.WithLabelValues(operation, status).Inc()
	GatewayRequestDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// StatusLabel maps an error to the status label used by the counters above.
func StatusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
