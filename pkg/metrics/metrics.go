// Package metrics provides Prometheus metrics for the Sage service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncRunsTotal tracks sync runs by entity type and final status
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Total number of entity sync runs by status",
		},
		[]string{"entity_type", "status"},
	)

	// SyncRunDuration tracks per-entity sync duration in seconds
	SyncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sage",
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Duration of entity sync runs in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"entity_type"},
	)

	// SyncRecordsFetched tracks records fetched from sources per run
	SyncRecordsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "sync",
			Name:      "records_fetched_total",
			Help:      "Total number of records fetched from source systems",
		},
		[]string{"source", "entity_type"},
	)

	// SourceRequestsTotal tracks outbound source API requests
	SourceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "source",
			Name:      "requests_total",
			Help:      "Total number of outbound source API requests",
		},
		[]string{"source", "status_code"},
	)

	// SourceRequestDuration tracks outbound source API request duration
	SourceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sage",
			Subsystem: "source",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound source API requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	// UnifiedCustomersBuilt tracks rows produced by the unification rebuild
	UnifiedCustomersBuilt = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sage",
			Subsystem: "unify",
			Name:      "customers_built",
			Help:      "Number of unified customer rows produced by the last rebuild",
		},
	)

	// SnapshotRowsBuilt tracks rows produced by the BI snapshot rebuild
	SnapshotRowsBuilt = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sage",
			Subsystem: "snapshot",
			Name:      "rows_built",
			Help:      "Number of BI snapshot rows produced by the last rebuild",
		},
	)

	// WebhookNotificationsTotal tracks webhook deliveries by status
	WebhookNotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "webhook",
			Name:      "notifications_total",
			Help:      "Total number of new-customer webhook deliveries by status",
		},
		[]string{"status"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// TokenRefreshes tracks source auth token refresh operations
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "auth",
			Name:      "token_refreshes_total",
			Help:      "Total number of source auth token refresh operations",
		},
		[]string{"source", "status"},
	)

	// DatabaseQueryDuration tracks warehouse query duration
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sage",
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Duration of warehouse queries in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		},
		[]string{"operation"},
	)
)

// RecordSyncRun records a completed entity sync run
func RecordSyncRun(entityType, status string, durationSeconds float64) {
	SyncRunsTotal.WithLabelValues(entityType, status).Inc()
	SyncRunDuration.WithLabelValues(entityType).Observe(durationSeconds)
}

// RecordSourceRequest records an outbound source API request
func RecordSourceRequest(source, statusCode string, durationSeconds float64) {
	SourceRequestsTotal.WithLabelValues(source, statusCode).Inc()
	SourceRequestDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordWebhookNotification records a webhook delivery attempt
func RecordWebhookNotification(status string) {
	WebhookNotificationsTotal.WithLabelValues(status).Inc()
}
