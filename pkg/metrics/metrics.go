package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Notifications created, split by category and whether the row is a digest.
	NotificationCreatedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_created_count",
			Help: "Total number of notification records created",
		},
		[]string{"type", "digest"},
	)

	// Escalations performed per rule and entity type.
	EscalationProcessedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalation_processed_count",
			Help: "Total number of escalations performed",
		},
		[]string{"rule", "entity_type"},
	)

	// Entities examined but not escalated, by reason
	// (throttled, terminal, config_error, store_error).
	EscalationSkippedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalation_skipped_count",
			Help: "Total number of entities skipped during escalation scans",
		},
		[]string{"reason"},
	)

	// Duration of a full escalation scan.
	EscalationScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "escalation_scan_duration_seconds",
			Help:    "Escalation scan duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
	)

	// Queries slower than the slow-query threshold.
	SlowQueryCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of slow database queries",
		},
	)
)

// IncNotificationCreated increments the creation counter for one notification.
func IncNotificationCreated(notificationType string, digest bool) {
	d := "false"
	if digest {
		d = "true"
	}
	NotificationCreatedCount.WithLabelValues(notificationType, d).Inc()
}

// IncEscalationProcessed increments the escalation counter for one escalation.
func IncEscalationProcessed(rule, entityType string) {
	EscalationProcessedCount.WithLabelValues(rule, entityType).Inc()
}

// IncEscalationSkipped increments the skip counter with the given reason.
func IncEscalationSkipped(reason string) {
	EscalationSkippedCount.WithLabelValues(reason).Inc()
}

// ObserveScanDuration records the duration of one escalation scan.
func ObserveScanDuration(duration time.Duration) {
	EscalationScanDuration.Observe(duration.Seconds())
}
