// Package observability provides Prometheus metrics and OpenTelemetry tracing
// for the service.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// SubmissionsTotal counts processed submissions by outcome.
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marquee_submissions_total",
		Help: "Total number of processed submissions by outcome",
	}, []string{"outcome"})

	// DeniedAddsTotal counts denied poster requests by denial reason.
	DeniedAddsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marquee_denied_adds_total",
		Help: "Total number of denied poster requests by reason",
	}, []string{"reason"})

	// RecordsCreatedTotal counts new ledger records.
	RecordsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marquee_records_created_total",
		Help: "Total number of ledger records appended",
	})

	// AuditIssuesTotal counts integrity issues found by check type.
	AuditIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marquee_audit_issues_total",
		Help: "Total number of integrity issues found by check type",
	}, []string{"check"})

	// AuditRepairsTotal counts integrity repairs applied by check type.
	AuditRepairsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marquee_audit_repairs_total",
		Help: "Total number of integrity repairs applied by check type",
	}, []string{"check"})

	// LockWaitSeconds records how long submissions waited for the ledger lock.
	LockWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marquee_lock_wait_seconds",
		Help:    "Time spent waiting for the ledger coordinator lock",
		Buckets: prometheus.DefBuckets,
	})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marquee_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marquee_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

// DatabaseMetrics wraps DB access for recording query latency.
type DatabaseMetrics struct {
	db *gorm.DB
}

// NewDatabaseMetrics returns a new DatabaseMetrics instance.
func NewDatabaseMetrics(db *gorm.DB) *DatabaseMetrics {
	return &DatabaseMetrics{db: db}
}

// ObserveQuery records the latency of a database query.
func (m *DatabaseMetrics) ObserveQuery(operation, table string, start time.Time) {
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, table, start)
	}
}
