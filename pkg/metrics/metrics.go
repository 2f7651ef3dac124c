package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exchange_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	DatabaseOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_database_operations_total",
			Help: "Total store operations",
		},
		[]string{"operation", "entity", "result"},
	)

	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exchange_database_operation_duration_seconds",
			Help:    "Store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "entity"},
	)

	ApplicationStatusChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_application_status_changes_total",
			Help: "Application status changes by origin and target status",
		},
		[]string{"from", "to"},
	)

	CascadeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_cascade_failures_total",
			Help: "Sibling updates that failed inside a cascade",
		},
		[]string{"cascade"},
	)

	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_login_attempts_total",
			Help: "Login attempts by result",
		},
		[]string{"result"},
	)

	CachedEntities = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "exchange_cached_entities",
			Help: "Entities held by the object cache",
		},
		[]string{"entity"},
	)
)

func RecordHttpRequest(method, endpoint, status string, duration time.Duration) {
	HttpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HttpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func RecordDatabaseOperation(operation, entity string, err error, duration time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	DatabaseOperationsTotal.WithLabelValues(operation, entity, result).Inc()
	DatabaseOperationDuration.WithLabelValues(operation, entity).Observe(duration.Seconds())
}

func RecordStatusChange(from, to string) {
	ApplicationStatusChanges.WithLabelValues(from, to).Inc()
}

func RecordCascadeFailure(cascade string) {
	CascadeFailures.WithLabelValues(cascade).Inc()
}

func RecordLogin(result string) {
	LoginAttempts.WithLabelValues(result).Inc()
}

func SetCachedEntities(entity string, count int) {
	CachedEntities.WithLabelValues(entity).Set(float64(count))
}
