// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Detection metrics
	EventsSeen       *prometheus.CounterVec
	LaunchesDetected *prometheus.CounterVec
	DuplicateMints   prometheus.Counter

	// Metadata metrics
	AdapterFetches  *prometheus.CounterVec
	AdapterFailures *prometheus.CounterVec
	AdapterLatency  *prometheus.HistogramVec
	Reconciliations prometheus.Counter
	EmptyRecords    prometheus.Counter

	// Notification metrics
	NotificationsSent  prometheus.Counter
	NotificationErrors prometheus.Counter

	// Health metrics
	LastDetection prometheus.Gauge
	WSReconnects  prometheus.Counter
	UptimeSeconds prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "bagwatch"
	}

	return &Metrics{
		// Detection metrics
		EventsSeen: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "events_seen_total",
			Help:      "Total number of chain events inspected by path",
		}, []string{"path"}),
		LaunchesDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "launches_detected_total",
			Help:      "Total number of launch candidates extracted by path",
		}, []string{"path"}),
		DuplicateMints: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "duplicate_mints_total",
			Help:      "Total number of mints rejected by the dedup set",
		}),

		// Metadata metrics
		AdapterFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "adapter_fetches_total",
			Help:      "Total number of metadata adapter fetches by source",
		}, []string{"source"}),
		AdapterFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "adapter_failures_total",
			Help:      "Total number of metadata adapter failures by source and kind",
		}, []string{"source", "kind"}),
		AdapterLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "adapter_latency_seconds",
			Help:      "Metadata adapter fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		Reconciliations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "reconciliations_total",
			Help:      "Total number of display records reconciled",
		}),
		EmptyRecords: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "empty_records_total",
			Help:      "Total number of reconciliations where every adapter came up empty",
		}),

		// Notification metrics
		NotificationsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "notifications_sent_total",
			Help:      "Total number of launch notifications sent",
		}),
		NotificationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "notification_errors_total",
			Help:      "Total number of notification delivery errors",
		}),

		// Health metrics
		LastDetection: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_detection_timestamp",
			Help:      "Unix timestamp of the last launch detection",
		}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnects",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEventSeen increments the events seen counter for a detection path.
func RecordEventSeen(path string) {
	DefaultMetrics.EventsSeen.WithLabelValues(path).Inc()
}

// RecordLaunchDetected records a launch candidate from a detection path.
func RecordLaunchDetected(path string) {
	DefaultMetrics.LaunchesDetected.WithLabelValues(path).Inc()
	DefaultMetrics.LastDetection.Set(float64(time.Now().Unix()))
}

// RecordDuplicateMint increments the dedup rejection counter.
func RecordDuplicateMint() {
	DefaultMetrics.DuplicateMints.Inc()
}

// RecordAdapterFetch records an adapter fetch and its latency.
func RecordAdapterFetch(source string, seconds float64) {
	DefaultMetrics.AdapterFetches.WithLabelValues(source).Inc()
	DefaultMetrics.AdapterLatency.WithLabelValues(source).Observe(seconds)
}

// RecordAdapterFailure records a terminal adapter failure.
func RecordAdapterFailure(source, kind string) {
	DefaultMetrics.AdapterFailures.WithLabelValues(source, kind).Inc()
}

// RecordReconciliation records a completed reconciliation.
func RecordReconciliation(empty bool) {
	DefaultMetrics.Reconciliations.Inc()
	if empty {
		DefaultMetrics.EmptyRecords.Inc()
	}
}

// RecordWSReconnect increments the WebSocket reconnect counter.
func RecordWSReconnect() {
	DefaultMetrics.WSReconnects.Inc()
}

// RecordUptimeTick adds one second to the uptime counter.
func RecordUptimeTick() {
	DefaultMetrics.UptimeSeconds.Inc()
}

// RecordNotification records a notification attempt.
func RecordNotification(err error) {
	if err != nil {
		DefaultMetrics.NotificationErrors.Inc()
		return
	}
	DefaultMetrics.NotificationsSent.Inc()
}
