package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics for the API
type Metrics struct {
	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	// SYSCONF operation metrics
	storeOperationsTotal   *prometheus.CounterVec
	storeOperationDuration *prometheus.HistogramVec
	storeEntries           prometheus.Gauge

	// API key authentication metrics
	authRequestsTotal *prometheus.CounterVec

	// Clock sync metrics
	syncRunsTotal  *prometheus.CounterVec
	syncLastDelta  prometheus.Gauge
	snapshotsTotal *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sysconf_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sysconf_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpRequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sysconf_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		storeOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sysconf_store_operations_total",
				Help: "Total number of SYSCONF load, save and replace operations",
			},
			[]string{"operation", "status"},
		),

		storeOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sysconf_store_operation_duration_seconds",
				Help:    "SYSCONF operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		storeEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sysconf_entries",
				Help: "Number of entries in the last loaded SYSCONF buffer",
			},
		),

		authRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sysconf_auth_requests_total",
				Help: "Total number of authentication requests",
			},
			[]string{"status"},
		),

		syncRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sysconf_sync_runs_total",
				Help: "Total number of counter bias sync runs",
			},
			[]string{"status"},
		),

		syncLastDelta: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sysconf_sync_last_delta_seconds",
				Help: "Bias delta applied by the last successful sync",
			},
		),

		snapshotsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sysconf_snapshots_total",
				Help: "Total number of snapshot operations",
			},
			[]string{"operation", "status"},
		),
	}
}

func statusLabel(success bool) string {
	if success {
		return statusSuccess
	}
	return statusError
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	statusCodeStr := strconv.Itoa(statusCode)

	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCodeStr).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordStoreOperation records a SYSCONF operation
func (m *Metrics) RecordStoreOperation(operation string, success bool, duration time.Duration) {
	m.storeOperationsTotal.WithLabelValues(operation, statusLabel(success)).Inc()
	m.storeOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateEntryCount updates the entry gauge
func (m *Metrics) UpdateEntryCount(entries int) {
	m.storeEntries.Set(float64(entries))
}

// RecordAuthRequest records an authentication request
func (m *Metrics) RecordAuthRequest(success bool) {
	m.authRequestsTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordSync records a sync run
func (m *Metrics) RecordSync(success bool, delta int64) {
	m.syncRunsTotal.WithLabelValues(statusLabel(success)).Inc()
	if success {
		m.syncLastDelta.Set(float64(delta))
	}
}

// RecordSnapshotOperation records a snapshot create, restore or prune
func (m *Metrics) RecordSnapshotOperation(operation string, success bool) {
	m.snapshotsTotal.WithLabelValues(operation, statusLabel(success)).Inc()
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(rw, r)

		m.RecordHTTPRequest(method, endpoint, rw.statusCode, time.Since(start))
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
