package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AccessDecisionsTotal    *prometheus.CounterVec
	AccessDecisionDuration  *prometheus.HistogramVec
	ScopeResolutionDuration prometheus.Histogram

	// Isolation metrics
	PhantomRowsTotal          *prometheus.CounterVec
	OrphanRowsDetected        *prometheus.GaugeVec
	IsolationAuditsTotal      *prometheus.CounterVec
	WriteBreakerOpen          *prometheus.GaugeVec
	ConstraintViolationsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carebridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "carebridge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		AccessDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carebridge_access_decisions_total",
				Help: "Total number of authorization decisions",
			},
			[]string{"module", "action", "outcome", "reason"},
		),
		AccessDecisionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "carebridge_access_decision_duration_seconds",
				Help:    "Authorization decision duration in seconds, including scope resolution",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"module", "action"},
		),
		ScopeResolutionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "carebridge_scope_resolution_duration_seconds",
				Help:    "Tenant scope resolution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		PhantomRowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carebridge_isolation_phantom_rows_total",
				Help: "Rows filtered from responses because their tenant or owner did not match the request scope",
			},
			[]string{"table"},
		),
		OrphanRowsDetected: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "carebridge_isolation_orphan_rows",
				Help: "Orphaned rows (null or inconsistent tenant id) found by the most recent audit",
			},
			[]string{"table"},
		),
		IsolationAuditsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carebridge_isolation_audits_total",
				Help: "Total number of isolation audits",
			},
			[]string{"trigger", "status"},
		),
		WriteBreakerOpen: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "carebridge_isolation_write_breaker_open",
				Help: "1 when the tenant's write path is halted after repeated anomalies",
			},
			[]string{"tenant_id"},
		),
		ConstraintViolationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carebridge_constraint_violations_total",
				Help: "Writes rejected by the tenant-consistency constraints",
			},
			[]string{"table", "constraint"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "carebridge_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "carebridge_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AccessDecisionsTotal,
		m.AccessDecisionDuration,
		m.ScopeResolutionDuration,
		m.PhantomRowsTotal,
		m.OrphanRowsDetected,
		m.IsolationAuditsTotal,
		m.WriteBreakerOpen,
		m.ConstraintViolationsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns an HTTP handler exposing the metrics registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// UpdateDBStats records connection pool statistics
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// statusRecorder captures the response status code for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HTTPMiddleware records request counts and durations
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		duration := time.Since(start).Seconds()
		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(recorder.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}
