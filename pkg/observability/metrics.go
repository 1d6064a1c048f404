package observability

import (
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

	// Authentication metrics
	RegistrationsTotal *prometheus.CounterVec
	LoginsTotal        *prometheus.CounterVec
	ValidationsTotal   *prometheus.CounterVec
	TokensIssuedTotal  prometheus.Counter
	TokensRevokedTotal prometheus.Counter
	TokensSweptTotal   prometheus.Counter

	// Storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec
	StorageRetriesTotal      *prometheus.CounterVec

	// Profile cache metrics
	ProfileCacheHitsTotal   prometheus.Counter
	ProfileCacheMissesTotal prometheus.Counter

	// Purchase mirror metrics
	MirrorRecordsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		RegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authd_registrations_total",
				Help: "Total number of registration attempts",
			},
			[]string{"status"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authd_logins_total",
				Help: "Total number of login attempts",
			},
			[]string{"status"},
		),
		ValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authd_token_validations_total",
				Help: "Total number of token validations",
			},
			[]string{"shape", "outcome"},
		),
		TokensIssuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "authd_tokens_issued_total",
				Help: "Total number of bearer tokens issued",
			},
		),
		TokensRevokedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "authd_tokens_revoked_total",
				Help: "Total number of bearer tokens explicitly revoked",
			},
		),
		TokensSweptTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "authd_tokens_swept_total",
				Help: "Total number of expired tokens removed by the janitor",
			},
		),

		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authd_storage_operations_total",
				Help: "Total number of key-value store operations",
			},
			[]string{"operation", "table", "status"},
		),
		StorageOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authd_storage_operation_duration_seconds",
				Help:    "Key-value store operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "table"},
		),
		StorageRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authd_storage_retries_total",
				Help: "Total number of retried key-value store operations",
			},
			[]string{"operation", "table"},
		),

		ProfileCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "authd_profile_cache_hits_total",
				Help: "Total number of profile cache hits",
			},
		),
		ProfileCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "authd_profile_cache_misses_total",
				Help: "Total number of profile cache misses",
			},
		),

		MirrorRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authd_mirror_records_total",
				Help: "Total number of purchase change records processed",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RegistrationsTotal,
		m.LoginsTotal,
		m.ValidationsTotal,
		m.TokensIssuedTotal,
		m.TokensRevokedTotal,
		m.TokensSweptTotal,
		m.StorageOperationsTotal,
		m.StorageOperationDuration,
		m.StorageRetriesTotal,
		m.ProfileCacheHitsTotal,
		m.ProfileCacheMissesTotal,
		m.MirrorRecordsTotal,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
