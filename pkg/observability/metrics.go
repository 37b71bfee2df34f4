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

	// Access-control metrics
	OrgSwitchesTotal      *prometheus.CounterVec
	RoleAssignmentsTotal  *prometheus.CounterVec
	RoleRemovalsTotal     prometheus.Counter
	ActorResolutionsTotal *prometheus.CounterVec
	PermissionChecksTotal *prometheus.CounterVec
	StoreQueryDuration    *prometheus.HistogramVec

	// Broadcast metrics
	BroadcastsTotal   *prometheus.CounterVec
	BroadcastDuration prometheus.Histogram

	// Registry metrics
	RegistryReloadsTotal *prometheus.CounterVec
	RegistryPermissions  prometheus.Gauge

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgkit_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orgkit_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		OrgSwitchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgkit_org_switches_total",
				Help: "Total number of organization switches",
			},
			[]string{"status"},
		),
		RoleAssignmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgkit_role_assignments_total",
				Help: "Total number of role assignments",
			},
			[]string{"action"},
		),
		RoleRemovalsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "orgkit_role_removals_total",
				Help: "Total number of role removals",
			},
		),
		ActorResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgkit_actor_resolutions_total",
				Help: "Total number of actor resolutions",
			},
			[]string{"outcome"},
		),
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgkit_permission_checks_total",
				Help: "Total number of permission checks",
			},
			[]string{"allowed"},
		),
		StoreQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orgkit_store_query_duration_seconds",
				Help:    "Access-control store query duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"},
		),

		BroadcastsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgkit_broadcasts_total",
				Help: "Total number of permission-update broadcasts",
			},
			[]string{"status"},
		),
		BroadcastDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "orgkit_broadcast_duration_seconds",
				Help:    "Permission-update broadcast duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),

		RegistryReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgkit_registry_reloads_total",
				Help: "Total number of permission registry reloads",
			},
			[]string{"status"},
		),
		RegistryPermissions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "orgkit_registry_permissions",
				Help: "Number of permissions in the merged registry",
			},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "orgkit_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "orgkit_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.OrgSwitchesTotal,
		m.RoleAssignmentsTotal,
		m.RoleRemovalsTotal,
		m.ActorResolutionsTotal,
		m.PermissionChecksTotal,
		m.StoreQueryDuration,
		m.BroadcastsTotal,
		m.BroadcastDuration,
		m.RegistryReloadsTotal,
		m.RegistryPermissions,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
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
