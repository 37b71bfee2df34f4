// Package observability provides structured logging, Prometheus metrics,
// health checks, and OpenTelemetry tracing for OrgKit services.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("org_id", orgID).Info("organization switched")
//
// Context-aware logging:
//
//	logger := observability.FromContext(ctx)
//	logger.WithError(err).Error("actor resolution failed")
//
// # Prometheus Metrics
//
// Initialize and use metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.OrgSwitchesTotal.WithLabelValues("success").Inc()
//	metrics.RoleAssignmentsTotal.WithLabelValues("reactivated").Inc()
//
// # Health Checks
//
// Configure health checker:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	observability.RegisterHealthRoutes(mux, checker)
//
// The database is a hard dependency; Redis only carries broadcasts, so a
// Redis outage reports degraded rather than unhealthy.
//
// # Tracing
//
//	tracer := observability.NewTracer("orgkit.rbac")
//	err := tracer.WithSpan(ctx, "rbac.assign_role", func(ctx context.Context) error {
//		return service.AssignRole(ctx, ...)
//	})
//
// # Related Packages
//
//   - pkg/config: observability configuration
//   - pkg/rbac: the hook bundle driving these metrics
package observability
