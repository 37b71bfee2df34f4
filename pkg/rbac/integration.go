package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gorilla/mux"

	"github.com/orgkit/orgkit/pkg/audit"
	"github.com/orgkit/orgkit/pkg/broadcast"
	"github.com/orgkit/orgkit/pkg/observability"
	"github.com/orgkit/orgkit/pkg/permissions"
)

// LiveHooks wires the service's side effects to the real collaborators:
// audit sinks, the broadcast publisher, Prometheus metrics, and tracing.
// Every collaborator is optional; a nil field makes that hook a no-op.
type LiveHooks struct {
	audit     audit.Logger
	publisher *broadcast.Publisher
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	log       *observability.Logger
}

// LiveHooksConfig carries the collaborators for NewLiveHooks
type LiveHooksConfig struct {
	Audit     audit.Logger
	Publisher *broadcast.Publisher
	Metrics   *observability.Metrics
	Tracer    *observability.Tracer
	Logger    *observability.Logger
}

// NewLiveHooks builds the production hook bundle
func NewLiveHooks(config LiveHooksConfig) *LiveHooks {
	log := config.Logger
	if log == nil {
		log = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &LiveHooks{
		audit:     config.Audit,
		publisher: config.Publisher,
		metrics:   config.Metrics,
		tracer:    config.Tracer,
		log:       log,
	}
}

// AuditLog translates a mutation entry into an audit event. The entry
// actions share the audit package's event-type naming.
func (h *LiveHooks) AuditLog(ctx context.Context, entry AuditEntry) {
	if h.audit == nil {
		return
	}

	userID := entry.UserID
	event := &audit.Event{
		EventType:  audit.EventType(entry.Action),
		Status:     audit.EventStatusSuccess,
		UserID:     &userID,
		OrgID:      entry.OrgID,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Message:    entry.Action,
		Metadata:   entry.Metadata,
	}
	if err := h.audit.Log(ctx, event); err != nil {
		h.log.WithError(err).WithField("action", entry.Action).Warn("failed to write audit event")
	}
}

// PublishEvent logs the domain event. No message bus is wired here; edge
// deployments that need one replace this hook.
func (h *LiveHooks) PublishEvent(ctx context.Context, name string, payload interface{}) {
	h.log.WithFields(map[string]interface{}{
		"event":   name,
		"payload": payload,
	}).Debug("domain event")
}

// TrackMetric maps the service's metric names onto the Prometheus registry
func (h *LiveHooks) TrackMetric(name string, kind MetricKind, tags map[string]string) {
	if h.metrics == nil {
		return
	}

	switch name {
	case "rbac.org_switch":
		h.metrics.OrgSwitchesTotal.WithLabelValues("success").Inc()
	case "rbac.role_assignment":
		h.metrics.RoleAssignmentsTotal.WithLabelValues(tags["action"]).Inc()
	case "rbac.role_removal":
		h.metrics.RoleRemovalsTotal.Inc()
	default:
		h.log.WithField("metric", name).Debug("unmapped metric")
	}
}

// WithTelemetry wraps the operation in a trace span when tracing is wired
func (h *LiveHooks) WithTelemetry(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if h.tracer == nil {
		return fn(ctx)
	}
	return h.tracer.WithSpan(ctx, name, fn)
}

// BroadcastPermissionUpdate pushes a permission-change notification to every
// affected user's channel.
func (h *LiveHooks) BroadcastPermissionUpdate(ctx context.Context, userIDs []int64) error {
	if h.publisher == nil {
		return nil
	}

	start := time.Now()
	err := h.publisher.PublishPermissionUpdate(ctx, userIDs, "permissions_changed")

	if h.metrics != nil {
		status := "success"
		if err != nil {
			status = "failure"
		}
		h.metrics.BroadcastsTotal.WithLabelValues(status).Inc()
		h.metrics.BroadcastDuration.Observe(time.Since(start).Seconds())
	}

	return err
}

// Manager bundles the access-control components for one process
type Manager struct {
	store    *Store
	service  *Service
	resolver *Resolver
	handlers *Handlers
	registry *permissions.Registry
}

// NewManager assembles the store, service, resolver, and HTTP handlers.
// db is the tenant-scoped pool; privilegedDB bypasses row-level security
// and is used only for actor resolution.
func NewManager(db, privilegedDB *sql.DB, registry *permissions.Registry, hooks Hooks, log *observability.Logger) *Manager {
	if hooks == nil {
		hooks = NopHooks{}
	}
	if registry == nil {
		registry = permissions.CoreRegistry()
	}
	if log == nil {
		log = observability.NewLogger(observability.InfoLevel, nil)
	}

	store := NewStore(db)
	service := NewService(store, WithHooks(hooks), WithLogger(log))
	resolver := NewResolver(privilegedDB, WithResolverLogger(log))

	return &Manager{
		store:    store,
		service:  service,
		resolver: resolver,
		handlers: NewHandlers(service, resolver),
		registry: registry,
	}
}

// Initialize runs migrations and seeds the registry's permissions
func (m *Manager) Initialize(ctx context.Context) error {
	if err := RunMigrations(ctx, m.store.db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := SeedCorePermissions(ctx, m.store.db, m.registry); err != nil {
		return fmt.Errorf("failed to seed permissions: %w", err)
	}

	return nil
}

// RegisterRoutes registers the access-control routes with a router
func (m *Manager) RegisterRoutes(router *mux.Router) {
	m.handlers.RegisterRoutes(router)
}

// GetStore returns the store
func (m *Manager) GetStore() *Store {
	return m.store
}

// GetService returns the service
func (m *Manager) GetService() *Service {
	return m.service
}

// GetResolver returns the actor resolver
func (m *Manager) GetResolver() *Resolver {
	return m.resolver
}
