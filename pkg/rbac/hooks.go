package rbac

import (
	"context"
)

// AuditEntry describes an access-control mutation for the audit trail
type AuditEntry struct {
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   int64                  `json:"entity_id"`
	UserID     int64                  `json:"user_id"`
	OrgID      *int64                 `json:"org_id,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// MetricKind distinguishes counter-style metrics from timings
type MetricKind string

const (
	MetricCounter   MetricKind = "counter"
	MetricHistogram MetricKind = "histogram"
)

// Hooks bundles the side-effect collaborators the service drives after a
// successful mutation. Every method is optional in spirit: implementations
// must tolerate partial wiring, and NopHooks is the default. Hook failures
// never alter business outcomes.
type Hooks interface {
	// AuditLog records an access-control mutation
	AuditLog(ctx context.Context, entry AuditEntry)

	// PublishEvent emits a domain event
	PublishEvent(ctx context.Context, name string, payload interface{})

	// TrackMetric records an operational metric
	TrackMetric(name string, kind MetricKind, tags map[string]string)

	// WithTelemetry wraps an operation in a trace span
	WithTelemetry(ctx context.Context, name string, fn func(ctx context.Context) error) error

	// BroadcastPermissionUpdate notifies connected clients of the given users
	// that their permission set changed. Errors are reported to the caller but
	// the caller must treat them as non-fatal.
	BroadcastPermissionUpdate(ctx context.Context, userIDs []int64) error
}

// NopHooks is the default no-op hook bundle
type NopHooks struct{}

func (NopHooks) AuditLog(ctx context.Context, entry AuditEntry) {}

func (NopHooks) PublishEvent(ctx context.Context, name string, payload interface{}) {}

func (NopHooks) TrackMetric(name string, kind MetricKind, tags map[string]string) {}

func (NopHooks) WithTelemetry(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (NopHooks) BroadcastPermissionUpdate(ctx context.Context, userIDs []int64) error {
	return nil
}
