package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Role lifecycle events
	EventTypeRoleAssign     EventType = "role.assign"
	EventTypeRoleReactivate EventType = "role.reactivate"
	EventTypeRoleRemove     EventType = "role.remove"

	// Organization context events
	EventTypeOrgSwitch       EventType = "org.switch"
	EventTypeOrgAccessDenied EventType = "org.access_denied"

	// Actor resolution events
	EventTypeActorResolve       EventType = "actor.resolve"
	EventTypeActorResolveFailed EventType = "actor.resolve_failed"

	// Permission registry events
	EventTypeRegistryReload       EventType = "registry.reload"
	EventTypeRegistryReloadFailed EventType = "registry.reload_failed"

	// Permission check events (sensitive denials only by convention)
	EventTypePermissionDenied EventType = "permission.denied"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event represents a single audit log entry
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor and tenant context
	UserID *int64 `json:"user_id,omitempty"`
	OrgID  *int64 `json:"org_id,omitempty"`

	// Affected entity
	EntityType string `json:"entity_type,omitempty"`
	EntityID   int64  `json:"entity_id,omitempty"`

	// Request context
	RequestID string `json:"request_id,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an audit event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	return &event, err
}

// SearchFilter represents filters for searching audit logs
type SearchFilter struct {
	StartTime *time.Time
	EndTime   *time.Time

	UserID *int64
	OrgID  *int64

	EventTypes []EventType
	Status     *EventStatus

	Limit  int
	Offset int
}

// RetentionPolicy defines how long audit logs should be kept
type RetentionPolicy struct {
	// RetentionDays is the number of days to keep audit logs
	RetentionDays int

	// Schedule is a cron expression controlling when the sweep runs
	Schedule string
}

// DefaultRetentionPolicy returns a default retention policy (90 days,
// swept nightly)
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		RetentionDays: 90,
		Schedule:      "0 3 * * *",
	}
}
