package rbac

import (
	"time"
)

// Role represents a role definition. Exactly one of three kinds at any time:
// system (org-independent, visible through every tenant), global (a template
// assignable into any org), or org-specific (bound to OrgID).
type Role struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	OrgID        *int64    `json:"org_id,omitempty"` // nil for system and global roles
	IsSystemRole bool      `json:"is_system_role"`
	IsGlobalRole bool      `json:"is_global_role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RoleAssignment is the central access-control fact: user U holds role R,
// contextualized to org O, or globally when OrgID is nil (system roles).
// Removal soft-deletes (IsActive=false); re-assignment reactivates the
// existing row instead of inserting a duplicate.
type RoleAssignment struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	RoleID     int64     `json:"role_id"`
	OrgID      *int64    `json:"org_id,omitempty"` // nil only for system-role assignments
	IsActive   bool      `json:"is_active"`
	AssignedBy *int64    `json:"assigned_by,omitempty"`
	AssignedAt time.Time `json:"assigned_at"`
}

// User carries the fields the access-control core needs; the full user
// profile is owned by user management.
type User struct {
	ID           int64     `json:"id"`
	UUID         string    `json:"uuid"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	CurrentOrgID *int64    `json:"current_org_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Organization is the unit of tenant isolation
type Organization struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// SystemRoleAccessLabel tags synthetic org entries granted through a system
// role rather than an explicit assignment.
const SystemRoleAccessLabel = "System Role Access"

// OrgMembership aggregates a user's roles within one organization
type OrgMembership struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Roles     []string `json:"roles"`
	RoleCount int      `json:"role_count"`
}

// CurrentOrg is the resolved current-organization view for a user
type CurrentOrg struct {
	Org   Organization `json:"org"`
	Roles []Role       `json:"roles"`
}

// RoleScope tags an assignable role by where it may be attached
type RoleScope string

const (
	RoleScopeGlobal      RoleScope = "global"
	RoleScopeOrgSpecific RoleScope = "org-specific"
)

// AvailableRole is the view model for roles assignable within an org
type AvailableRole struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Scope       RoleScope `json:"scope"`
}

// SwitchResult is returned by Service.SwitchOrganization.
// SessionRefreshRequired signals the session layer that cached authorization
// state is stale; the refresh itself happens outside this core.
type SwitchResult struct {
	Success                bool         `json:"success"`
	Org                    Organization `json:"org"`
	Role                   Role         `json:"role"`
	SessionRefreshRequired bool         `json:"session_refresh_required"`
	CurrentOrgID           int64        `json:"current_org_id"`
}

// AssignmentAction distinguishes a fresh insert from a reactivated row
type AssignmentAction string

const (
	ActionAssigned    AssignmentAction = "assigned"
	ActionReactivated AssignmentAction = "reactivated"
)

// AssignmentResult is returned by Service.AssignRole
type AssignmentResult struct {
	Success    bool             `json:"success"`
	Action     AssignmentAction `json:"action"`
	Assignment RoleAssignment   `json:"assignment"`
}

// ActorRole is one active assignment in the actor snapshot, with the role and
// org resolved. OrgName falls back to "System" for orgless assignments.
type ActorRole struct {
	RoleID   int64  `json:"role_id"`
	RoleName string `json:"role_name"`
	OrgID    *int64 `json:"org_id,omitempty"`
	OrgName  string `json:"org_name"`
	IsSystem bool   `json:"is_system"`
}

// ActorOrg is an organization the actor can switch into
type ActorOrg struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	RoleID   int64  `json:"role_id"`
	RoleName string `json:"role_name"`
}

// Actor is the resolved authorization identity consumed by every
// procedure-level permission check in the rest of the system.
type Actor struct {
	ID            int64       `json:"id"`
	UUID          string      `json:"uuid"`
	Email         string      `json:"email"`
	Name          string      `json:"name"`
	CurrentOrgID  *int64      `json:"current_org_id,omitempty"`
	IsSystemUser  bool        `json:"is_system_user"`
	Permissions   []string    `json:"permissions"`
	Roles         []ActorRole `json:"roles"`
	AvailableOrgs []ActorOrg  `json:"available_orgs"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// HasPermission reports whether the actor holds a permission slug
func (a *Actor) HasPermission(slug string) bool {
	for _, p := range a.Permissions {
		if p == slug {
			return true
		}
	}
	return false
}
