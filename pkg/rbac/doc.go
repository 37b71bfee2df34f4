// Package rbac implements the multi-tenant role-based access control and
// organization-scoping engine for OrgKit.
//
// # Overview
//
// This package owns the access-control facts of a multi-tenant SaaS backend:
// which roles a user holds, which organizations they can act in, and which
// permission slugs those roles expand to. It is split into three layers:
//
//  1. Store: raw SQL primitives over the six access-control tables
//     (users, organizations, roles, permissions, role_permissions, user_roles)
//  2. Service: business rules on top of the store (org switching, role
//     assignment and removal, aggregation views)
//  3. Resolver: the privileged actor-resolution path producing the
//     authorization snapshot every permission gate consumes
//
// # Role Kinds
//
// A role is exactly one of three kinds at any time:
//
//	system       - org-independent, assigned with a null org id, grants
//	               implicit access to every active organization
//	global       - a template definition (null org id) assignable into any
//	               specific organization
//	org-specific - bound to one organization and only assignable there
//
// The assignment row's org id carries the tenant context: null for system
// grants, the target org otherwise. A null org id is always matched with an
// IS NULL predicate, never equality.
//
// # Assignments
//
// UserRoleAssignment is the central access-control fact: user U holds role R,
// contextualized to org O. At most one active row exists per (user, role,
// org) triple. Removal soft-deletes the row; assigning the same triple again
// reactivates it instead of inserting a duplicate:
//
//	result, err := service.AssignRole(ctx, userID, orgID, roleID, &adminID)
//	// result.Action is "assigned" or "reactivated"
//
// The find/insert pair runs inside one transaction with a row lock, so two
// concurrent assignments of the same triple cannot both insert.
//
// # Organization Switching
//
// SwitchOrganization moves a user's tenant context. System role holders may
// enter any active org; everyone else needs an active assignment there:
//
//	result, err := service.SwitchOrganization(ctx, userID, targetOrgID)
//	if result.SessionRefreshRequired {
//		// cached session authorization state is now stale
//	}
//
// # Actor Resolution
//
// The Resolver builds the Actor consumed by every permission check. It runs
// on a privileged connection that bypasses row-level tenant isolation, since
// it must see all of a user's roles across tenants before narrowing to the
// current one:
//
//	resolver := rbac.NewResolver(privilegedDB)
//	actor, err := resolver.Resolve(ctx, userID)
//	if actor.HasPermission("org:update") {
//		// allowed
//	}
//
// Which assignments feed the permission set is a closed decision over
// (hasSystemRole, hasOrgRoles, hasAccessToCurrentOrg): system-only users get
// their system permissions everywhere, users with access to their current
// org get the union of current-org and system permissions, and users whose
// org roles all live elsewhere get an empty set.
//
// # Error Taxonomy
//
// Service and resolver failures carry one of four codes: NOT_FOUND,
// FORBIDDEN, CONFLICT, INTERNAL_SERVER_ERROR. The error constructor is
// injectable so an embedding transport layer can surface its own error type;
// errors already carrying a code pass through unwrapped.
//
// # Hooks
//
// Audit logging, domain events, metrics, tracing, and real-time permission
// broadcast are injected through the Hooks interface and default to no-ops.
// Broadcast failures are logged and never fail the primary operation.
//
// # Related Packages
//
//   - pkg/permissions: the permission registry and extension merger
//   - pkg/audit: audit trail sinks and retention
//   - pkg/broadcast: Redis-backed permission-update notifications
//   - pkg/observability: logging, metrics, tracing, health
package rbac
