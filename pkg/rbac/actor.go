package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/orgkit/orgkit/pkg/observability"
)

// legacySystemOrgSentinel is a defect some historical rows carry in place of
// a null org id. The resolver treats it as system scope and logs it so the
// row can be repaired, and never lets it surface as a real org.
const legacySystemOrgSentinel = -1

// Resolver builds the actor snapshot consumed by every procedure-level
// permission check. It must run on a privileged connection that bypasses
// row-level tenant isolation: it needs every role a user holds across
// tenants before narrowing to the current one. This is the one legitimate
// cross-tenant read path.
type Resolver struct {
	db       *sql.DB
	logger   *observability.Logger
	newError ErrorFactory
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithResolverLogger installs the structured logger
func WithResolverLogger(logger *observability.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithResolverErrorFactory substitutes the error constructor
func WithResolverErrorFactory(factory ErrorFactory) ResolverOption {
	return func(r *Resolver) {
		r.newError = factory
	}
}

// NewResolver creates a resolver over a privileged database handle
func NewResolver(db *sql.DB, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		db:       db,
		logger:   observability.NewLogger(observability.InfoLevel, nil),
		newError: NewError,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// resolvedAssignment is one active assignment joined with its role and org
type resolvedAssignment struct {
	AssignmentID int64
	RoleID       int64
	RoleName     string
	IsSystemRole bool
	OrgID        *int64
	OrgName      *string
}

// Resolve produces the authorization actor for a user. Which assignments'
// permissions are expanded is decided by a closed state machine over
// (hasSystemRole, hasOrgRoles, hasAccessToCurrentOrg); see expandableRoleIDs.
func (r *Resolver) Resolve(ctx context.Context, userID int64) (*Actor, error) {
	user, err := NewStore(r.db).GetUser(ctx, userID)
	if err != nil {
		return nil, r.newError(CodeInternal, "failed to load user for actor resolution", err)
	}
	if user == nil {
		return nil, r.newError(CodeNotFound, "user not found", nil)
	}

	assignments, err := r.fetchActiveAssignments(ctx, userID)
	if err != nil {
		return nil, r.newError(CodeInternal, "failed to load role assignments", err)
	}

	var systemRoles, orgRoles []resolvedAssignment
	for _, a := range assignments {
		if a.OrgID != nil && *a.OrgID == legacySystemOrgSentinel {
			r.logger.WithFields(map[string]interface{}{
				"user_id":       userID,
				"assignment_id": a.AssignmentID,
			}).Warn("role assignment stored with sentinel org id, classifying as system scope")
			a.OrgID = nil
		}
		if a.OrgID == nil {
			systemRoles = append(systemRoles, a)
		} else {
			orgRoles = append(orgRoles, a)
		}
	}

	hasAccessToCurrentOrg := false
	if user.CurrentOrgID != nil {
		for _, a := range orgRoles {
			if *a.OrgID == *user.CurrentOrgID {
				hasAccessToCurrentOrg = true
				break
			}
		}
	}

	roleIDs := expandableRoleIDs(systemRoles, orgRoles, user.CurrentOrgID, hasAccessToCurrentOrg)

	permissions, err := r.expandPermissions(ctx, userID, roleIDs)
	if err != nil {
		return nil, r.newError(CodeInternal, "failed to expand permissions", err)
	}

	actor := &Actor{
		ID:           user.ID,
		UUID:         user.UUID,
		Email:        user.Email,
		Name:         user.Name,
		CurrentOrgID: user.CurrentOrgID,
		IsSystemUser: len(systemRoles) > 0,
		Permissions:  permissions,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}

	for _, a := range assignments {
		orgName := "System"
		orgID := a.OrgID
		if a.OrgID != nil && *a.OrgID == legacySystemOrgSentinel {
			orgID = nil
		} else if a.OrgName != nil {
			orgName = *a.OrgName
		}
		actor.Roles = append(actor.Roles, ActorRole{
			RoleID:   a.RoleID,
			RoleName: a.RoleName,
			OrgID:    orgID,
			OrgName:  orgName,
			IsSystem: a.IsSystemRole || orgID == nil,
		})
	}

	for _, a := range orgRoles {
		name := ""
		if a.OrgName != nil {
			name = *a.OrgName
		}
		actor.AvailableOrgs = append(actor.AvailableOrgs, ActorOrg{
			ID:       *a.OrgID,
			Name:     name,
			RoleID:   a.RoleID,
			RoleName: a.RoleName,
		})
	}

	return actor, nil
}

// expandableRoleIDs is the branch logic deciding which assignments feed the
// permission set. Over-matching here leaks another tenant's permissions;
// under-matching locks a legitimate system user out.
func expandableRoleIDs(systemRoles, orgRoles []resolvedAssignment, currentOrgID *int64, hasAccessToCurrentOrg bool) []int64 {
	hasSystem := len(systemRoles) > 0
	hasOrg := len(orgRoles) > 0

	var ids []int64

	switch {
	case hasSystem && !hasOrg:
		// Only system roles.
		for _, a := range systemRoles {
			ids = append(ids, a.RoleID)
		}

	case hasSystem && hasOrg && !hasAccessToCurrentOrg:
		// Org roles exist elsewhere but not for the current org; only the
		// system roles apply here.
		for _, a := range systemRoles {
			ids = append(ids, a.RoleID)
		}

	case hasAccessToCurrentOrg:
		// Union of current-org roles and system roles.
		for _, a := range orgRoles {
			if currentOrgID != nil && *a.OrgID == *currentOrgID {
				ids = append(ids, a.RoleID)
			}
		}
		for _, a := range systemRoles {
			ids = append(ids, a.RoleID)
		}

	default:
		// Org roles only, none for the current org: deny by construction.
		return nil
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// fetchActiveAssignments loads every active assignment with role and org
// resolved, across all tenants.
func (r *Resolver) fetchActiveAssignments(ctx context.Context, userID int64) ([]resolvedAssignment, error) {
	query := `
		SELECT ur.id, ur.role_id, r.name, r.is_system_role, ur.org_id, o.name
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id AND r.is_active = TRUE
		LEFT JOIN organizations o ON o.id = ur.org_id
		WHERE ur.user_id = $1 AND ur.is_active = TRUE
		ORDER BY ur.assigned_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []resolvedAssignment
	for rows.Next() {
		var a resolvedAssignment
		var orgID sql.NullInt64
		var orgName sql.NullString
		if err := rows.Scan(&a.AssignmentID, &a.RoleID, &a.RoleName, &a.IsSystemRole, &orgID, &orgName); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		if orgID.Valid {
			id := orgID.Int64
			a.OrgID = &id
		}
		if orgName.Valid {
			name := orgName.String
			a.OrgName = &name
		}
		assignments = append(assignments, a)
	}

	return assignments, rows.Err()
}

// expandPermissions flattens the selected roles' permissions and
// de-duplicates by slug. Dangling role-permission rows (no matching
// permission) are dropped with a warning.
func (r *Resolver) expandPermissions(ctx context.Context, userID int64, roleIDs []int64) ([]string, error) {
	if len(roleIDs) == 0 {
		return []string{}, nil
	}

	placeholders := make([]string, len(roleIDs))
	args := make([]interface{}, len(roleIDs))
	for i, id := range roleIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := `
		SELECT rp.id, p.slug
		FROM role_permissions rp
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY p.slug ASC
	`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query permissions: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	permissions := []string{}
	for rows.Next() {
		var joinID int64
		var slug sql.NullString
		if err := rows.Scan(&joinID, &slug); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		if !slug.Valid {
			r.logger.WithFields(map[string]interface{}{
				"user_id":            userID,
				"role_permission_id": joinID,
			}).Warn("dangling role permission row, skipping")
			continue
		}
		if _, dup := seen[slug.String]; dup {
			continue
		}
		seen[slug.String] = struct{}{}
		permissions = append(permissions, slug.String)
	}

	return permissions, rows.Err()
}
