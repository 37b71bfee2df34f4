package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrActiveAssignmentExists is returned by CreateOrReactivateAssignment when
// an active row already exists for the (user, role, org) triple.
var ErrActiveAssignmentExists = errors.New("active role assignment already exists")

// Store handles access-control data persistence. Store errors bubble to the
// caller unmodified; the service layer owns classification.
type Store struct {
	db *sql.DB
}

// NewStore creates a new RBAC store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks and migrations
func (s *Store) DB() *sql.DB {
	return s.db
}

const assignmentColumns = `id, user_id, role_id, org_id, is_active, assigned_by, assigned_at`

const roleColumns = `id, name, description, org_id, is_system_role, is_global_role, is_active, created_at, updated_at`

// GetUser retrieves a user row
func (s *Store) GetUser(ctx context.Context, userID int64) (*User, error) {
	query := `
		SELECT id, uuid, email, name, current_org_id, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var user User
	var currentOrgID sql.NullInt64

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.ID,
		&user.UUID,
		&user.Email,
		&user.Name,
		&currentOrgID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if currentOrgID.Valid {
		id := currentOrgID.Int64
		user.CurrentOrgID = &id
	}

	return &user, nil
}

// UpdateUserCurrentOrg persists the tenant context a user is switching into
func (s *Store) UpdateUserCurrentOrg(ctx context.Context, userID, orgID int64) error {
	query := `UPDATE users SET current_org_id = $1, updated_at = $2 WHERE id = $3`

	result, err := s.db.ExecContext(ctx, query, orgID, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to update current org: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %d", userID)
	}

	return nil
}

// GetRole retrieves a role by ID
func (s *Store) GetRole(ctx context.Context, roleID int64) (*Role, error) {
	query := `
		SELECT ` + roleColumns + `
		FROM roles
		WHERE id = $1
	`

	role, err := scanRole(s.db.QueryRowContext(ctx, query, roleID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	return role, nil
}

// GetOrganization retrieves an organization by ID
func (s *Store) GetOrganization(ctx context.Context, orgID int64) (*Organization, error) {
	query := `SELECT id, name, is_active FROM organizations WHERE id = $1`

	var org Organization
	err := s.db.QueryRowContext(ctx, query, orgID).Scan(&org.ID, &org.Name, &org.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return &org, nil
}

// GetAllActiveOrgs returns every active organization. Used only for
// system-role expansion in the service layer.
func (s *Store) GetAllActiveOrgs(ctx context.Context) ([]Organization, error) {
	query := `SELECT id, name, is_active FROM organizations WHERE is_active = TRUE ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active orgs: %w", err)
	}
	defer rows.Close()

	var orgs []Organization
	for rows.Next() {
		var org Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan org: %w", err)
		}
		orgs = append(orgs, org)
	}

	return orgs, rows.Err()
}

// GetCurrentOrg resolves the user's current organization. When currentOrgID
// is nil the earliest-assigned active role's org is used as a fallback;
// otherwise all active roles for that exact org are returned.
func (s *Store) GetCurrentOrg(ctx context.Context, userID int64, currentOrgID *int64) (*CurrentOrg, error) {
	orgID := currentOrgID
	if orgID == nil {
		query := `
			SELECT ur.org_id
			FROM user_roles ur
			WHERE ur.user_id = $1 AND ur.is_active = TRUE AND ur.org_id IS NOT NULL
			ORDER BY ur.assigned_at ASC
			LIMIT 1
		`
		var fallback int64
		err := s.db.QueryRowContext(ctx, query, userID).Scan(&fallback)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to find fallback org: %w", err)
		}
		orgID = &fallback
	}

	org, err := s.GetOrganization(ctx, *orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, nil
	}

	query := `
		SELECT ` + prefixedRoleColumns("r") + `
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1 AND ur.org_id = $2 AND ur.is_active = TRUE AND r.is_active = TRUE
		ORDER BY r.name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID, *orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to get current org roles: %w", err)
	}
	defer rows.Close()

	current := &CurrentOrg{Org: *org}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		current.Roles = append(current.Roles, *role)
	}

	return current, rows.Err()
}

// GetUserOrganizations aggregates the user's active non-system role
// assignments by organization, collecting role names per org.
func (s *Store) GetUserOrganizations(ctx context.Context, userID int64) ([]OrgMembership, error) {
	query := `
		SELECT o.id, o.name, r.name
		FROM user_roles ur
		JOIN organizations o ON o.id = ur.org_id
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1
		  AND ur.is_active = TRUE
		  AND ur.org_id IS NOT NULL
		  AND r.is_system_role = FALSE
		  AND o.is_active = TRUE
		ORDER BY o.name ASC, r.name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user organizations: %w", err)
	}
	defer rows.Close()

	var memberships []OrgMembership
	index := make(map[int64]int)

	for rows.Next() {
		var orgID int64
		var orgName, roleName string
		if err := rows.Scan(&orgID, &orgName, &roleName); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}

		i, ok := index[orgID]
		if !ok {
			i = len(memberships)
			index[orgID] = i
			memberships = append(memberships, OrgMembership{ID: orgID, Name: orgName})
		}
		memberships[i].Roles = append(memberships[i].Roles, roleName)
		memberships[i].RoleCount = len(memberships[i].Roles)
	}

	return memberships, rows.Err()
}

// ValidateOrgAccess reports whether an active assignment exists for the
// exact (user, org) pair. System-role bypass is layered on by the service.
func (s *Store) ValidateOrgAccess(ctx context.Context, userID, orgID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM user_roles
			WHERE user_id = $1 AND org_id = $2 AND is_active = TRUE
		)
	`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, userID, orgID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to validate org access: %w", err)
	}

	return exists, nil
}

// GetUserSystemRole finds the active assignment with a null org, if any
func (s *Store) GetUserSystemRole(ctx context.Context, userID int64) (*RoleAssignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM user_roles
		WHERE user_id = $1 AND org_id IS NULL AND is_active = TRUE
		ORDER BY assigned_at ASC
		LIMIT 1
	`

	assignment, err := scanAssignment(s.db.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get system role: %w", err)
	}

	return assignment, nil
}

// GetUserRoleInOrg looks up the user's active assignment in one org
func (s *Store) GetUserRoleInOrg(ctx context.Context, userID, orgID int64) (*RoleAssignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM user_roles
		WHERE user_id = $1 AND org_id = $2 AND is_active = TRUE
		ORDER BY assigned_at ASC
		LIMIT 1
	`

	assignment, err := scanAssignment(s.db.QueryRowContext(ctx, query, userID, orgID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role in org: %w", err)
	}

	return assignment, nil
}

// FindRoleAssignment finds an assignment (active or not) keyed by
// (userID, roleID, orgID). A nil orgID matches with an IS NULL predicate,
// never with equality.
func (s *Store) FindRoleAssignment(ctx context.Context, userID, roleID int64, orgID *int64) (*RoleAssignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM user_roles
		WHERE user_id = $1
		  AND role_id = $2
		  AND (org_id = $3 OR (org_id IS NULL AND $3 IS NULL))
	`

	assignment, err := scanAssignment(s.db.QueryRowContext(ctx, query, userID, roleID, orgID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find role assignment: %w", err)
	}

	return assignment, nil
}

// CreateRoleAssignment inserts a new active assignment
func (s *Store) CreateRoleAssignment(ctx context.Context, assignment *RoleAssignment) error {
	query := `
		INSERT INTO user_roles (user_id, role_id, org_id, is_active, assigned_by, assigned_at)
		VALUES ($1, $2, $3, TRUE, $4, $5)
		RETURNING id
	`

	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, query,
		assignment.UserID,
		assignment.RoleID,
		assignment.OrgID,
		assignment.AssignedBy,
		now,
	).Scan(&assignment.ID)
	if err != nil {
		return fmt.Errorf("failed to create role assignment: %w", err)
	}

	assignment.IsActive = true
	assignment.AssignedAt = now
	return nil
}

// ReactivateRoleAssignment flips a soft-deleted assignment back to active
func (s *Store) ReactivateRoleAssignment(ctx context.Context, assignmentID int64, assignedBy *int64) error {
	query := `
		UPDATE user_roles
		SET is_active = TRUE, assigned_by = $1, assigned_at = $2
		WHERE id = $3
	`

	result, err := s.db.ExecContext(ctx, query, assignedBy, time.Now().UTC(), assignmentID)
	if err != nil {
		return fmt.Errorf("failed to reactivate role assignment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("role assignment not found: %d", assignmentID)
	}

	return nil
}

// DeleteRoleAssignment soft-deletes the active assignment for (user, role)
// where the org matches OR the row is org-less, so removal is insensitive to
// whether the grant was stored org-scoped or system-scoped. Returns the
// number of rows deactivated.
func (s *Store) DeleteRoleAssignment(ctx context.Context, userID, roleID, orgID int64) (int64, error) {
	query := `
		UPDATE user_roles
		SET is_active = FALSE
		WHERE user_id = $1
		  AND role_id = $2
		  AND (org_id = $3 OR org_id IS NULL)
		  AND is_active = TRUE
	`

	result, err := s.db.ExecContext(ctx, query, userID, roleID, orgID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete role assignment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// CreateOrReactivateAssignment performs the find + insert/reactivate pair in
// a single transaction, locking any existing row so two concurrent calls for
// the same triple cannot both observe "not found" and both insert. Returns
// ErrActiveAssignmentExists when the row is already active.
func (s *Store) CreateOrReactivateAssignment(ctx context.Context, assignment *RoleAssignment) (AssignmentAction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT id, is_active
		FROM user_roles
		WHERE user_id = $1
		  AND role_id = $2
		  AND (org_id = $3 OR (org_id IS NULL AND $3 IS NULL))
		FOR UPDATE
	`

	var existingID int64
	var isActive bool
	err = tx.QueryRowContext(ctx, query, assignment.UserID, assignment.RoleID, assignment.OrgID).
		Scan(&existingID, &isActive)

	now := time.Now().UTC()

	switch {
	case err == sql.ErrNoRows:
		insert := `
			INSERT INTO user_roles (user_id, role_id, org_id, is_active, assigned_by, assigned_at)
			VALUES ($1, $2, $3, TRUE, $4, $5)
			RETURNING id
		`
		if err := tx.QueryRowContext(ctx, insert,
			assignment.UserID, assignment.RoleID, assignment.OrgID, assignment.AssignedBy, now,
		).Scan(&assignment.ID); err != nil {
			return "", fmt.Errorf("failed to create role assignment: %w", err)
		}
		assignment.IsActive = true
		assignment.AssignedAt = now
		if err := tx.Commit(); err != nil {
			return "", fmt.Errorf("failed to commit assignment: %w", err)
		}
		return ActionAssigned, nil

	case err != nil:
		return "", fmt.Errorf("failed to find role assignment: %w", err)

	case isActive:
		return "", ErrActiveAssignmentExists

	default:
		update := `
			UPDATE user_roles
			SET is_active = TRUE, assigned_by = $1, assigned_at = $2
			WHERE id = $3
		`
		if _, err := tx.ExecContext(ctx, update, assignment.AssignedBy, now, existingID); err != nil {
			return "", fmt.Errorf("failed to reactivate role assignment: %w", err)
		}
		assignment.ID = existingID
		assignment.IsActive = true
		assignment.AssignedAt = now
		if err := tx.Commit(); err != nil {
			return "", fmt.Errorf("failed to commit reactivation: %w", err)
		}
		return ActionReactivated, nil
	}
}

// GetAvailableRolesForOrg returns the roles assignable within an org:
// org-specific roles plus global (non-system) templates. System roles are
// never available through normal assignment. Global roles sort first, then
// alphabetical by name.
func (s *Store) GetAvailableRolesForOrg(ctx context.Context, orgID int64) ([]Role, error) {
	query := `
		SELECT ` + roleColumns + `
		FROM roles
		WHERE is_active = TRUE
		  AND (org_id = $1 OR (is_global_role = TRUE AND org_id IS NULL AND is_system_role = FALSE))
		ORDER BY is_global_role DESC, name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to get available roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, *role)
	}

	return roles, rows.Err()
}

// GetUserPermissionsInOrg joins the user's active assignments in one org
// through role_permissions and returns the de-duplicated permission slugs.
func (s *Store) GetUserPermissionsInOrg(ctx context.Context, userID, orgID int64) ([]string, error) {
	query := `
		SELECT p.slug
		FROM user_roles ur
		JOIN role_permissions rp ON rp.role_id = ur.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.user_id = $1 AND ur.org_id = $2 AND ur.is_active = TRUE
		ORDER BY p.slug ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user permissions: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		if _, dup := seen[slug]; dup {
			continue
		}
		seen[slug] = struct{}{}
		slugs = append(slugs, slug)
	}

	return slugs, rows.Err()
}

// prefixedRoleColumns qualifies the role column list with a table alias
func prefixedRoleColumns(alias string) string {
	return alias + ".id, " + alias + ".name, " + alias + ".description, " + alias + ".org_id, " +
		alias + ".is_system_role, " + alias + ".is_global_role, " + alias + ".is_active, " +
		alias + ".created_at, " + alias + ".updated_at"
}

// scanRole scans a role from a database row
func scanRole(scanner interface {
	Scan(dest ...interface{}) error
}) (*Role, error) {
	var role Role
	var orgID sql.NullInt64

	err := scanner.Scan(
		&role.ID,
		&role.Name,
		&role.Description,
		&orgID,
		&role.IsSystemRole,
		&role.IsGlobalRole,
		&role.IsActive,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if orgID.Valid {
		id := orgID.Int64
		role.OrgID = &id
	}

	return &role, nil
}

// scanAssignment scans a role assignment from a database row
func scanAssignment(scanner interface {
	Scan(dest ...interface{}) error
}) (*RoleAssignment, error) {
	var assignment RoleAssignment
	var orgID, assignedBy sql.NullInt64

	err := scanner.Scan(
		&assignment.ID,
		&assignment.UserID,
		&assignment.RoleID,
		&orgID,
		&assignment.IsActive,
		&assignedBy,
		&assignment.AssignedAt,
	)
	if err != nil {
		return nil, err
	}

	if orgID.Valid {
		id := orgID.Int64
		assignment.OrgID = &id
	}
	if assignedBy.Valid {
		id := assignedBy.Int64
		assignment.AssignedBy = &id
	}

	return &assignment, nil
}
