package rbac

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/orgkit/orgkit/pkg/observability"
)

// Service is the behavioral core on top of the store: organization switching,
// role assignment and removal with role-kind validation, and the aggregation
// views with system-role expansion. All mutations drive the hook bundle;
// broadcast failures are logged and swallowed.
type Service struct {
	store    *Store
	hooks    Hooks
	logger   *observability.Logger
	newError ErrorFactory
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithHooks installs the side-effect collaborators
func WithHooks(hooks Hooks) ServiceOption {
	return func(s *Service) {
		s.hooks = hooks
	}
}

// WithLogger installs the structured logger
func WithLogger(logger *observability.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithErrorFactory substitutes the error constructor so an embedding
// transport layer can surface its own error type.
func WithErrorFactory(factory ErrorFactory) ServiceOption {
	return func(s *Service) {
		s.newError = factory
	}
}

// NewService creates a new RBAC service
func NewService(store *Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		hooks:    NopHooks{},
		logger:   observability.NewLogger(observability.InfoLevel, nil),
		newError: NewError,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// fail classifies an error at a public method boundary. Errors already
// carrying a taxonomy code pass through unchanged so a specific cause is
// never buried under a generic internal wrapper.
func (s *Service) fail(op string, err error) error {
	if HasCode(err) {
		return err
	}
	s.logger.WithField("operation", op).WithError(err).Error("rbac operation failed")
	return s.newError(CodeInternal, fmt.Sprintf("%s failed", op), err)
}

// SwitchOrganization moves a user's tenant context to targetOrgID. System
// role holders may switch into any active org; everyone else needs an active
// assignment in the target org. On success the new current org is persisted
// and the caller must refresh any cached session authorization state.
func (s *Service) SwitchOrganization(ctx context.Context, userID, targetOrgID int64) (*SwitchResult, error) {
	var result *SwitchResult

	err := s.hooks.WithTelemetry(ctx, "rbac.switch_organization", func(ctx context.Context) error {
		user, err := s.store.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return s.newError(CodeNotFound, "user not found", nil)
		}

		org, err := s.store.GetOrganization(ctx, targetOrgID)
		if err != nil {
			return err
		}
		if org == nil || !org.IsActive {
			return s.newError(CodeNotFound, "organization not found", nil)
		}

		var role *Role

		systemAssignment, err := s.store.GetUserSystemRole(ctx, userID)
		if err != nil {
			return err
		}
		if systemAssignment != nil {
			// System role holders get in unconditionally; the result role
			// is the system role itself even though it lives outside the org.
			role, err = s.store.GetRole(ctx, systemAssignment.RoleID)
			if err != nil {
				return err
			}
		} else {
			assignment, err := s.store.GetUserRoleInOrg(ctx, userID, targetOrgID)
			if err != nil {
				return err
			}
			if assignment == nil {
				return s.newError(CodeForbidden, "no access to target organization", nil)
			}
			role, err = s.store.GetRole(ctx, assignment.RoleID)
			if err != nil {
				return err
			}
		}
		if role == nil {
			return s.newError(CodeNotFound, "role not found", nil)
		}

		previousOrgID := user.CurrentOrgID
		if err := s.store.UpdateUserCurrentOrg(ctx, userID, targetOrgID); err != nil {
			return err
		}

		s.hooks.AuditLog(ctx, AuditEntry{
			Action:     "org.switch",
			EntityType: "organization",
			EntityID:   targetOrgID,
			UserID:     userID,
			OrgID:      &targetOrgID,
			Metadata: map[string]interface{}{
				"previous_org_id": previousOrgID,
				"new_org_id":      targetOrgID,
				"via_system_role": systemAssignment != nil,
			},
		})
		s.hooks.PublishEvent(ctx, "org.switched", map[string]interface{}{
			"user_id": userID,
			"org_id":  targetOrgID,
		})
		s.hooks.TrackMetric("rbac.org_switch", MetricCounter, map[string]string{
			"org_id": strconv.FormatInt(targetOrgID, 10),
		})

		result = &SwitchResult{
			Success:                true,
			Org:                    *org,
			Role:                   *role,
			SessionRefreshRequired: true,
			CurrentOrgID:           targetOrgID,
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("switch organization", err)
	}

	return result, nil
}

// AssignRole grants a role to a user. The effective assignment org depends on
// the role kind: system roles are always stored org-less regardless of the
// caller-supplied org, global roles attach to the caller's org, and
// org-specific roles must be assigned within their own org. An existing
// active assignment is a conflict; a soft-deleted one is reactivated.
func (s *Service) AssignRole(ctx context.Context, userID, orgID, roleID int64, assignedBy *int64) (*AssignmentResult, error) {
	var result *AssignmentResult

	err := s.hooks.WithTelemetry(ctx, "rbac.assign_role", func(ctx context.Context) error {
		role, err := s.store.GetRole(ctx, roleID)
		if err != nil {
			return err
		}
		if role == nil || !role.IsActive {
			return s.newError(CodeNotFound, "role not found", nil)
		}

		effectiveOrgID, err := s.effectiveAssignmentOrg(role, orgID)
		if err != nil {
			return err
		}

		assignment := &RoleAssignment{
			UserID:     userID,
			RoleID:     roleID,
			OrgID:      effectiveOrgID,
			AssignedBy: assignedBy,
		}

		action, err := s.store.CreateOrReactivateAssignment(ctx, assignment)
		if errors.Is(err, ErrActiveAssignmentExists) {
			return s.newError(CodeConflict, "role already assigned", err)
		}
		if err != nil {
			return err
		}

		s.hooks.AuditLog(ctx, AuditEntry{
			Action:     "role.assign",
			EntityType: "role_assignment",
			EntityID:   assignment.ID,
			UserID:     userID,
			OrgID:      effectiveOrgID,
			Metadata: map[string]interface{}{
				"role_id":     roleID,
				"role_name":   role.Name,
				"action":      string(action),
				"assigned_by": assignedBy,
			},
		})
		s.hooks.PublishEvent(ctx, "role.assigned", map[string]interface{}{
			"user_id": userID,
			"role_id": roleID,
			"org_id":  effectiveOrgID,
			"action":  string(action),
		})
		s.hooks.TrackMetric("rbac.role_assignment", MetricCounter, map[string]string{
			"action": string(action),
		})
		s.broadcastPermissionUpdate(ctx, userID)

		result = &AssignmentResult{
			Success:    true,
			Action:     action,
			Assignment: *assignment,
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("assign role", err)
	}

	return result, nil
}

// effectiveAssignmentOrg applies the role-kind scoping rules
func (s *Service) effectiveAssignmentOrg(role *Role, orgID int64) (*int64, error) {
	switch {
	case role.IsSystemRole:
		// System grants are tenant-invisible; the caller-supplied org is ignored.
		return nil, nil
	case role.IsGlobalRole:
		return &orgID, nil
	default:
		if role.OrgID == nil || *role.OrgID != orgID {
			return nil, s.newError(CodeForbidden, "role cannot be assigned outside its organization", nil)
		}
		return &orgID, nil
	}
}

// RemoveRole soft-deletes the user's assignment of a role. The match is
// insensitive to whether the row was stored org-scoped or system-scoped.
func (s *Service) RemoveRole(ctx context.Context, userID, orgID, roleID int64) error {
	err := s.hooks.WithTelemetry(ctx, "rbac.remove_role", func(ctx context.Context) error {
		deleted, err := s.store.DeleteRoleAssignment(ctx, userID, roleID, orgID)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return s.newError(CodeNotFound, "role assignment not found", nil)
		}

		s.hooks.AuditLog(ctx, AuditEntry{
			Action:     "role.remove",
			EntityType: "role_assignment",
			EntityID:   roleID,
			UserID:     userID,
			OrgID:      &orgID,
			Metadata: map[string]interface{}{
				"role_id": roleID,
			},
		})
		s.hooks.PublishEvent(ctx, "role.removed", map[string]interface{}{
			"user_id": userID,
			"role_id": roleID,
			"org_id":  orgID,
		})
		s.hooks.TrackMetric("rbac.role_removal", MetricCounter, nil)
		s.broadcastPermissionUpdate(ctx, userID)

		return nil
	})
	if err != nil {
		return s.fail("remove role", err)
	}

	return nil
}

// broadcastPermissionUpdate notifies connected clients. Failures never fail
// the primary operation.
func (s *Service) broadcastPermissionUpdate(ctx context.Context, userID int64) {
	if err := s.hooks.BroadcastPermissionUpdate(ctx, []int64{userID}); err != nil {
		s.logger.WithField("user_id", userID).WithError(err).Warn("failed to broadcast permission update")
	}
}

// GetUserOrganizations lists the organizations a user belongs to. A system
// role holder has implicit access to every active org: synthetic entries
// labeled with SystemRoleAccessLabel are unioned in, and orgs the user also
// has explicit roles in get the label appended rather than replaced.
func (s *Service) GetUserOrganizations(ctx context.Context, userID int64) ([]OrgMembership, error) {
	memberships, err := s.store.GetUserOrganizations(ctx, userID)
	if err != nil {
		return nil, s.fail("get user organizations", err)
	}

	systemAssignment, err := s.store.GetUserSystemRole(ctx, userID)
	if err != nil {
		return nil, s.fail("get user organizations", err)
	}
	if systemAssignment == nil {
		return memberships, nil
	}

	orgs, err := s.store.GetAllActiveOrgs(ctx)
	if err != nil {
		return nil, s.fail("get user organizations", err)
	}

	index := make(map[int64]int, len(memberships))
	for i, m := range memberships {
		index[m.ID] = i
	}

	for _, org := range orgs {
		if i, ok := index[org.ID]; ok {
			memberships[i].Roles = append(memberships[i].Roles, SystemRoleAccessLabel)
			memberships[i].RoleCount = len(memberships[i].Roles)
			continue
		}
		memberships = append(memberships, OrgMembership{
			ID:        org.ID,
			Name:      org.Name,
			Roles:     []string{SystemRoleAccessLabel},
			RoleCount: 1,
		})
	}

	return memberships, nil
}

// GetCurrentOrg resolves the user's current organization view. When the user
// holds a system role it is appended to the org's explicit roles, and an org
// the user has no explicit rows in is still reachable through it.
func (s *Service) GetCurrentOrg(ctx context.Context, userID int64) (*CurrentOrg, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, s.fail("get current org", err)
	}
	if user == nil {
		return nil, s.newError(CodeNotFound, "user not found", nil)
	}

	current, err := s.store.GetCurrentOrg(ctx, userID, user.CurrentOrgID)
	if err != nil {
		return nil, s.fail("get current org", err)
	}

	systemAssignment, err := s.store.GetUserSystemRole(ctx, userID)
	if err != nil {
		return nil, s.fail("get current org", err)
	}
	if systemAssignment == nil {
		return current, nil
	}

	systemRole, err := s.store.GetRole(ctx, systemAssignment.RoleID)
	if err != nil {
		return nil, s.fail("get current org", err)
	}

	if current == nil {
		// No explicit org rows; the system role alone grants access to the
		// persisted current org, if any.
		if user.CurrentOrgID == nil {
			return nil, nil
		}
		org, err := s.store.GetOrganization(ctx, *user.CurrentOrgID)
		if err != nil {
			return nil, s.fail("get current org", err)
		}
		if org == nil {
			return nil, nil
		}
		current = &CurrentOrg{Org: *org}
	}

	if systemRole != nil {
		current.Roles = append(current.Roles, *systemRole)
	}

	return current, nil
}

// GetAvailableRoles returns the scope-tagged view of roles assignable within
// an org. System roles never appear here.
func (s *Service) GetAvailableRoles(ctx context.Context, orgID int64) ([]AvailableRole, error) {
	roles, err := s.store.GetAvailableRolesForOrg(ctx, orgID)
	if err != nil {
		return nil, s.fail("get available roles", err)
	}

	available := make([]AvailableRole, 0, len(roles))
	for _, role := range roles {
		scope := RoleScopeOrgSpecific
		if role.IsGlobalRole {
			scope = RoleScopeGlobal
		}
		available = append(available, AvailableRole{
			ID:          role.ID,
			Name:        role.Name,
			Description: role.Description,
			Scope:       scope,
		})
	}

	return available, nil
}
