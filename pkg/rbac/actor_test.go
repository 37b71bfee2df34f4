package rbac

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockResolver(t *testing.T) (*Resolver, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewResolver(db), mock, db
}

func actorAssignmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "role_id", "name", "is_system_role", "org_id", "name"})
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("org role in current org plus system role expands both", func(t *testing.T) {
		resolver, mock, db := newMockResolver(t)
		defer db.Close()

		mock.ExpectQuery(`FROM users`).WithArgs(int64(10)).WillReturnRows(userRows(10, 5))
		mock.ExpectQuery(`LEFT JOIN organizations`).WithArgs(int64(10)).
			WillReturnRows(actorAssignmentRows().
				AddRow(1, 1, "Superadmin", true, nil, nil).
				AddRow(2, 3, "Editor", false, 5, "Acme"))
		mock.ExpectQuery(`FROM role_permissions`).WithArgs(int64(1), int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "slug"}).
				AddRow(100, "system:manage").
				AddRow(101, "org:read").
				AddRow(102, "org:read"))

		actor, err := resolver.Resolve(ctx, 10)
		require.NoError(t, err)
		assert.True(t, actor.IsSystemUser)
		assert.ElementsMatch(t, []string{"system:manage", "org:read"}, actor.Permissions)

		require.Len(t, actor.AvailableOrgs, 1)
		assert.Equal(t, int64(5), actor.AvailableOrgs[0].ID)
		assert.Equal(t, "Acme", actor.AvailableOrgs[0].Name)

		require.Len(t, actor.Roles, 2)
		assert.Equal(t, "System", actor.Roles[0].OrgName)
		assert.Equal(t, "Acme", actor.Roles[1].OrgName)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("org roles elsewhere only and no system role denies everything", func(t *testing.T) {
		resolver, mock, db := newMockResolver(t)
		defer db.Close()

		mock.ExpectQuery(`FROM users`).WithArgs(int64(10)).WillReturnRows(userRows(10, 5))
		mock.ExpectQuery(`LEFT JOIN organizations`).WithArgs(int64(10)).
			WillReturnRows(actorAssignmentRows().
				AddRow(2, 3, "Editor", false, 9, "Globex"))

		// No permission query may run: the permission set is empty by construction.
		actor, err := resolver.Resolve(ctx, 10)
		require.NoError(t, err)
		assert.False(t, actor.IsSystemUser)
		assert.Empty(t, actor.Permissions)

		require.Len(t, actor.AvailableOrgs, 1)
		assert.Equal(t, int64(9), actor.AvailableOrgs[0].ID)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("system role only grants its permissions regardless of current org", func(t *testing.T) {
		resolver, mock, db := newMockResolver(t)
		defer db.Close()

		mock.ExpectQuery(`FROM users`).WithArgs(int64(10)).WillReturnRows(userRows(10, 5))
		mock.ExpectQuery(`LEFT JOIN organizations`).WithArgs(int64(10)).
			WillReturnRows(actorAssignmentRows().
				AddRow(1, 1, "Superadmin", true, nil, nil))
		mock.ExpectQuery(`FROM role_permissions`).WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "slug"}).AddRow(100, "system:manage"))

		actor, err := resolver.Resolve(ctx, 10)
		require.NoError(t, err)
		assert.True(t, actor.IsSystemUser)
		assert.Equal(t, []string{"system:manage"}, actor.Permissions)
		assert.Empty(t, actor.AvailableOrgs)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("system roles apply when org roles exist only elsewhere", func(t *testing.T) {
		resolver, mock, db := newMockResolver(t)
		defer db.Close()

		mock.ExpectQuery(`FROM users`).WithArgs(int64(10)).WillReturnRows(userRows(10, 5))
		mock.ExpectQuery(`LEFT JOIN organizations`).WithArgs(int64(10)).
			WillReturnRows(actorAssignmentRows().
				AddRow(1, 1, "Superadmin", true, nil, nil).
				AddRow(2, 3, "Editor", false, 9, "Globex"))
		mock.ExpectQuery(`FROM role_permissions`).WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "slug"}).AddRow(100, "system:manage"))

		actor, err := resolver.Resolve(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"system:manage"}, actor.Permissions)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sentinel org id is classified as system scope", func(t *testing.T) {
		resolver, mock, db := newMockResolver(t)
		defer db.Close()

		mock.ExpectQuery(`FROM users`).WithArgs(int64(10)).WillReturnRows(userRows(10, nil))
		mock.ExpectQuery(`LEFT JOIN organizations`).WithArgs(int64(10)).
			WillReturnRows(actorAssignmentRows().
				AddRow(1, 1, "Legacy Admin", true, -1, nil))
		mock.ExpectQuery(`FROM role_permissions`).WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "slug"}).AddRow(100, "system:manage"))

		actor, err := resolver.Resolve(ctx, 10)
		require.NoError(t, err)
		assert.True(t, actor.IsSystemUser)
		assert.Empty(t, actor.AvailableOrgs, "sentinel org must never surface as a real org")

		require.Len(t, actor.Roles, 1)
		assert.Nil(t, actor.Roles[0].OrgID)
		assert.Equal(t, "System", actor.Roles[0].OrgName)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("dangling role permission rows are dropped", func(t *testing.T) {
		resolver, mock, db := newMockResolver(t)
		defer db.Close()

		mock.ExpectQuery(`FROM users`).WithArgs(int64(10)).WillReturnRows(userRows(10, 5))
		mock.ExpectQuery(`LEFT JOIN organizations`).WithArgs(int64(10)).
			WillReturnRows(actorAssignmentRows().
				AddRow(2, 3, "Editor", false, 5, "Acme"))
		mock.ExpectQuery(`FROM role_permissions`).WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "slug"}).
				AddRow(100, "org:read").
				AddRow(101, nil))

		actor, err := resolver.Resolve(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"org:read"}, actor.Permissions)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing user", func(t *testing.T) {
		resolver, mock, db := newMockResolver(t)
		defer db.Close()

		mock.ExpectQuery(`FROM users`).WithArgs(int64(99)).WillReturnError(sql.ErrNoRows)

		_, err := resolver.Resolve(ctx, 99)
		assert.Equal(t, CodeNotFound, CodeOf(err))

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestExpandableRoleIDs(t *testing.T) {
	five := int64(5)
	nine := int64(9)

	system := []resolvedAssignment{{RoleID: 1}}
	orgFive := []resolvedAssignment{{RoleID: 3, OrgID: &five}}
	orgNine := []resolvedAssignment{{RoleID: 4, OrgID: &nine}}

	tests := []struct {
		name         string
		systemRoles  []resolvedAssignment
		orgRoles     []resolvedAssignment
		currentOrgID *int64
		hasAccess    bool
		expected     []int64
	}{
		{"system only", system, nil, &five, false, []int64{1}},
		{"system plus foreign org roles", system, orgNine, &five, false, []int64{1}},
		{"access to current org unions both", system, orgFive, &five, true, []int64{1, 3}},
		{"org access without system role", nil, orgFive, &five, true, []int64{3}},
		{"foreign org roles only deny", nil, orgNine, &five, false, nil},
		{"no roles at all", nil, nil, &five, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expandableRoleIDs(tt.systemRoles, tt.orgRoles, tt.currentOrgID, tt.hasAccess)
			assert.Equal(t, tt.expected, got)
		})
	}
}
