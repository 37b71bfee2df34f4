package audit

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDBLogger(t *testing.T) (*DBLogger, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS audit_log`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	logger, err := NewDBLogger(db)
	require.NoError(t, err)
	return logger, mock
}

func TestDBLogger_Log(t *testing.T) {
	logger, mock := newMockDBLogger(t)

	userID := int64(10)
	orgID := int64(5)

	mock.ExpectQuery(`INSERT INTO audit_log`).
		WithArgs(
			sqlmock.AnyArg(),
			"role.assign",
			"success",
			&userID,
			&orgID,
			"role_assignment",
			int64(42),
			"",
			"role assigned",
			sqlmock.AnyArg(),
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	event := &Event{
		EventType:  EventTypeRoleAssign,
		Status:     EventStatusSuccess,
		UserID:     &userID,
		OrgID:      &orgID,
		EntityType: "role_assignment",
		EntityID:   42,
		Message:    "role assigned",
		Metadata:   map[string]interface{}{"role_id": 2},
	}

	require.NoError(t, logger.Log(context.Background(), event))
	assert.Equal(t, int64(1), event.ID)
	assert.False(t, event.Timestamp.IsZero())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLogger_Search(t *testing.T) {
	logger, mock := newMockDBLogger(t)

	userID := int64(10)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "timestamp", "event_type", "status", "user_id", "org_id",
		"entity_type", "entity_id", "request_id", "message", "metadata",
	}).AddRow(1, now, "org.switch", "success", 10, 5, "organization", 5, "req-1", "switched", []byte(`{"previous_org_id":1}`))

	mock.ExpectQuery(`FROM audit_log`).
		WithArgs(&userID, 20).
		WillReturnRows(rows)

	events, err := logger.Search(context.Background(), SearchFilter{
		UserID: &userID,
		Limit:  20,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeOrgSwitch, events[0].EventType)
	require.NotNil(t, events[0].UserID)
	assert.Equal(t, int64(10), *events[0].UserID)
	assert.Equal(t, float64(1), events[0].Metadata["previous_org_id"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLogger_DeleteOlderThan(t *testing.T) {
	logger, mock := newMockDBLogger(t)

	cutoff := time.Now().AddDate(0, 0, -90)
	mock.ExpectExec(`DELETE FROM audit_log WHERE timestamp < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 17))

	deleted, err := logger.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(17), deleted)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRetentionSweeper_SweepOnce(t *testing.T) {
	logger, mock := newMockDBLogger(t)

	mock.ExpectExec(`DELETE FROM audit_log`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	sweeper := NewRetentionSweeper(logger, RetentionPolicy{RetentionDays: 30}, nil)
	require.NoError(t, sweeper.SweepOnce(context.Background()))

	require.NoError(t, mock.ExpectationsWereMet())
}
