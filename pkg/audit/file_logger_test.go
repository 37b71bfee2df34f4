package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLogger_Log(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	logger, err := NewFileLogger(FileLoggerConfig{Path: path})
	require.NoError(t, err)

	userID := int64(10)
	orgID := int64(5)

	require.NoError(t, logger.Log(context.Background(), &Event{
		EventType:  EventTypeOrgSwitch,
		Status:     EventStatusSuccess,
		UserID:     &userID,
		OrgID:      &orgID,
		EntityType: "organization",
		EntityID:   5,
		RequestID:  "req-1",
		Message:    "organization switched",
		Metadata:   map[string]interface{}{"previous_org_id": 1},
	}))
	require.NoError(t, logger.Log(context.Background(), &Event{
		EventType: EventTypeOrgAccessDenied,
		Status:    EventStatusDenied,
		UserID:    &userID,
		Message:   "no role in organization",
	}))
	require.NoError(t, logger.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		lines = append(lines, entry)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 2)

	assert.Equal(t, "org.switch", lines[0]["event_type"])
	assert.Equal(t, "success", lines[0]["status"])
	assert.Equal(t, float64(10), lines[0]["user_id"])
	assert.Equal(t, float64(5), lines[0]["org_id"])
	assert.Equal(t, "req-1", lines[0]["request_id"])
	assert.Equal(t, "organization switched", lines[0]["msg"])
	assert.Equal(t, float64(1), lines[0]["meta_previous_org_id"])

	assert.Equal(t, "org.access_denied", lines[1]["event_type"])
	assert.Equal(t, "denied", lines[1]["status"])
	assert.NotContains(t, lines[1], "org_id")
}

func TestFileLogger_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "audit.log")

	logger, err := NewFileLogger(FileLoggerConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, logger.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
