package broadcast

import (
	"encoding/json"
	"fmt"
	"time"
)

// channelPrefix namespaces every pub/sub channel this package uses
const channelPrefix = "orgkit:permissions"

// PermissionUpdate notifies a connected client that the permission set of a
// user changed and cached grants must be refreshed.
type PermissionUpdate struct {
	UserID    int64     `json:"user_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ToJSON converts the update to JSON
func (u *PermissionUpdate) ToJSON() ([]byte, error) {
	return json.Marshal(u)
}

// ParseUpdate parses a permission update from a pub/sub payload
func ParseUpdate(data []byte) (*PermissionUpdate, error) {
	var update PermissionUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return nil, fmt.Errorf("failed to parse permission update: %w", err)
	}
	return &update, nil
}

// UserChannel returns the pub/sub channel carrying updates for one user
func UserChannel(userID int64) string {
	return fmt.Sprintf("%s:user:%d", channelPrefix, userID)
}
