package models

import (
	"time"

	id "execledger/pkg/domain"
)

// Entry is one diagnostic message attached to a policy id. The policy id is
// a plain value and need not refer to a created policy.
type Entry struct {
	PolicyID  id.PolicyID
	LogIndex  id.LogIndex
	Message   string
	CreatedAt time.Time
}
