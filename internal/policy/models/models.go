package models

import (
	"time"

	id "execledger/pkg/domain"
)

// Policy is an execution policy registered by the oracle. Once stored it is
// never modified or removed.
type Policy struct {
	ID         id.PolicyID
	MerkleRoot id.MerkleRoot
	Initiator  id.Principal
	Timestamp  time.Time
}
