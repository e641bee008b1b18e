package handler

import (
	"time"

	"execledger/internal/policy/models"
)

type CreatePolicyResponse struct {
	PolicyID uint64 `json:"policy_id"`
}

type PolicyResponse struct {
	PolicyID   uint64    `json:"policy_id"`
	MerkleRoot string    `json:"merkle_root"`
	Initiator  string    `json:"initiator"`
	Timestamp  time.Time `json:"timestamp"`
}

type ListPoliciesResponse struct {
	Policies []PolicyResponse `json:"policies"`
	Total    uint64           `json:"total"`
	Offset   uint64           `json:"offset"`
}

type CountResponse struct {
	Total uint64 `json:"total"`
}

func toPolicyResponse(p *models.Policy) PolicyResponse {
	return PolicyResponse{
		PolicyID:   uint64(p.ID),
		MerkleRoot: p.MerkleRoot.String(),
		Initiator:  p.Initiator.String(),
		Timestamp:  p.Timestamp,
	}
}
