package handler

import (
	"strings"

	id "execledger/pkg/domain"
	dErrors "execledger/pkg/domain-errors"
)

// CreatePolicyRequest is the body of POST /v1/policies. Exactly one of
// MerkleRoot (0x-prefixed 32-byte hex) or Content (text hashed with keccak256)
// must be set.
type CreatePolicyRequest struct {
	MerkleRoot string `json:"merkle_root"`
	Content    string `json:"content"`

	root id.MerkleRoot
}

func (r *CreatePolicyRequest) Validate() error {
	root := strings.TrimSpace(r.MerkleRoot)
	switch {
	case root != "" && r.Content != "":
		return dErrors.New(dErrors.CodeValidation, "merkle_root and content are mutually exclusive")
	case root != "":
		parsed, err := id.ParseMerkleRoot(root)
		if err != nil {
			return err
		}
		r.root = parsed
	case r.Content != "":
		r.root = id.MerkleRootFromText(r.Content)
	default:
		return dErrors.New(dErrors.CodeValidation, "merkle_root is required")
	}
	return nil
}

// Root returns the digest resolved by Validate.
func (r *CreatePolicyRequest) Root() id.MerkleRoot {
	return r.root
}
