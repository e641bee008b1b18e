// Package domain holds the value types shared across the ledger modules.
//
// Cross-module references (a log entry pointing at a policy, an expenditure
// naming one) are always by value through these types, never by pointer.
package domain

import (
	"strconv"
	"strings"

	dErrors "execledger/pkg/domain-errors"
)

// PolicyID is the dense, zero-based identifier of a policy.
type PolicyID uint64

// LogIndex is the zero-based position of a diagnostic entry within one policy's log.
type LogIndex uint64

func (p PolicyID) String() string { return strconv.FormatUint(uint64(p), 10) }

func (i LogIndex) String() string { return strconv.FormatUint(uint64(i), 10) }

// ParsePolicyID parses a decimal policy identifier.
func ParsePolicyID(s string) (PolicyID, error) {
	v, err := parseUint(s, "policy id")
	if err != nil {
		return 0, err
	}
	return PolicyID(v), nil
}

// ParseLogIndex parses a decimal log index.
func ParseLogIndex(s string) (LogIndex, error) {
	v, err := parseUint(s, "log index")
	if err != nil {
		return 0, err
	}
	return LogIndex(v), nil
}

func parseUint(s, what string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, what+" is required")
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidInput, what+" must be an unsigned integer")
	}
	return v, nil
}
