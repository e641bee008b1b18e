package domain

import "strings"

// Principal identifies a caller or a recipient. The ledger treats it as an
// opaque string; only the canonical form below is applied.
type Principal string

// NewPrincipal returns the canonical form of s: trimmed, and lower-cased when
// s looks like a 0x-prefixed hex address so checksummed and plain spellings of
// the same address compare equal.
func NewPrincipal(s string) Principal {
	s = strings.TrimSpace(s)
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") && isHex(s[2:]) {
		return Principal(strings.ToLower(s))
	}
	return Principal(s)
}

func (p Principal) String() string { return string(p) }

// IsZero reports whether p is empty.
func (p Principal) IsZero() bool { return p == "" }

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return s != ""
}
