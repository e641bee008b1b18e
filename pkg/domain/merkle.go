package domain

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"

	dErrors "execledger/pkg/domain-errors"
)

// MerkleRootSize is the digest length in bytes.
const MerkleRootSize = 32

// MerkleRoot is an opaque 32-byte digest summarizing off-ledger policy data.
type MerkleRoot [MerkleRootSize]byte

// ParseMerkleRoot decodes 64 hex digits, with or without a 0x prefix.
func ParseMerkleRoot(s string) (MerkleRoot, error) {
	var root MerkleRoot
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != hex.EncodedLen(MerkleRootSize) {
		return root, dErrors.New(dErrors.CodeInvalidInput, "merkle root must be 32 bytes of hex")
	}
	if _, err := hex.Decode(root[:], []byte(s)); err != nil {
		return root, dErrors.Wrap(err, dErrors.CodeInvalidInput, "merkle root is not valid hex")
	}
	return root, nil
}

// MerkleRootFromBytes copies b into a MerkleRoot. b must be exactly 32 bytes.
func MerkleRootFromBytes(b []byte) (MerkleRoot, error) {
	var root MerkleRoot
	if len(b) != MerkleRootSize {
		return root, dErrors.New(dErrors.CodeInvalidInput, "merkle root must be 32 bytes")
	}
	copy(root[:], b)
	return root, nil
}

// MerkleRootFromText hashes free text with keccak256, the way the form client
// derives a root from what the operator typed.
func MerkleRootFromText(text string) MerkleRoot {
	var root MerkleRoot
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(text))
	copy(root[:], h.Sum(nil))
	return root
}

func (m MerkleRoot) String() string { return "0x" + hex.EncodeToString(m[:]) }

// Bytes returns a copy of the digest.
func (m MerkleRoot) Bytes() []byte { return append([]byte(nil), m[:]...) }

// IsZero reports whether every byte of m is zero.
func (m MerkleRoot) IsZero() bool { return m == MerkleRoot{} }

func (m MerkleRoot) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *MerkleRoot) UnmarshalText(text []byte) error {
	root, err := ParseMerkleRoot(string(text))
	if err != nil {
		return err
	}
	*m = root
	return nil
}
