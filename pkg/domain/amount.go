package domain

import (
	"bytes"
	"math/big"
	"strings"

	dErrors "execledger/pkg/domain-errors"
)

// weiDecimals is the number of fractional digits in one ether.
const weiDecimals = 18

// Amount is a non-negative integer quantity of arbitrary precision. The zero
// value is 0. Amount is immutable; accessors return copies.
type Amount struct {
	v *big.Int
}

// NewAmount returns an Amount holding v.
func NewAmount(v uint64) Amount {
	return Amount{v: new(big.Int).SetUint64(v)}
}

// ParseAmount parses a base-10 non-negative integer.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, dErrors.New(dErrors.CodeInvalidInput, "amount is required")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, dErrors.New(dErrors.CodeInvalidInput, "amount must be a base-10 integer")
	}
	if v.Sign() < 0 {
		return Amount{}, dErrors.New(dErrors.CodeInvalidInput, "amount must not be negative")
	}
	return Amount{v: v}, nil
}

// ParseEther converts a decimal ether value such as "1.5" into wei.
func ParseEther(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > weiDecimals {
		return Amount{}, dErrors.New(dErrors.CodeInvalidInput, "ether amount has more than 18 decimals")
	}
	if whole == "" {
		whole = "0"
	}
	return ParseAmount(whole + frac + strings.Repeat("0", weiDecimals-len(frac)))
}

// BigInt returns a copy of the value.
func (a Amount) BigInt() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.v)
}

func (a Amount) String() string {
	if a.v == nil {
		return "0"
	}
	return a.v.String()
}

// IsZero reports whether a is 0.
func (a Amount) IsZero() bool { return a.v == nil || a.v.Sign() == 0 }

// Equal reports whether a and b hold the same value.
func (a Amount) Equal(b Amount) bool { return a.BigInt().Cmp(b.BigInt()) == 0 }

// MarshalJSON encodes the amount as a quoted decimal string so values beyond
// 2^53 survive JSON consumers.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts a quoted decimal string or a bare JSON integer.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
