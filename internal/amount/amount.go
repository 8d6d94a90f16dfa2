// Package amount converts between token base units and human readable
// decimal strings.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxUint256 is 2^256 - 1, used for "max" approvals and withdrawals.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// ErrNegative is returned for amounts below zero.
var ErrNegative = errors.New("amount cannot be negative")

// FormatUnits renders a base unit amount with the given decimals. Trailing
// zeros are trimmed.
func FormatUnits(value *big.Int, decimals int) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).String()
}

// ParseUnits converts a decimal string into base units.
func ParseUnits(value string, decimals int) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, errors.New("amount cannot be empty")
	}
	dec, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}
	if dec.IsNegative() {
		return nil, ErrNegative
	}
	scaled := dec.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", value, decimals)
	}
	return scaled.BigInt(), nil
}

// ToDecimal returns value scaled down by decimals.
func ToDecimal(value *big.Int, decimals int) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, -int32(decimals))
}

// Percent renders a percentage with two decimals and a trailing %.
func Percent(p decimal.Decimal) string {
	return p.StringFixed(2) + "%"
}

// PercentDifference returns (from - to) / from * 100. A zero from yields zero.
func PercentDifference(from, to *big.Int) decimal.Decimal {
	if from == nil || from.Sign() == 0 {
		return decimal.Zero
	}
	f := decimal.NewFromBigInt(from, 0)
	t := decimal.Zero
	if to != nil {
		t = decimal.NewFromBigInt(to, 0)
	}
	return f.Sub(t).Div(f).Mul(decimal.NewFromInt(100))
}
