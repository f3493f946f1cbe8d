package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// PlanPrecision decimal places kept in rebalance deltas and swap amounts.
const PlanPrecision = 6

// FromBaseUnits converts an integer amount of smallest units into token units.
func FromBaseUnits(raw decimal.Decimal, decimals int32) decimal.Decimal {
	return raw.Shift(-decimals)
}

// ParseBaseUnits parses a decimal string of smallest units into token units.
func ParseBaseUnits(raw string, decimals int32) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "invalid base unit amount %q", raw)
	}
	return FromBaseUnits(d, decimals), nil
}

// ToBaseUnits converts token units to smallest units, rounding half away from zero
// like toFixed(0). Negative amounts and overflows are rejected.
func ToBaseUnits(amount decimal.Decimal, decimals int32) (uint64, error) {
	if amount.IsNegative() {
		return 0, errors.Errorf("negative amount %s", amount)
	}
	raw := amount.Shift(decimals).Round(0)
	if !raw.BigInt().IsUint64() {
		return 0, errors.Errorf("amount %s overflows uint64 base units", amount)
	}
	return raw.BigInt().Uint64(), nil
}

// ScaleByExponent returns mantissa × 10^expo, the price encoding of the price feed.
func ScaleByExponent(mantissa decimal.Decimal, expo int32) decimal.Decimal {
	return mantissa.Shift(expo)
}
