package domain

import "github.com/shopspring/decimal"

// Balances held quantity per asset symbol in token units.
type Balances map[string]decimal.Decimal

// Prices unit price per asset symbol in the valuation currency.
type Prices map[string]decimal.Decimal

// Plan signed quantity each asset must change by to reach its target allocation.
// Positive means acquire, negative means divest.
type Plan map[string]decimal.Decimal

// Leg one planned swap between an asset and the stable asset.
type Leg struct {
	// Asset symbol of the non-stable asset being rebalanced.
	Asset string
	// From input asset symbol.
	From string
	// To output asset symbol.
	To string
	// Amount input amount in units of From.
	Amount decimal.Decimal
	// Value notional value in the valuation currency.
	Value decimal.Decimal
}

// IsBuy reports whether the leg acquires the asset.
func (l Leg) IsBuy() bool {
	return l.To == l.Asset
}
