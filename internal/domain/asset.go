// Package domain defines core data structures used throughout the rebalancer.
package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Asset is a fungible token tracked by the portfolio.
type Asset struct {
	// Symbol ticker, e.g. "SOL".
	Symbol string
	// Mint on-chain mint address (base58).
	Mint string
	// Decimals number of decimal places of the smallest unit.
	Decimals int32
	// Allocation target fraction of total portfolio value, 0..1.
	Allocation decimal.Decimal
	// PriceFeedID price feed identifier; empty for the stable asset.
	PriceFeedID string
}

// AssetTable ordered set of assets with the stable (valuation) and native assets marked.
// The order is used for reporting and as a tie-breaker when prioritising swaps.
type AssetTable struct {
	Assets []Asset
	// Stable symbol of the valuation currency and settlement medium.
	Stable string
	// Native symbol of the chain's native asset whose balance is reported separately.
	Native string
}

// NewAssetTable validates assets and returns the table.
func NewAssetTable(assets []Asset, stable, native string) (AssetTable, error) {
	if len(assets) == 0 {
		return AssetTable{}, errors.New("asset table is empty")
	}

	seen := make(map[string]struct{}, len(assets))
	sum := decimal.Zero
	for _, a := range assets {
		if a.Symbol == "" {
			return AssetTable{}, errors.New("asset symbol is required")
		}
		if _, ok := seen[a.Symbol]; ok {
			return AssetTable{}, errors.Errorf("duplicate asset %s", a.Symbol)
		}
		seen[a.Symbol] = struct{}{}

		if a.Mint == "" {
			return AssetTable{}, errors.Errorf("asset %s: mint is required", a.Symbol)
		}
		if a.Decimals < 0 {
			return AssetTable{}, errors.Errorf("asset %s: negative decimals %d", a.Symbol, a.Decimals)
		}
		if a.Allocation.IsNegative() || a.Allocation.GreaterThan(decimal.NewFromInt(1)) {
			return AssetTable{}, errors.Errorf("asset %s: allocation %s out of range [0, 1]", a.Symbol, a.Allocation)
		}
		if a.Symbol != stable && a.PriceFeedID == "" {
			return AssetTable{}, errors.Errorf("asset %s: price feed id is required", a.Symbol)
		}
		sum = sum.Add(a.Allocation)
	}

	if !sum.Equal(decimal.NewFromInt(1)) {
		return AssetTable{}, errors.Errorf("allocations must sum to 1, got %s", sum)
	}
	if _, ok := seen[stable]; !ok {
		return AssetTable{}, errors.Errorf("stable asset %q is not in the asset table", stable)
	}
	if native != "" {
		if _, ok := seen[native]; !ok {
			return AssetTable{}, errors.Errorf("native asset %q is not in the asset table", native)
		}
	}

	return AssetTable{Assets: assets, Stable: stable, Native: native}, nil
}

// Get returns the asset by symbol.
func (t AssetTable) Get(symbol string) (Asset, bool) {
	for _, a := range t.Assets {
		if a.Symbol == symbol {
			return a, true
		}
	}
	return Asset{}, false
}

// StableAsset returns the valuation currency asset.
func (t AssetTable) StableAsset() Asset {
	a, _ := t.Get(t.Stable)
	return a
}

// Symbols returns asset symbols in table order.
func (t AssetTable) Symbols() []string {
	symbols := make([]string, 0, len(t.Assets))
	for _, a := range t.Assets {
		symbols = append(symbols, a.Symbol)
	}
	return symbols
}
