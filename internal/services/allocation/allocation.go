// Package allocation computes portfolio valuation, deviation from target weights and
// the swaps needed to restore them. Everything here is pure: no I/O, no clock.
package allocation

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/basket/internal/domain"
)

// Valuation returns the sum of balance × price over all assets in the table.
func Valuation(table domain.AssetTable, balances domain.Balances, prices domain.Prices) decimal.Decimal {
	total := decimal.Zero
	for _, a := range table.Assets {
		total = total.Add(balances[a.Symbol].Mul(prices[a.Symbol]))
	}
	return total
}

// Allocations returns the current fraction of total value held in each asset.
// All fractions are zero for an empty portfolio.
func Allocations(table domain.AssetTable, balances domain.Balances, prices domain.Prices, total decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(table.Assets))
	for _, a := range table.Assets {
		if total.IsZero() {
			out[a.Symbol] = decimal.Zero
			continue
		}
		out[a.Symbol] = balances[a.Symbol].Mul(prices[a.Symbol]).Div(total)
	}
	return out
}

// Plan returns the signed quantity of every asset needed to reach its target,
// truncated toward zero at domain.PlanPrecision places. An asset without a
// positive price cannot be valued or traded and gets a zero delta.
func Plan(table domain.AssetTable, balances domain.Balances, prices domain.Prices, total decimal.Decimal) domain.Plan {
	plan := make(domain.Plan, len(table.Assets))
	for _, a := range table.Assets {
		price := prices[a.Symbol]
		if !price.IsPositive() {
			plan[a.Symbol] = decimal.Zero
			continue
		}
		target := total.Mul(a.Allocation).Div(price)
		plan[a.Symbol] = target.Sub(balances[a.Symbol]).Truncate(domain.PlanPrecision)
	}
	return plan
}

// NeedsRebalance reports whether any asset deviates from its target by strictly
// more than threshold.
func NeedsRebalance(table domain.AssetTable, balances domain.Balances, prices domain.Prices,
	total, threshold decimal.Decimal) bool {
	if total.IsZero() {
		return false
	}

	current := Allocations(table, balances, prices, total)
	for _, a := range table.Assets {
		if current[a.Symbol].Sub(a.Allocation).Abs().GreaterThan(threshold) {
			return true
		}
	}
	return false
}

// Legs turns a plan into executable swaps against the stable asset.
// The stable asset itself and deltas with magnitude <= dust are skipped.
// Legs are ordered by notional value, largest first; ties keep table order.
func Legs(table domain.AssetTable, plan domain.Plan, prices domain.Prices, dust decimal.Decimal) []domain.Leg {
	legs := make([]domain.Leg, 0, len(table.Assets))
	for _, a := range table.Assets {
		if a.Symbol == table.Stable {
			continue
		}
		delta := plan[a.Symbol]
		if delta.Abs().LessThanOrEqual(dust) {
			continue
		}

		price := prices[a.Symbol]
		if delta.IsPositive() {
			spend := delta.Mul(price).Truncate(domain.PlanPrecision)
			legs = append(legs, domain.Leg{
				Asset:  a.Symbol,
				From:   table.Stable,
				To:     a.Symbol,
				Amount: spend,
				Value:  spend,
			})
			continue
		}

		amount := delta.Abs()
		legs = append(legs, domain.Leg{
			Asset:  a.Symbol,
			From:   a.Symbol,
			To:     table.Stable,
			Amount: amount,
			Value:  amount.Mul(price).Truncate(domain.PlanPrecision),
		})
	}

	slices.SortStableFunc(legs, func(x, y domain.Leg) int {
		return y.Value.Cmp(x.Value)
	})

	return legs
}

// Reserve decides the reserve transfer. It triggers once the portfolio value has
// moved by at least threshold since the last event; the amount is fixed.
func Reserve(last *decimal.Decimal, current, threshold, amount decimal.Decimal) (decimal.Decimal, bool) {
	if last == nil {
		return decimal.Zero, false
	}
	if current.Sub(*last).Abs().LessThan(threshold) {
		return decimal.Zero, false
	}
	return amount, true
}
