package allocation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/basket/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// FormatPortfolio renders balances, values and allocations as a text table.
func FormatPortfolio(table domain.AssetTable, balances domain.Balances, prices domain.Prices, total decimal.Decimal) string {
	current := Allocations(table, balances, prices, total)

	var b strings.Builder
	b.WriteString("Portfolio:\n")
	fmt.Fprintf(&b, "%-6s %12s %12s %12s %9s\n", "Asset", "Balance", "Value", "Allocation", "Target")
	b.WriteString(strings.Repeat("-", 55) + "\n")
	for _, a := range table.Assets {
		balance := balances[a.Symbol]
		fmt.Fprintf(&b, "%-6s %12s %12s %11s%% %8s%%\n",
			a.Symbol,
			balance.StringFixed(3),
			balance.Mul(prices[a.Symbol]).StringFixed(2),
			current[a.Symbol].Mul(hundred).StringFixed(2),
			a.Allocation.Mul(hundred).StringFixed(2),
		)
	}
	b.WriteString(strings.Repeat("-", 55) + "\n")
	fmt.Fprintf(&b, "%-6s %12s %12s", "Total", "", total.StringFixed(2))

	return b.String()
}

// FormatLegs renders planned swaps as a text table.
func FormatLegs(legs []domain.Leg) string {
	var b strings.Builder
	b.WriteString("Swaps:\n")
	fmt.Fprintf(&b, "%-4s %-6s %-6s %12s %12s\n", "Side", "From", "To", "Amount", "Value")
	b.WriteString(strings.Repeat("-", 45) + "\n")
	for _, l := range legs {
		side := "sell"
		if l.IsBuy() {
			side = "buy"
		}
		fmt.Fprintf(&b, "%-4s %-6s %-6s %12s %12s\n", side, l.From, l.To, l.Amount.StringFixed(6), l.Value.StringFixed(2))
	}
	b.WriteString(strings.Repeat("-", 45))

	return b.String()
}
