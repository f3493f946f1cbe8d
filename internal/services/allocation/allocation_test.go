package allocation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/basket/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func basketTable(t *testing.T) domain.AssetTable {
	t.Helper()
	table, err := domain.NewAssetTable([]domain.Asset{
		{Symbol: "USDC", Mint: "usdc-mint", Decimals: 6, Allocation: d("0.3")},
		{Symbol: "JTO", Mint: "jto-mint", Decimals: 9, Allocation: d("0.2"), PriceFeedID: "jto"},
		{Symbol: "WIF", Mint: "wif-mint", Decimals: 6, Allocation: d("0"), PriceFeedID: "wif"},
		{Symbol: "SOL", Mint: "sol-mint", Decimals: 9, Allocation: d("0.3"), PriceFeedID: "sol"},
		{Symbol: "JUP", Mint: "jup-mint", Decimals: 6, Allocation: d("0.2"), PriceFeedID: "jup"},
	}, "USDC", "SOL")
	require.NoError(t, err)
	return table
}

func pairTable(t *testing.T) domain.AssetTable {
	t.Helper()
	table, err := domain.NewAssetTable([]domain.Asset{
		{Symbol: "USDC", Mint: "usdc-mint", Decimals: 6, Allocation: d("0.5")},
		{Symbol: "SOL", Mint: "sol-mint", Decimals: 9, Allocation: d("0.5"), PriceFeedID: "sol"},
	}, "USDC", "SOL")
	require.NoError(t, err)
	return table
}

func scenarioPrices() domain.Prices {
	return domain.Prices{"USDC": d("1"), "SOL": d("150"), "JUP": d("0.8"), "JTO": d("2"), "WIF": d("0")}
}

func TestValuation(t *testing.T) {
	table := pairTable(t)

	t.Run("exact decimal sum", func(t *testing.T) {
		total := Valuation(table, domain.Balances{"USDC": d("0.1"), "SOL": d("0.2")}, domain.Prices{"USDC": d("1"), "SOL": d("1")})
		assert.True(t, total.Equal(d("0.3")), "got %s", total)
	})

	t.Run("repeated additions do not drift", func(t *testing.T) {
		total := decimal.Zero
		for i := 0; i < 1000; i++ {
			total = total.Add(Valuation(table, domain.Balances{"USDC": d("0.1")}, domain.Prices{"USDC": d("1")}))
		}
		assert.True(t, total.Equal(d("100")), "got %s", total)
	})

	t.Run("missing balances count as zero", func(t *testing.T) {
		total := Valuation(table, domain.Balances{}, domain.Prices{"USDC": d("1"), "SOL": d("150")})
		assert.True(t, total.IsZero())
		assert.False(t, total.IsNegative())
	})
}

func TestPlan_Scenario(t *testing.T) {
	table := basketTable(t)
	balances := domain.Balances{"USDC": d("1000"), "SOL": d("0"), "JUP": d("0"), "JTO": d("0"), "WIF": d("0")}
	prices := scenarioPrices()

	total := Valuation(table, balances, prices)
	require.True(t, total.Equal(d("1000")))

	plan := Plan(table, balances, prices, total)
	assert.True(t, plan["USDC"].Equal(d("-700")), "USDC delta %s", plan["USDC"])
	assert.True(t, plan["SOL"].Equal(d("2")), "SOL delta %s", plan["SOL"])
	assert.True(t, plan["JUP"].Equal(d("250")), "JUP delta %s", plan["JUP"])
	assert.True(t, plan["JTO"].Equal(d("100")), "JTO delta %s", plan["JTO"])
	assert.True(t, plan["WIF"].IsZero(), "WIF delta %s", plan["WIF"])

	assert.True(t, NeedsRebalance(table, balances, prices, total, d("0.0042")))

	legs := Legs(table, plan, prices, d("0.042"))
	require.Len(t, legs, 3)

	assets := make([]string, 0, len(legs))
	for _, l := range legs {
		assets = append(assets, l.Asset)
		assert.Equal(t, "USDC", l.From)
		assert.True(t, l.IsBuy())
	}
	assert.ElementsMatch(t, []string{"SOL", "JUP", "JTO"}, assets)
	assert.Equal(t, "SOL", legs[0].Asset, "largest leg goes first")
	assert.True(t, legs[0].Amount.Equal(d("300")))
	assert.Equal(t, "JTO", legs[1].Asset, "ties keep table order")
	assert.True(t, legs[1].Amount.Equal(d("200")))
	assert.True(t, legs[2].Amount.Equal(d("200")))
}

func TestPlan_EquilibriumIsZero(t *testing.T) {
	table := basketTable(t)
	balances := domain.Balances{"USDC": d("300"), "SOL": d("2"), "JUP": d("250"), "JTO": d("100"), "WIF": d("0")}
	prices := scenarioPrices()

	total := Valuation(table, balances, prices)
	plan := Plan(table, balances, prices, total)
	for symbol, delta := range plan {
		assert.True(t, delta.IsZero(), "%s delta %s", symbol, delta)
	}
	assert.False(t, NeedsRebalance(table, balances, prices, total, d("0.0042")))
	assert.Empty(t, Legs(table, plan, prices, d("0.042")))
}

func TestPlan_TruncatesTowardZero(t *testing.T) {
	table := pairTable(t)
	prices := domain.Prices{"USDC": d("1"), "SOL": d("3")}

	// target SOL = 100 * 0.5 / 3 = 16.6666666..., truncated not rounded
	plan := Plan(table, domain.Balances{"USDC": d("100")}, prices, d("100"))
	assert.Equal(t, "16.666666", plan["SOL"].String())

	// negative deltas truncate toward zero as well
	plan = Plan(table, domain.Balances{"SOL": d("100")}, prices, d("300"))
	assert.Equal(t, "-50", plan["SOL"].String())
	plan = Plan(table, domain.Balances{"SOL": d("20.0000009")}, prices, d("60.0000027"))
	assert.Equal(t, "-10", plan["SOL"].String())
}

func TestNeedsRebalance_Threshold(t *testing.T) {
	table := pairTable(t)
	prices := domain.Prices{"USDC": d("1"), "SOL": d("1")}
	threshold := d("0.0042")

	tests := []struct {
		name     string
		balances domain.Balances
		expected bool
	}{
		{
			name:     "balanced",
			balances: domain.Balances{"USDC": d("500"), "SOL": d("500")},
			expected: false,
		},
		{
			name:     "deviation exactly at threshold",
			balances: domain.Balances{"USDC": d("504.2"), "SOL": d("495.8")},
			expected: false,
		},
		{
			name:     "deviation above threshold",
			balances: domain.Balances{"USDC": d("504.3"), "SOL": d("495.7")},
			expected: true,
		},
		{
			name:     "empty portfolio",
			balances: domain.Balances{},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total := Valuation(table, tt.balances, prices)
			assert.Equal(t, tt.expected, NeedsRebalance(table, tt.balances, prices, total, threshold))
		})
	}
}

func TestLegs_DustFilter(t *testing.T) {
	table := pairTable(t)
	prices := domain.Prices{"USDC": d("1"), "SOL": d("150")}
	dust := d("0.042")

	assert.Empty(t, Legs(table, domain.Plan{"USDC": d("-6.3"), "SOL": d("0.042")}, prices, dust))
	assert.Empty(t, Legs(table, domain.Plan{"USDC": d("6.3"), "SOL": d("-0.042")}, prices, dust))

	legs := Legs(table, domain.Plan{"USDC": d("-6.30015"), "SOL": d("0.042001")}, prices, dust)
	require.Len(t, legs, 1)
	assert.Equal(t, "SOL", legs[0].Asset)
}

func TestLegs_Direction(t *testing.T) {
	table := pairTable(t)
	prices := domain.Prices{"USDC": d("1"), "SOL": d("150")}

	legs := Legs(table, domain.Plan{"USDC": d("225"), "SOL": d("-1.5")}, prices, d("0.042"))
	require.Len(t, legs, 1)
	assert.Equal(t, "SOL", legs[0].From)
	assert.Equal(t, "USDC", legs[0].To)
	assert.False(t, legs[0].IsBuy())
	assert.True(t, legs[0].Amount.Equal(d("1.5")))
	assert.True(t, legs[0].Value.Equal(d("225")))

	legs = Legs(table, domain.Plan{"USDC": d("-0.15"), "SOL": d("0.0500001")}, prices, d("0.042"))
	require.Len(t, legs, 1)
	assert.True(t, legs[0].IsBuy())
	assert.Equal(t, "7.500015", legs[0].Amount.String())
}

func TestReserve(t *testing.T) {
	threshold := d("1")
	amount := d("0.1")
	last := d("100")

	got, ok := Reserve(&last, d("101.5"), threshold, amount)
	assert.True(t, ok)
	assert.True(t, got.Equal(amount))

	_, ok = Reserve(&last, d("100.5"), threshold, amount)
	assert.False(t, ok)

	_, ok = Reserve(&last, d("101"), threshold, amount)
	assert.True(t, ok, "boundary is inclusive")

	_, ok = Reserve(&last, d("98.9"), threshold, amount)
	assert.True(t, ok, "losses count too")

	_, ok = Reserve(nil, d("1000"), threshold, amount)
	assert.False(t, ok, "no last event value, no reserve")
}

func TestFormat(t *testing.T) {
	table := pairTable(t)
	out := FormatPortfolio(table, domain.Balances{"USDC": d("50"), "SOL": d("1")}, domain.Prices{"USDC": d("1"), "SOL": d("150")}, d("200"))
	assert.Contains(t, out, "SOL")
	assert.Contains(t, out, "75.00%")
	assert.Contains(t, out, "200.00")

	out = FormatLegs([]domain.Leg{{Asset: "SOL", From: "USDC", To: "SOL", Amount: d("12.5"), Value: d("12.5")}})
	assert.Contains(t, out, "12.500000")
	assert.Contains(t, out, "buy  USDC   SOL")

	out = FormatLegs([]domain.Leg{{Asset: "SOL", From: "SOL", To: "USDC", Amount: d("0.5"), Value: d("75")}})
	assert.Contains(t, out, "sell SOL    USDC")
}
