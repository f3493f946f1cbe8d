package domain

import "time"

// Snapshot phases.
const (
	PhasePre  = "pre"
	PhasePost = "post"
)

// AssetSnapshot per-asset state. Decimal values are kept as strings to avoid
// float precision issues when consumed by other tools.
type AssetSnapshot struct {
	Symbol     string `json:"symbol"`
	Balance    string `json:"balance"`
	Price      string `json:"price"`
	Value      string `json:"value"`
	Allocation string `json:"allocation"`
	Target     string `json:"target"`
}

// PortfolioSnapshot portfolio state observed during a cycle.
type PortfolioSnapshot struct {
	Timestamp  time.Time       `json:"ts"`
	CycleID    string          `json:"cycle_id"`
	Phase      string          `json:"phase"`
	Owner      string          `json:"owner"`
	TotalValue string          `json:"total_value"`
	Assets     []AssetSnapshot `json:"assets"`
}
