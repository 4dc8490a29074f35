package rewards

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// TIER CLASSIFIER
// =============================================================================

// ClassifyTier returns the highest tier whose threshold is ≤ balance.
// With non-decreasing thresholds a larger balance never yields a lower tier.
func ClassifyTier(balance int64, cfg Config) Tier {
	if len(cfg.Tiers) == 0 {
		return Tier{}
	}
	current := cfg.Tiers[0]
	for _, t := range cfg.Tiers[1:] {
		if t.Threshold <= balance {
			current = t
		}
	}
	return current
}

// NextTierInfo is what the account needs for the next bracket.
type NextTierInfo struct {
	Tier         string          `json:"tier"`
	PointsNeeded int64           `json:"pointsNeeded"`
	Discount     decimal.Decimal `json:"discount"`
}

// NextTier returns the tier after current, or nil at the top.
func NextTier(current string, balance int64, cfg Config) *NextTierInfo {
	i := tierIndex(cfg.Tiers, current)
	if i < 0 || i+1 >= len(cfg.Tiers) {
		return nil
	}
	next := cfg.Tiers[i+1]
	needed := next.Threshold - balance
	if needed < 0 {
		needed = 0
	}
	return &NextTierInfo{Tier: next.Name, PointsNeeded: needed, Discount: next.Discount}
}

// DiscountFor returns the discount percent of the named tier, zero if unknown.
func DiscountFor(name string, cfg Config) decimal.Decimal {
	if i := tierIndex(cfg.Tiers, name); i >= 0 {
		return cfg.Tiers[i].Discount
	}
	return decimal.Zero
}

func tierIndex(tiers []Tier, name string) int {
	for i, t := range tiers {
		if t.Name == name {
			return i
		}
	}
	return -1
}
