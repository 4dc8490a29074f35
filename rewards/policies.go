/*
policies.go - Pre-built reward configurations

AVAILABLE CONFIGURATIONS:
  DefaultConfig:
    - Bronze/Silver/Gold/Platinum at 0/100/500/1000 points
    - 5/10/15/20% discount
    - booking 10, purchase 1 per unit, rental 0.5 per unit, referral 50
    - entries expire after 365 days

  ThreeTierConfig:
    - Bronze/Silver/Gold only, used by small studios and by tests

EXAMPLE:
  cfg := rewards.DefaultConfig()
  tier := rewards.ClassifyTier(105, cfg)   // Silver
*/
package rewards

import (
	"github.com/shopspring/decimal"
)

// DefaultConfig is seeded when no configuration has been stored yet.
func DefaultConfig() Config {
	return Config{
		Tiers: []Tier{
			{Name: "Bronze", Threshold: 0, Discount: decimal.NewFromInt(5)},
			{Name: "Silver", Threshold: 100, Discount: decimal.NewFromInt(10)},
			{Name: "Gold", Threshold: 500, Discount: decimal.NewFromInt(15)},
			{Name: "Platinum", Threshold: 1000, Discount: decimal.NewFromInt(20)},
		},
		PointValues: PointValues{
			Booking:  10,
			Purchase: decimal.NewFromInt(1),
			Rental:   decimal.RequireFromString("0.5"),
			Referral: 50,
		},
		Expiry: ExpiryPolicy{Enabled: true, DurationDays: 365},
	}
}

// ThreeTierConfig drops Platinum from the default ladder.
func ThreeTierConfig() Config {
	cfg := DefaultConfig()
	cfg.Tiers = cfg.Tiers[:3]
	return cfg
}
