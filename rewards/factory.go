/*
factory.go - Preset reward configuration documents

These functions return configuration documents in the admin console's
JSON format. They construct JSON strings directly to avoid import cycles
with the factory package.

USAGE:
  import "github.com/warp/studio-engine/rewards"

  jsonStr := rewards.DefaultConfigJSON()
  cfg, err := factory.NewConfigFactory().ParseConfig(jsonStr)
*/
package rewards

import (
	"encoding/json"
)

// DefaultConfigJSON returns the default ladder as a configuration document.
func DefaultConfigJSON() string {
	return configJSON([]map[string]interface{}{
		{"name": "Bronze", "threshold": 0, "discount": 5},
		{"name": "Silver", "threshold": 100, "discount": 10},
		{"name": "Gold", "threshold": 500, "discount": 15},
		{"name": "Platinum", "threshold": 1000, "discount": 20},
	}, true, 365)
}

// NoExpiryConfigJSON returns the default ladder with expiry disabled.
func NoExpiryConfigJSON() string {
	return configJSON([]map[string]interface{}{
		{"name": "Bronze", "threshold": 0, "discount": 5},
		{"name": "Silver", "threshold": 100, "discount": 10},
		{"name": "Gold", "threshold": 500, "discount": 15},
		{"name": "Platinum", "threshold": 1000, "discount": 20},
	}, false, 0)
}

// TierUpdateJSON returns an update document moving one tier.
func TierUpdateJSON(tier string, threshold int64, discount float64) string {
	doc := map[string]interface{}{
		"tiers": map[string]interface{}{
			tier: map[string]interface{}{"threshold": threshold, "discount": discount},
		},
	}
	b, _ := json.MarshalIndent(doc, "", "  ")
	return string(b)
}

func configJSON(tiers []map[string]interface{}, expiry bool, days int) string {
	doc := map[string]interface{}{
		"tiers": tiers,
		"pointValues": map[string]interface{}{
			"booking":  10,
			"purchase": 1,
			"rental":   0.5,
			"referral": 50,
		},
		"expiry": map[string]interface{}{
			"enabled":      expiry,
			"durationDays": days,
		},
	}
	b, _ := json.MarshalIndent(doc, "", "  ")
	return string(b)
}
