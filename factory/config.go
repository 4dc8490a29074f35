/*
Package factory provides JSON/YAML to Go reward configuration conversion.

PURPOSE:
  Converts reward configuration documents into validated rewards.Config
  values, and admin-console update documents into rewards.ConfigPatch.
  The admin console speaks JSON; seed files shipped with a deployment are
  YAML. Both share one schema.

DOCUMENT SCHEMA:
  {
    "tiers": [
      {"name": "Bronze",   "threshold": 0,    "discount": 5},
      {"name": "Silver",   "threshold": 100,  "discount": 10},
      {"name": "Gold",     "threshold": 500,  "discount": 15},
      {"name": "Platinum", "threshold": 1000, "discount": 20}
    ],
    "pointValues": {"booking": 10, "purchase": 1, "rental": 0.5, "referral": 50},
    "expiry": {"enabled": true, "durationDays": 365}
  }

UPDATE SCHEMA (partial, tiers addressed by name):
  {
    "tiers": {"Silver": {"threshold": 150}, "Gold": {"discount": 17.5}},
    "pointValues": {"rental": 1},
    "expiry": {"durationDays": 180}
  }

USAGE:
  f := factory.NewConfigFactory()
  cfg, err := f.ParseConfig(jsonString)
  cfg, err := f.ParseConfigYAML(yamlBytes)
  patch, err := f.ParsePatch(body)

SEE ALSO:
  - rewards/types.go: Config and ConfigPatch
  - rewards/factory.go: Preset documents
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/studio-engine/generic"
	"github.com/warp/studio-engine/rewards"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// DOCUMENT SCHEMA TYPES
// =============================================================================

// ConfigDocument is the JSON/YAML representation of a reward configuration.
type ConfigDocument struct {
	Tiers       []TierDocument      `json:"tiers" yaml:"tiers"`
	PointValues PointValuesDocument `json:"pointValues" yaml:"pointValues"`
	Expiry      ExpiryDocument      `json:"expiry" yaml:"expiry"`
}

// TierDocument represents one tier.
type TierDocument struct {
	Name      string  `json:"name" yaml:"name"`
	Threshold int64   `json:"threshold" yaml:"threshold"`
	Discount  float64 `json:"discount" yaml:"discount"` // percent
}

// PointValuesDocument represents per-category accrual rates.
type PointValuesDocument struct {
	Booking  int64   `json:"booking" yaml:"booking"`
	Purchase float64 `json:"purchase" yaml:"purchase"`
	Rental   float64 `json:"rental" yaml:"rental"`
	Referral int64   `json:"referral" yaml:"referral"`
}

// ExpiryDocument represents the expiry policy.
type ExpiryDocument struct {
	Enabled      bool `json:"enabled" yaml:"enabled"`
	DurationDays int  `json:"durationDays" yaml:"durationDays"`
}

// PatchDocument is the admin console's partial update.
type PatchDocument struct {
	Tiers       map[string]TierPatchDocument `json:"tiers,omitempty"`
	PointValues *PointValuesPatchDocument    `json:"pointValues,omitempty"`
	Expiry      *ExpiryPatchDocument         `json:"expiry,omitempty"`
}

type TierPatchDocument struct {
	Threshold *int64   `json:"threshold,omitempty"`
	Discount  *float64 `json:"discount,omitempty"`
}

type PointValuesPatchDocument struct {
	Booking  *int64   `json:"booking,omitempty"`
	Purchase *float64 `json:"purchase,omitempty"`
	Rental   *float64 `json:"rental,omitempty"`
	Referral *int64   `json:"referral,omitempty"`
}

type ExpiryPatchDocument struct {
	Enabled      *bool `json:"enabled,omitempty"`
	DurationDays *int  `json:"durationDays,omitempty"`
}

// =============================================================================
// CONFIG FACTORY
// =============================================================================

// ConfigFactory converts documents to reward configurations.
type ConfigFactory struct{}

// NewConfigFactory creates a new config factory.
func NewConfigFactory() *ConfigFactory {
	return &ConfigFactory{}
}

// ParseConfig parses a JSON document into a validated Config.
func (f *ConfigFactory) ParseConfig(jsonStr string) (rewards.Config, error) {
	var doc ConfigDocument
	if err := json.Unmarshal([]byte(jsonStr), &doc); err != nil {
		return rewards.Config{}, fmt.Errorf("%w: failed to parse config JSON: %v", generic.ErrInvalidConfig, err)
	}
	return f.FromDocument(doc)
}

// ParseConfigYAML parses a YAML seed document into a validated Config.
func (f *ConfigFactory) ParseConfigYAML(data []byte) (rewards.Config, error) {
	var doc ConfigDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return rewards.Config{}, fmt.Errorf("%w: failed to parse config YAML: %v", generic.ErrInvalidConfig, err)
	}
	return f.FromDocument(doc)
}

// FromDocument converts a ConfigDocument to rewards.Config and validates it.
func (f *ConfigFactory) FromDocument(doc ConfigDocument) (rewards.Config, error) {
	cfg := rewards.Config{
		PointValues: rewards.PointValues{
			Booking:  doc.PointValues.Booking,
			Purchase: decimal.NewFromFloat(doc.PointValues.Purchase),
			Rental:   decimal.NewFromFloat(doc.PointValues.Rental),
			Referral: doc.PointValues.Referral,
		},
		Expiry: rewards.ExpiryPolicy{
			Enabled:      doc.Expiry.Enabled,
			DurationDays: doc.Expiry.DurationDays,
		},
	}
	for _, t := range doc.Tiers {
		cfg.Tiers = append(cfg.Tiers, rewards.Tier{
			Name:      t.Name,
			Threshold: t.Threshold,
			Discount:  decimal.NewFromFloat(t.Discount),
		})
	}

	if err := cfg.Validate(); err != nil {
		return rewards.Config{}, err
	}
	return cfg, nil
}

// ToDocument converts a Config back to its document form.
func (f *ConfigFactory) ToDocument(cfg rewards.Config) ConfigDocument {
	doc := ConfigDocument{
		PointValues: PointValuesDocument{
			Booking:  cfg.PointValues.Booking,
			Purchase: cfg.PointValues.Purchase.InexactFloat64(),
			Rental:   cfg.PointValues.Rental.InexactFloat64(),
			Referral: cfg.PointValues.Referral,
		},
		Expiry: ExpiryDocument{
			Enabled:      cfg.Expiry.Enabled,
			DurationDays: cfg.Expiry.DurationDays,
		},
	}
	for _, t := range cfg.Tiers {
		doc.Tiers = append(doc.Tiers, TierDocument{
			Name:      t.Name,
			Threshold: t.Threshold,
			Discount:  t.Discount.InexactFloat64(),
		})
	}
	return doc
}

// ParsePatch parses an admin console update body.
func (f *ConfigFactory) ParsePatch(data []byte) (rewards.ConfigPatch, error) {
	var doc PatchDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return rewards.ConfigPatch{}, fmt.Errorf("%w: failed to parse config update: %v", generic.ErrInvalidConfig, err)
	}
	return f.PatchFromDocument(doc), nil
}

// PatchFromDocument converts a PatchDocument into a rewards.ConfigPatch.
func (f *ConfigFactory) PatchFromDocument(doc PatchDocument) rewards.ConfigPatch {
	var patch rewards.ConfigPatch

	if len(doc.Tiers) > 0 {
		patch.Tiers = make(map[string]rewards.TierPatch, len(doc.Tiers))
		for name, tp := range doc.Tiers {
			patch.Tiers[name] = rewards.TierPatch{
				Threshold: tp.Threshold,
				Discount:  decimalPtr(tp.Discount),
			}
		}
	}

	if pv := doc.PointValues; pv != nil {
		patch.PointValues = &rewards.PointValuesPatch{
			Booking:  pv.Booking,
			Purchase: decimalPtr(pv.Purchase),
			Rental:   decimalPtr(pv.Rental),
			Referral: pv.Referral,
		}
	}

	if ep := doc.Expiry; ep != nil {
		patch.Expiry = &rewards.ExpiryPatch{Enabled: ep.Enabled, DurationDays: ep.DurationDays}
	}
	return patch
}

func decimalPtr(v *float64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := decimal.NewFromFloat(*v)
	return &d
}
