/*
Package rewards provides the loyalty ledger on top of the generic engine.

PURPOSE:
  Every requester has a points account. Bookings, rentals, purchases and
  referrals post entries to an append-only ledger; the account's running
  total is re-derived from the entries and classified into a tier that
  grants a discount.

TIERS (default configuration):
  TIER       THRESHOLD   DISCOUNT
  Bronze     0           5%
  Silver     100         10%
  Gold       500         15%
  Platinum   1000        20%

  A balance qualifies for the highest tier whose threshold is ≤ balance.

EXPIRY:
  With expiry enabled, each entry expires DurationDays after it was posted.
  Expired entries stop counting immediately; the sweeper stamps them and
  rewrites the stored total and tier.

EXAMPLE FLOW:
  1. Account holds 90 points (Bronze)
  2. Checkout posts 15 purchase points
  3. Total is re-derived: 105 → Silver
  4. NextTier: Gold, 395 points needed

SEE ALSO:
  - tiers.go: ClassifyTier, NextTier
  - accrual.go: Per-category point rates
  - service.go: PostEntry, Sweep, UpdateConfig
*/
package rewards

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/studio-engine/generic"
)

// =============================================================================
// REWARD CONFIGURATION
// =============================================================================

// Tier is one discount bracket.
type Tier struct {
	Name      string          `json:"name"`
	Threshold int64           `json:"threshold"`
	Discount  decimal.Decimal `json:"discount"` // percent, 10 = 10%
}

// PointValues are the per-category accrual rates.
type PointValues struct {
	Booking  int64           `json:"booking"`  // flat per booking
	Purchase decimal.Decimal `json:"purchase"` // per currency unit spent
	Rental   decimal.Decimal `json:"rental"`   // per currency unit spent
	Referral int64           `json:"referral"` // flat per referral
}

// ExpiryPolicy controls whether and when entries stop counting.
type ExpiryPolicy struct {
	Enabled      bool `json:"enabled"`
	DurationDays int  `json:"durationDays"`
}

// Config is the single, versioned reward configuration.
// Operations load it once and pass it explicitly; it is never a global.
type Config struct {
	Version     int               `json:"version"`
	Tiers       []Tier            `json:"tiers"` // lowest first
	PointValues PointValues       `json:"pointValues"`
	Expiry      ExpiryPolicy      `json:"expiry"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	UpdatedBy   generic.AccountID `json:"updatedBy,omitempty"`
}

// Validate checks tier ordering and rates. Errors wrap ErrInvalidConfig.
func (c Config) Validate() error {
	if len(c.Tiers) == 0 {
		return invalidConfig("at least one tier is required")
	}
	if c.Tiers[0].Threshold != 0 {
		return invalidConfig("lowest tier %s must have threshold 0", c.Tiers[0].Name)
	}
	seen := make(map[string]bool, len(c.Tiers))
	for i, t := range c.Tiers {
		if t.Name == "" {
			return invalidConfig("tier %d has no name", i)
		}
		if seen[t.Name] {
			return invalidConfig("duplicate tier %s", t.Name)
		}
		seen[t.Name] = true
		if t.Discount.IsNegative() || t.Discount.GreaterThan(decimal.NewFromInt(100)) {
			return invalidConfig("tier %s discount must be within 0..100", t.Name)
		}
		if i > 0 && t.Threshold < c.Tiers[i-1].Threshold {
			return invalidConfig("tier %s threshold %d is below %s threshold %d",
				t.Name, t.Threshold, c.Tiers[i-1].Name, c.Tiers[i-1].Threshold)
		}
	}
	pv := c.PointValues
	if pv.Booking < 0 || pv.Referral < 0 || pv.Purchase.IsNegative() || pv.Rental.IsNegative() {
		return invalidConfig("point values must not be negative")
	}
	if c.Expiry.Enabled && c.Expiry.DurationDays <= 0 {
		return invalidConfig("expiry duration must be positive when enabled")
	}
	return nil
}

// ExpiresAt returns the expiry of an entry posted at now, or nil.
func (c Config) ExpiresAt(now time.Time) *time.Time {
	if !c.Expiry.Enabled {
		return nil
	}
	t := now.AddDate(0, 0, c.Expiry.DurationDays)
	return &t
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	out := c
	out.Tiers = append([]Tier(nil), c.Tiers...)
	return out
}

// EncodeConfig is the stored form of a configuration.
func EncodeConfig(c Config) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeConfig parses the stored form.
func DecodeConfig(s string) (Config, error) {
	var c Config
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return Config{}, fmt.Errorf("decode reward config: %w", err)
	}
	return c, nil
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", generic.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// =============================================================================
// CONFIG PATCH - Partial update from the admin console
// =============================================================================

// TierPatch changes one tier. Nil fields keep the current value.
type TierPatch struct {
	Threshold *int64           `json:"threshold,omitempty"`
	Discount  *decimal.Decimal `json:"discount,omitempty"`
}

type PointValuesPatch struct {
	Booking  *int64           `json:"booking,omitempty"`
	Purchase *decimal.Decimal `json:"purchase,omitempty"`
	Rental   *decimal.Decimal `json:"rental,omitempty"`
	Referral *int64           `json:"referral,omitempty"`
}

type ExpiryPatch struct {
	Enabled      *bool `json:"enabled,omitempty"`
	DurationDays *int  `json:"durationDays,omitempty"`
}

// ConfigPatch is merged into the current configuration. Tiers are
// addressed by name; tiers cannot be added or removed.
type ConfigPatch struct {
	Tiers       map[string]TierPatch `json:"tiers,omitempty"`
	PointValues *PointValuesPatch    `json:"pointValues,omitempty"`
	Expiry      *ExpiryPatch         `json:"expiry,omitempty"`
}

// Apply returns current with the patch merged in. The result is validated.
func (p ConfigPatch) Apply(current Config) (Config, error) {
	next := current.Clone()

	for name, tp := range p.Tiers {
		i := tierIndex(next.Tiers, name)
		if i < 0 {
			return Config{}, invalidConfig("unknown tier %s", name)
		}
		if tp.Threshold != nil {
			if i == 0 && *tp.Threshold != 0 {
				return Config{}, invalidConfig("threshold of lowest tier %s cannot be edited", name)
			}
			next.Tiers[i].Threshold = *tp.Threshold
		}
		if tp.Discount != nil {
			next.Tiers[i].Discount = *tp.Discount
		}
	}

	if pv := p.PointValues; pv != nil {
		if pv.Booking != nil {
			next.PointValues.Booking = *pv.Booking
		}
		if pv.Purchase != nil {
			next.PointValues.Purchase = *pv.Purchase
		}
		if pv.Rental != nil {
			next.PointValues.Rental = *pv.Rental
		}
		if pv.Referral != nil {
			next.PointValues.Referral = *pv.Referral
		}
	}

	if ep := p.Expiry; ep != nil {
		if ep.Enabled != nil {
			next.Expiry.Enabled = *ep.Enabled
		}
		if ep.DurationDays != nil {
			next.Expiry.DurationDays = *ep.DurationDays
		}
	}

	if err := next.Validate(); err != nil {
		return Config{}, err
	}
	return next, nil
}

// IsEmpty reports whether the patch changes nothing.
func (p ConfigPatch) IsEmpty() bool {
	return len(p.Tiers) == 0 && p.PointValues == nil && p.Expiry == nil
}
