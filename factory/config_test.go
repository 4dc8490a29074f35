package factory_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/studio-engine/factory"
	"github.com/warp/studio-engine/generic"
	"github.com/warp/studio-engine/rewards"
)

func TestParseConfig_DefaultPresetMatchesDefaultConfig(t *testing.T) {
	f := factory.NewConfigFactory()

	cfg, err := f.ParseConfig(rewards.DefaultConfigJSON())
	require.NoError(t, err)

	want := rewards.DefaultConfig()
	require.Len(t, cfg.Tiers, len(want.Tiers))
	for i := range want.Tiers {
		assert.Equal(t, want.Tiers[i].Name, cfg.Tiers[i].Name)
		assert.Equal(t, want.Tiers[i].Threshold, cfg.Tiers[i].Threshold)
		assert.True(t, want.Tiers[i].Discount.Equal(cfg.Tiers[i].Discount), "tier %s discount", cfg.Tiers[i].Name)
	}
	assert.Equal(t, int64(10), cfg.PointValues.Booking)
	assert.True(t, cfg.PointValues.Rental.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, rewards.ExpiryPolicy{Enabled: true, DurationDays: 365}, cfg.Expiry)
}

func TestParseConfigYAML(t *testing.T) {
	// GIVEN: A three-tier YAML seed with expiry disabled
	doc := []byte(`
tiers:
  - name: Bronze
    threshold: 0
    discount: 5
  - name: Silver
    threshold: 100
    discount: 10
  - name: Gold
    threshold: 500
    discount: 15
pointValues:
  booking: 10
  purchase: 1
  rental: 0.5
  referral: 50
expiry:
  enabled: false
`)
	cfg, err := factory.NewConfigFactory().ParseConfigYAML(doc)
	require.NoError(t, err)
	assert.Len(t, cfg.Tiers, 3)
	assert.Equal(t, "Silver", rewards.ClassifyTier(105, cfg).Name)
	assert.False(t, cfg.Expiry.Enabled)
}

func TestParseConfig_Invalid(t *testing.T) {
	f := factory.NewConfigFactory()

	_, err := f.ParseConfig(`{"tiers": [{"name": "A", "threshold": 0}, {"name": "B", "threshold": -5}]}`)
	assert.ErrorIs(t, err, generic.ErrInvalidConfig, "thresholds must not decrease")

	_, err = f.ParseConfig(`{"tiers": [{"name": "A", "threshold": 10}]}`)
	assert.ErrorIs(t, err, generic.ErrInvalidConfig, "lowest tier starts at 0")

	_, err = f.ParseConfig(`{not json`)
	assert.ErrorIs(t, err, generic.ErrInvalidConfig)
}

func TestParsePatch_AppliesOnlyNamedFields(t *testing.T) {
	f := factory.NewConfigFactory()

	patch, err := f.ParsePatch([]byte(rewards.TierUpdateJSON("Silver", 150, 12.5)))
	require.NoError(t, err)
	require.Contains(t, patch.Tiers, "Silver")
	assert.Nil(t, patch.PointValues)

	next, err := patch.Apply(rewards.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, int64(150), next.Tiers[1].Threshold)
	assert.True(t, next.Tiers[1].Discount.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, int64(500), next.Tiers[2].Threshold, "other tiers untouched")
}

func TestToDocument_RoundTrip(t *testing.T) {
	f := factory.NewConfigFactory()
	cfg := rewards.DefaultConfig()

	back, err := f.FromDocument(f.ToDocument(cfg))
	require.NoError(t, err)
	assert.Equal(t, len(cfg.Tiers), len(back.Tiers))
	assert.True(t, back.PointValues.Purchase.Equal(cfg.PointValues.Purchase))
}
