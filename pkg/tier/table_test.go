package tier_test

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/pkg/tier"
)

func TestTable_Resolve(t *testing.T) {
	t.Parallel()

	table := tier.NewTable(tier.DefaultPolicies())

	tests := []struct {
		name string
		in   tier.Tier
		want tier.Tier
	}{
		{name: "starter", in: tier.Starter, want: tier.Starter},
		{name: "growth", in: tier.Growth, want: tier.Growth},
		{name: "mixed case is normalized", in: tier.Tier(" Professional "), want: tier.Professional},
		{name: "unknown falls back to starter", in: tier.Tier("platinum"), want: tier.Starter},
		{name: "empty falls back to starter", in: tier.Tier(""), want: tier.Starter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, table.Resolve(tt.in).Tier)
		})
	}
}

func TestTable_GrowthPolicy(t *testing.T) {
	t.Parallel()

	p := tier.NewTable(tier.DefaultPolicies()).Resolve(tier.Growth)
	assert.Equal(t, int64(10_000_000_000), p.Quota.StorageBytes)
	assert.True(t, p.OveragePricePerGB.Equal(decimal.RequireFromString("0.25")))
	assert.True(t, p.Purchasable())
}

func TestTable_ByPriceRef(t *testing.T) {
	t.Parallel()

	table := tier.NewTable(tier.DefaultPolicies())

	p, ok := table.ByPriceRef("price_professional")
	require.True(t, ok)
	assert.Equal(t, tier.Professional, p.Tier)

	_, ok = table.ByPriceRef("price_unknown")
	assert.False(t, ok)

	_, ok = table.ByPriceRef("")
	assert.False(t, ok, "free tiers have no price ref")
}

func TestNewTable_RequiresStarter(t *testing.T) {
	t.Parallel()

	policies := tier.DefaultPolicies()
	delete(policies, tier.Starter)

	assert.Panics(t, func() { tier.NewTable(policies) })
}

func TestDecodeYAML(t *testing.T) {
	t.Parallel()

	t.Run("overrides only present fields", func(t *testing.T) {
		t.Parallel()

		doc := `
tiers:
  growth:
    storage_gb: 20
    overage_price_per_gb: "0.20"
    price_ref: price_live_growth
`
		table, err := tier.DecodeYAML(strings.NewReader(doc))
		require.NoError(t, err)

		p := table.Resolve(tier.Growth)
		assert.Equal(t, 20*tier.BytesPerGB, p.Quota.StorageBytes)
		assert.Equal(t, int64(600), p.Quota.Minutes)
		assert.True(t, p.OveragePricePerGB.Equal(decimal.RequireFromString("0.20")))
		assert.Equal(t, "price_live_growth", p.PriceRef)

		byRef, ok := table.ByPriceRef("price_live_growth")
		require.True(t, ok)
		assert.Equal(t, tier.Growth, byRef.Tier)
	})

	t.Run("empty document keeps defaults", func(t *testing.T) {
		t.Parallel()

		table, err := tier.DecodeYAML(strings.NewReader(""))
		require.NoError(t, err)
		assert.Equal(t, tier.DefaultPolicies()[tier.Enterprise].Quota, table.Resolve(tier.Enterprise).Quota)
	})

	t.Run("invalid price", func(t *testing.T) {
		t.Parallel()

		_, err := tier.DecodeYAML(strings.NewReader("tiers:\n  growth:\n    overage_price_per_gb: abc\n"))
		assert.ErrorIs(t, err, tier.ErrFailedToLoadTiers)
	})

	t.Run("duplicate price refs", func(t *testing.T) {
		t.Parallel()

		doc := "tiers:\n  growth:\n    price_ref: price_x\n  professional:\n    price_ref: price_x\n"
		_, err := tier.DecodeYAML(strings.NewReader(doc))
		assert.ErrorIs(t, err, tier.ErrInvalidPolicy)
	})
}
