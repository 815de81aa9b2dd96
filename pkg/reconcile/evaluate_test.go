package reconcile_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/pkg/notify"
	"github.com/dmitrymomot/meterkit/pkg/reconcile"
	"github.com/dmitrymomot/meterkit/pkg/tier"
	"github.com/dmitrymomot/meterkit/pkg/usage"
)

func TestEvaluate(t *testing.T) {
	t.Parallel()

	growth := tier.NewTable(tier.DefaultPolicies()).Resolve(tier.Growth)
	exabyte := tier.Policy{
		Tier:              "custom",
		Quota:             tier.Quota{StorageBytes: 5_000_000_000_000_000_000},
		OveragePricePerGB: decimal.RequireFromString("0.25"),
	}
	period := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		total      int64
		policy     tier.Policy
		wantBucket notify.Bucket
		overage    int64
		cost       string
	}{
		{name: "below threshold", total: 5 * tier.BytesPerGB, policy: growth},
		{name: "just under 80 percent", total: 7_999_900_000, policy: growth},
		{name: "exactly 80 percent", total: 8 * tier.BytesPerGB, policy: growth, wantBucket: notify.BucketWarning, cost: "0"},
		{name: "8.5GB on growth warns only", total: 8_500_000_000, policy: growth, wantBucket: notify.BucketWarning, cost: "0"},
		{name: "exactly at quota", total: 10 * tier.BytesPerGB, policy: growth, wantBucket: notify.BucketOverLimit, cost: "0"},
		{name: "11GB on growth", total: 11 * tier.BytesPerGB, policy: growth, wantBucket: notify.BucketOverLimit, overage: tier.BytesPerGB, cost: "0.25"},
		{name: "fractional overage rounds to 4 places", total: 10*tier.BytesPerGB + 123_456_789, policy: growth, wantBucket: notify.BucketOverLimit, overage: 123_456_789, cost: "0.0309"},
		{name: "zero quota never violates", total: 50 * tier.BytesPerGB, policy: tier.Policy{Tier: "custom"}},
		{name: "exabyte usage under quota", total: 4_500_000_000_000_000_000, policy: exabyte, wantBucket: notify.BucketWarning, cost: "0"},
		{name: "exabyte usage over quota", total: 9_000_000_000_000_000_000, policy: exabyte, wantBucket: notify.BucketOverLimit, overage: 4_000_000_000_000_000_000, cost: "1000000000"},
		{name: "exabyte usage below threshold", total: 3_000_000_000_000_000_000, policy: exabyte},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			snap := usage.Snapshot{TenantID: uuid.New(), TotalBytes: tt.total}

			v := reconcile.Evaluate(snap, tt.policy, period)
			if tt.wantBucket == notify.BucketNone {
				assert.Nil(t, v)
				return
			}

			require.NotNil(t, v)
			assert.Equal(t, tt.wantBucket, v.Bucket)
			assert.Equal(t, snap.TenantID, v.TenantID)
			assert.Equal(t, tt.policy.Tier, v.Tier)
			assert.Equal(t, tt.total, v.TotalBytes)
			assert.Equal(t, tt.policy.Quota.StorageBytes, v.QuotaBytes)
			assert.Equal(t, tt.overage, v.OverageBytes)
			assert.True(t, decimal.RequireFromString(tt.cost).Equal(v.OverageCost), "cost %s", v.OverageCost)
			assert.Equal(t, period, v.PeriodStart)
			assert.Equal(t, notify.BucketFor(v.Percent), v.Bucket)
		})
	}
}

func TestOverageCost(t *testing.T) {
	t.Parallel()

	price := decimal.RequireFromString("0.50")
	assert.True(t, decimal.Zero.Equal(reconcile.OverageCost(0, price)))
	assert.True(t, decimal.Zero.Equal(reconcile.OverageCost(-10, price)))
	assert.True(t, decimal.RequireFromString("1.25").Equal(reconcile.OverageCost(2_500_000_000, price)))
}
