package reconcile

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/meterkit/pkg/notify"
	"github.com/dmitrymomot/meterkit/pkg/tier"
	"github.com/dmitrymomot/meterkit/pkg/usage"
)

// WarningPercent is the share of quota at which a violation is raised.
const WarningPercent = 80

var (
	bytesPerGB = decimal.NewFromInt(tier.BytesPerGB)
	hundred    = decimal.NewFromInt(100)
	warningAt  = decimal.NewFromInt(WarningPercent)
)

// Evaluate returns a violation when the snapshot is at or above
// WarningPercent of the policy's storage quota, or nil. A non-positive quota
// never produces a violation.
func Evaluate(s usage.Snapshot, p tier.Policy, periodStart time.Time) *notify.Violation {
	quota := p.Quota.StorageBytes
	if quota <= 0 {
		return nil
	}
	// byte counts near the int64 range would overflow when scaled by 100
	total, limit := decimal.NewFromInt(s.TotalBytes), decimal.NewFromInt(quota)
	if total.Mul(hundred).LessThan(limit.Mul(warningAt)) {
		return nil
	}

	bucket := notify.BucketWarning
	if s.TotalBytes >= quota {
		bucket = notify.BucketOverLimit
	}
	overage := max(0, s.TotalBytes-quota)

	return &notify.Violation{
		TenantID:     s.TenantID,
		Tier:         p.Tier,
		Percent:      total.Mul(hundred).Div(limit).InexactFloat64(),
		Bucket:       bucket,
		TotalBytes:   s.TotalBytes,
		QuotaBytes:   quota,
		OverageBytes: overage,
		OverageCost:  OverageCost(overage, p.OveragePricePerGB),
		PeriodStart:  periodStart,
	}
}

// OverageCost prices overage bytes per decimal gigabyte, rounded to 4 places.
func OverageCost(overageBytes int64, pricePerGB decimal.Decimal) decimal.Decimal {
	if overageBytes <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(overageBytes).Div(bytesPerGB).Mul(pricePerGB).Round(4)
}
