package notify

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/meterkit/pkg/tier"
)

// Bucket is a notification threshold in percent of quota.
type Bucket int

const (
	BucketNone      Bucket = 0
	BucketWarning   Bucket = 80
	BucketOverLimit Bucket = 100
)

// BucketFor maps a usage percentage onto its bucket.
func BucketFor(percent float64) Bucket {
	switch {
	case percent >= 100:
		return BucketOverLimit
	case percent >= 80:
		return BucketWarning
	default:
		return BucketNone
	}
}

// Template returns the message template used for the bucket.
func (b Bucket) Template() TemplateKind {
	if b >= BucketOverLimit {
		return TemplateUsageOverage
	}
	return TemplateUsageWarning
}

// Violation reports a tenant at or above 80% of its storage quota.
type Violation struct {
	TenantID     uuid.UUID       `json:"tenant_id"`
	Tier         tier.Tier       `json:"tier"`
	Percent      float64         `json:"percent"`
	Bucket       Bucket          `json:"bucket"`
	TotalBytes   int64           `json:"total_bytes"`
	QuotaBytes   int64           `json:"quota_bytes"`
	OverageBytes int64           `json:"overage_bytes"`
	OverageCost  decimal.Decimal `json:"overage_cost"`
	PeriodStart  time.Time       `json:"period_start"`
}
