package tenant

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/tier"
	"github.com/dmitrymomot/meterkit/pkg/usage"
)

// Tenant is a metered customer account.
type Tenant struct {
	ID      uuid.UUID  `json:"id"`
	Name    string     `json:"name"`
	Email   string     `json:"email"`
	Tier    tier.Tier  `json:"tier"`
	Quota   tier.Quota `json:"quota"`
	Usage   Usage      `json:"usage"`
	Billing BillingRef `json:"billing"`
}

// Usage is the latest computed usage of a tenant.
type Usage struct {
	StorageBytes         int64           `json:"storage_bytes"`
	TranscriptionMinutes int64           `json:"transcription_minutes"`
	Breakdown            usage.Breakdown `json:"breakdown"`
	ItemCount            int64           `json:"item_count"`
	ComputedAt           time.Time       `json:"computed_at"`
}

// UsageFromSnapshot converts a snapshot into the persisted usage fields.
func UsageFromSnapshot(s usage.Snapshot) Usage {
	return Usage{
		StorageBytes:         s.TotalBytes,
		TranscriptionMinutes: s.TranscriptionMinutes,
		Breakdown:            s.Breakdown,
		ItemCount:            s.ItemCount,
		ComputedAt:           s.ComputedAt,
	}
}

// BillingRef links a tenant to its billing processor records.
type BillingRef struct {
	CustomerID        string             `json:"customer_id,omitempty"`
	SubscriptionID    string             `json:"subscription_id,omitempty"`
	Status            SubscriptionStatus `json:"status,omitempty"`
	PeriodStart       time.Time          `json:"period_start"`
	PeriodEnd         time.Time          `json:"period_end"`
	CancelAtPeriodEnd bool               `json:"cancel_at_period_end"`
	// SyncedAt is the occurred-at time of the last applied processor event.
	SyncedAt time.Time `json:"synced_at"`
}

// HasSubscription reports whether a subscription exists and is not canceled.
func (b BillingRef) HasSubscription() bool {
	return b.SubscriptionID != "" && b.Status != StatusCanceled
}

// Store persists tenants. Update methods touch only their own field set.
type Store interface {
	// Get returns ErrTenantNotFound if the tenant does not exist.
	Get(ctx context.Context, id uuid.UUID) (*Tenant, error)
	// FindByCustomerID looks a tenant up by its billing customer id.
	FindByCustomerID(ctx context.Context, customerID string) (*Tenant, error)
	// ListAll returns the ids of every tenant.
	ListAll(ctx context.Context) ([]uuid.UUID, error)

	UpdateUsage(ctx context.Context, id uuid.UUID, u Usage) error
	UpdateBilling(ctx context.Context, id uuid.UUID, b BillingRef) error
	UpdateTier(ctx context.Context, id uuid.UUID, t tier.Tier, q tier.Quota) error
}
