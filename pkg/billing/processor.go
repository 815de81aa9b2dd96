package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/tenant"
)

// Subscription is the processor's view of a subscription.
type Subscription struct {
	ID                string
	CustomerID        string
	Status            tenant.SubscriptionStatus
	PeriodStart       time.Time
	PeriodEnd         time.Time
	CancelAtPeriodEnd bool
	PriceRef          string
	// ClientSecret confirms the first payment client-side. Nil when no
	// payment confirmation is pending.
	ClientSecret *string
}

// CustomerParams describes a customer to create.
type CustomerParams struct {
	TenantID uuid.UUID
	Email    string
	Name     string
}

// Processor is the external billing processor.
type Processor interface {
	CreateCustomer(ctx context.Context, p CustomerParams) (customerID string, err error)
	CreateSubscription(ctx context.Context, tenantID uuid.UUID, customerID, priceRef string) (Subscription, error)
	// UpdateSubscriptionPrice switches the subscription to priceRef with prorated invoicing.
	UpdateSubscriptionPrice(ctx context.Context, subscriptionID, priceRef string) (Subscription, error)
	// CancelSubscription cancels now when immediate is set, otherwise at period end.
	CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) (Subscription, error)
	GetSubscription(ctx context.Context, subscriptionID string) (Subscription, error)
}
