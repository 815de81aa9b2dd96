package billing_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/meterkit/pkg/billing"
	"github.com/dmitrymomot/meterkit/pkg/memstore"
	"github.com/dmitrymomot/meterkit/pkg/tenant"
	"github.com/dmitrymomot/meterkit/pkg/tier"
)

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) CreateCustomer(ctx context.Context, p billing.CustomerParams) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

func (m *mockProcessor) CreateSubscription(ctx context.Context, tenantID uuid.UUID, customerID, priceRef string) (billing.Subscription, error) {
	args := m.Called(ctx, tenantID, customerID, priceRef)
	return args.Get(0).(billing.Subscription), args.Error(1)
}

func (m *mockProcessor) UpdateSubscriptionPrice(ctx context.Context, subscriptionID, priceRef string) (billing.Subscription, error) {
	args := m.Called(ctx, subscriptionID, priceRef)
	return args.Get(0).(billing.Subscription), args.Error(1)
}

func (m *mockProcessor) CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) (billing.Subscription, error) {
	args := m.Called(ctx, subscriptionID, immediate)
	return args.Get(0).(billing.Subscription), args.Error(1)
}

func (m *mockProcessor) GetSubscription(ctx context.Context, subscriptionID string) (billing.Subscription, error) {
	args := m.Called(ctx, subscriptionID)
	return args.Get(0).(billing.Subscription), args.Error(1)
}

var (
	periodStart = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	receivedAt  = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
)

func policies() *tier.Table {
	return tier.NewTable(tier.DefaultPolicies())
}

func newSync(p billing.Processor, store *memstore.Store, opts ...billing.SyncOption) *billing.Sync {
	opts = append([]billing.SyncOption{billing.WithClock(func() time.Time { return receivedAt })}, opts...)
	return billing.NewSync(p, store, policies(), opts...)
}

func seedTenant(store *memstore.Store, tr tier.Tier, b tenant.BillingRef) uuid.UUID {
	id := uuid.New()
	p := policies().Resolve(tr)
	store.Put(tenant.Tenant{ID: id, Name: "Acme", Email: "owner@acme.test", Tier: p.Tier, Quota: p.Quota, Billing: b})
	return id
}

func activeBilling() tenant.BillingRef {
	return tenant.BillingRef{
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		Status:         tenant.StatusActive,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
	}
}
