package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/ledger"
	"github.com/dmitrymomot/meterkit/pkg/lock"
	"github.com/dmitrymomot/meterkit/pkg/logger"
	"github.com/dmitrymomot/meterkit/pkg/tenant"
	"github.com/dmitrymomot/meterkit/pkg/tier"
)

// Store is the persistence Sync needs: tenants, the event ledger and a unit
// of work spanning both. memstore.Store and pgstore.Store implement it.
type Store interface {
	tenant.Store
	ledger.Ledger
	ledger.UnitOfWork
}

// SubscriptionResult is returned by CreateSubscription.
type SubscriptionResult struct {
	SubscriptionID string                    `json:"subscription_id"`
	ClientSecret   *string                   `json:"client_secret"`
	Status         tenant.SubscriptionStatus `json:"status"`
}

// Sync keeps tenant billing state and the ledger consistent with the
// billing processor.
type Sync struct {
	processor Processor
	store     Store
	policies  *tier.Table
	locker    lock.Locker
	timeout   time.Duration
	log       *slog.Logger
	now       func() time.Time
}

// NewSync creates a Sync. The processor may be nil when only webhooks are
// ingested; processor-backed operations then fail with ErrProcessorNotConfigured.
func NewSync(p Processor, store Store, policies *tier.Table, opts ...SyncOption) *Sync {
	if store == nil {
		panic("billing: Store is required")
	}
	if policies == nil {
		panic("billing: tier.Table is required")
	}

	s := &Sync{
		processor: p,
		store:     store,
		policies:  policies,
		locker:    lock.NewLocal(),
		timeout:   ProcessorTimeout,
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureCustomer returns the tenant's processor customer id, creating the
// customer on first use.
func (s *Sync) EnsureCustomer(ctx context.Context, tenantID uuid.UUID) (string, error) {
	unlock, err := s.lockTenant(ctx, tenantID)
	if err != nil {
		return "", err
	}
	defer unlock()

	t, err := s.store.Get(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return s.ensureCustomer(ctx, t)
}

func (s *Sync) ensureCustomer(ctx context.Context, t *tenant.Tenant) (string, error) {
	if t.Billing.CustomerID != "" {
		return t.Billing.CustomerID, nil
	}

	var customerID string
	err := s.call(ctx, "create customer", func(ctx context.Context) error {
		var err error
		customerID, err = s.processor.CreateCustomer(ctx, CustomerParams{TenantID: t.ID, Email: t.Email, Name: t.Name})
		return err
	})
	if err != nil {
		return "", err
	}

	b := t.Billing
	b.CustomerID = customerID
	if err := s.store.UpdateBilling(ctx, t.ID, b); err != nil {
		return "", err
	}
	t.Billing = b

	s.log.LogAttrs(ctx, slog.LevelInfo, "billing customer created",
		logger.Component("billing"), logger.TenantID(t.ID), slog.String("customer_id", customerID))
	return customerID, nil
}

// CreateSubscription subscribes the tenant to the tier sold under priceRef.
func (s *Sync) CreateSubscription(ctx context.Context, tenantID uuid.UUID, priceRef string) (SubscriptionResult, error) {
	policy, ok := s.policies.ByPriceRef(priceRef)
	if !ok {
		return SubscriptionResult{}, fmt.Errorf("%w: unknown price %q", ErrTierNotPurchasable, priceRef)
	}

	unlock, err := s.lockTenant(ctx, tenantID)
	if err != nil {
		return SubscriptionResult{}, err
	}
	defer unlock()

	t, err := s.store.Get(ctx, tenantID)
	if err != nil {
		return SubscriptionResult{}, err
	}
	if t.Billing.HasSubscription() {
		return SubscriptionResult{}, ErrSubscriptionExists
	}

	// The customer id is stored before the subscription call and survives its
	// failure, so a retry reuses the customer instead of creating another.
	customerID, err := s.ensureCustomer(ctx, t)
	if err != nil {
		return SubscriptionResult{}, err
	}

	var sub Subscription
	err = s.call(ctx, "create subscription", func(ctx context.Context) error {
		var err error
		sub, err = s.processor.CreateSubscription(ctx, tenantID, customerID, priceRef)
		return err
	})
	if err != nil {
		return SubscriptionResult{}, err
	}

	b := t.Billing
	b.SubscriptionID = sub.ID
	b.CancelAtPeriodEnd = false
	applySubscription(&b, sub)

	err = s.store.WithinTx(ctx, func(ctx context.Context, tenants tenant.Store, _ ledger.Ledger) error {
		if err := tenants.UpdateBilling(ctx, tenantID, b); err != nil {
			return err
		}
		if grantsTier(sub.Status) {
			return tenants.UpdateTier(ctx, tenantID, policy.Tier, policy.Quota)
		}
		return nil
	})
	if err != nil {
		return SubscriptionResult{}, err
	}

	s.log.LogAttrs(ctx, slog.LevelInfo, "subscription created",
		logger.Component("billing"), logger.TenantID(tenantID),
		slog.String("subscription_id", sub.ID), slog.String("status", string(sub.Status)))
	return SubscriptionResult{SubscriptionID: sub.ID, ClientSecret: sub.ClientSecret, Status: sub.Status}, nil
}

// ChangeTier moves an active subscription to newTier with prorated invoicing.
func (s *Sync) ChangeTier(ctx context.Context, tenantID uuid.UUID, newTier tier.Tier) (tenant.SubscriptionStatus, error) {
	want := tier.Parse(string(newTier))
	policy := s.policies.Resolve(want)
	if policy.Tier != want || !policy.Purchasable() {
		return "", fmt.Errorf("%w: %s", ErrTierNotPurchasable, newTier)
	}

	unlock, err := s.lockTenant(ctx, tenantID)
	if err != nil {
		return "", err
	}
	defer unlock()

	t, err := s.store.Get(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if !t.Billing.HasSubscription() {
		return "", ErrNoActiveSubscription
	}

	var sub Subscription
	err = s.call(ctx, "update subscription", func(ctx context.Context) error {
		var err error
		sub, err = s.processor.UpdateSubscriptionPrice(ctx, t.Billing.SubscriptionID, policy.PriceRef)
		return err
	})
	if err != nil {
		return "", err
	}

	b := t.Billing
	applySubscription(&b, sub)
	b.CancelAtPeriodEnd = sub.CancelAtPeriodEnd

	err = s.store.WithinTx(ctx, func(ctx context.Context, tenants tenant.Store, _ ledger.Ledger) error {
		if err := tenants.UpdateBilling(ctx, tenantID, b); err != nil {
			return err
		}
		return tenants.UpdateTier(ctx, tenantID, policy.Tier, policy.Quota)
	})
	if err != nil {
		return "", err
	}

	s.log.LogAttrs(ctx, slog.LevelInfo, "subscription tier changed",
		logger.Component("billing"), logger.TenantID(tenantID),
		slog.String("from", string(t.Tier)), slog.String("to", string(policy.Tier)))
	return b.Status, nil
}

// CancelSubscription cancels the tenant's subscription. Immediate
// cancellation marks it canceled and downgrades to starter now; otherwise
// the subscription runs to period end and only the cancel flag is set.
func (s *Sync) CancelSubscription(ctx context.Context, tenantID uuid.UUID, immediate bool) error {
	unlock, err := s.lockTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	defer unlock()

	t, err := s.store.Get(ctx, tenantID)
	if err != nil {
		return err
	}
	if !t.Billing.HasSubscription() {
		return ErrNoActiveSubscription
	}

	var sub Subscription
	err = s.call(ctx, "cancel subscription", func(ctx context.Context) error {
		var err error
		sub, err = s.processor.CancelSubscription(ctx, t.Billing.SubscriptionID, immediate)
		return err
	})
	if err != nil {
		return err
	}

	b := t.Billing
	if !immediate {
		b.CancelAtPeriodEnd = true
		if err := s.store.UpdateBilling(ctx, tenantID, b); err != nil {
			return err
		}
		s.log.LogAttrs(ctx, slog.LevelInfo, "subscription set to cancel at period end",
			logger.Component("billing"), logger.TenantID(tenantID), slog.Time("period_end", b.PeriodEnd))
		return nil
	}

	b.Status = tenant.StatusCanceled
	b.CancelAtPeriodEnd = false
	if !sub.PeriodEnd.IsZero() {
		b.PeriodEnd = sub.PeriodEnd
	}
	starter := s.policies.Resolve(tier.Starter)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tenants tenant.Store, _ ledger.Ledger) error {
		if err := tenants.UpdateBilling(ctx, tenantID, b); err != nil {
			return err
		}
		return tenants.UpdateTier(ctx, tenantID, starter.Tier, starter.Quota)
	})
	if err != nil {
		return err
	}

	s.log.LogAttrs(ctx, slog.LevelInfo, "subscription canceled",
		logger.Component("billing"), logger.TenantID(tenantID))
	return nil
}

// Resync overwrites the tenant's subscription state with the processor's.
func (s *Sync) Resync(ctx context.Context, tenantID uuid.UUID) (tenant.BillingRef, error) {
	unlock, err := s.lockTenant(ctx, tenantID)
	if err != nil {
		return tenant.BillingRef{}, err
	}
	defer unlock()

	t, err := s.store.Get(ctx, tenantID)
	if err != nil {
		return tenant.BillingRef{}, err
	}
	if t.Billing.SubscriptionID == "" {
		return tenant.BillingRef{}, ErrNoActiveSubscription
	}

	var sub Subscription
	err = s.call(ctx, "get subscription", func(ctx context.Context) error {
		var err error
		sub, err = s.processor.GetSubscription(ctx, t.Billing.SubscriptionID)
		return err
	})
	if err != nil {
		return tenant.BillingRef{}, err
	}

	b := t.Billing
	applySubscription(&b, sub)
	b.CancelAtPeriodEnd = sub.CancelAtPeriodEnd

	err = s.store.WithinTx(ctx, func(ctx context.Context, tenants tenant.Store, _ ledger.Ledger) error {
		if err := tenants.UpdateBilling(ctx, tenantID, b); err != nil {
			return err
		}
		return s.syncTier(ctx, tenants, t, b.Status, sub.PriceRef)
	})
	if err != nil {
		return tenant.BillingRef{}, err
	}
	return b, nil
}

// call runs fn against the processor under the processor timeout.
func (s *Sync) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if s.processor == nil {
		return errors.Join(ErrExternalProcessor, ErrProcessorNotConfigured)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "billing processor call failed",
			logger.Component("billing"), slog.String("op", op), logger.Error(err))
		return errors.Join(ErrExternalProcessor, fmt.Errorf("%s: %w", op, err))
	}
	return nil
}

func (s *Sync) lockTenant(ctx context.Context, id uuid.UUID) (lock.Unlock, error) {
	unlock, err := s.locker.Lock(ctx, "billing:"+id.String())
	if err != nil {
		return nil, fmt.Errorf("acquire billing lock: %w", err)
	}
	return unlock, nil
}

// syncTier applies the tier sold under priceRef when the subscription grants
// it. Unknown price refs leave the tier alone.
func (s *Sync) syncTier(ctx context.Context, tenants tenant.Store, t *tenant.Tenant, status tenant.SubscriptionStatus, priceRef string) error {
	if !grantsTier(status) {
		return nil
	}
	p, ok := s.policies.ByPriceRef(priceRef)
	if !ok || p.Tier == t.Tier {
		return nil
	}
	return tenants.UpdateTier(ctx, t.ID, p.Tier, p.Quota)
}

func applySubscription(b *tenant.BillingRef, sub Subscription) {
	if sub.ID != "" {
		b.SubscriptionID = sub.ID
	}
	if sub.Status != tenant.StatusNone {
		b.Status = sub.Status
	}
	if !sub.PeriodStart.IsZero() {
		b.PeriodStart = sub.PeriodStart
	}
	if !sub.PeriodEnd.IsZero() {
		b.PeriodEnd = sub.PeriodEnd
	}
}

// grantsTier reports whether a subscription in this status entitles the
// tenant to its paid tier.
func grantsTier(s tenant.SubscriptionStatus) bool {
	switch s {
	case tenant.StatusActive, tenant.StatusTrialing, tenant.StatusPastDue:
		return true
	}
	return false
}
