package memstore

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/ledger"
	"github.com/dmitrymomot/meterkit/pkg/tenant"
	"github.com/dmitrymomot/meterkit/pkg/tier"
)

// view implements the store contracts over a state without locking.
// Callers hold the Store lock.
type view struct {
	st *state
}

func (v view) Get(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, ok := v.st.tenants[id]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	return &t, nil
}

func (v view) FindByCustomerID(ctx context.Context, customerID string) (*tenant.Tenant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if customerID == "" {
		return nil, tenant.ErrTenantNotFound
	}
	for _, id := range v.st.order {
		if t := v.st.tenants[id]; t.Billing.CustomerID == customerID {
			return &t, nil
		}
	}
	return nil, tenant.ErrTenantNotFound
}

func (v view) ListAll(ctx context.Context) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(v.st.order), nil
}

func (v view) update(ctx context.Context, id uuid.UUID, fn func(*tenant.Tenant)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, ok := v.st.tenants[id]
	if !ok {
		return tenant.ErrTenantNotFound
	}
	fn(&t)
	v.st.tenants[id] = t
	return nil
}

func (v view) UpdateUsage(ctx context.Context, id uuid.UUID, u tenant.Usage) error {
	return v.update(ctx, id, func(t *tenant.Tenant) { t.Usage = u })
}

func (v view) UpdateBilling(ctx context.Context, id uuid.UUID, b tenant.BillingRef) error {
	return v.update(ctx, id, func(t *tenant.Tenant) { t.Billing = b })
}

func (v view) UpdateTier(ctx context.Context, id uuid.UUID, tr tier.Tier, q tier.Quota) error {
	return v.update(ctx, id, func(t *tenant.Tenant) {
		t.Tier = tr
		t.Quota = q
	})
}

func (v view) Exists(ctx context.Context, externalEventID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, ok := v.st.events[externalEventID]
	return ok, nil
}

func (v view) Append(ctx context.Context, e ledger.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if _, dup := v.st.events[e.ExternalEventID]; dup {
		return ledger.ErrDuplicateEvent
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	v.st.events[e.ExternalEventID] = e
	return nil
}

func (v view) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]ledger.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return sortedEntries(v.st.events, func(e ledger.Entry) bool { return e.TenantID == tenantID }), nil
}
