package memstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/pkg/ledger"
	"github.com/dmitrymomot/meterkit/pkg/memstore"
	"github.com/dmitrymomot/meterkit/pkg/tenant"
	"github.com/dmitrymomot/meterkit/pkg/tier"
)

func seed(t *testing.T) (*memstore.Store, tenant.Tenant) {
	t.Helper()
	s := memstore.New()
	tn := tenant.Tenant{
		ID:      uuid.New(),
		Name:    "Acme",
		Email:   "billing@acme.test",
		Tier:    tier.Growth,
		Billing: tenant.BillingRef{CustomerID: "cus_1"},
	}
	s.Put(tn)
	return s, tn
}

func TestStore_Get(t *testing.T) {
	t.Parallel()
	s, tn := seed(t)
	ctx := context.Background()

	got, err := s.Get(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, tn, *got)

	_, err = s.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)

	byCustomer, err := s.FindByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, tn.ID, byCustomer.ID)

	_, err = s.FindByCustomerID(ctx, "")
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
}

func TestStore_PartialUpdates(t *testing.T) {
	t.Parallel()
	s, tn := seed(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 100 {
			assert.NoError(t, s.UpdateUsage(ctx, tn.ID, tenant.Usage{StorageBytes: int64(i)}))
		}
	}()
	go func() {
		defer wg.Done()
		for range 100 {
			assert.NoError(t, s.UpdateBilling(ctx, tn.ID, tenant.BillingRef{CustomerID: "cus_1", Status: tenant.StatusActive}))
		}
	}()
	wg.Wait()

	got, err := s.Get(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(99), got.Usage.StorageBytes)
	assert.Equal(t, tenant.StatusActive, got.Billing.Status)
	assert.Equal(t, tier.Growth, got.Tier)

	require.NoError(t, s.UpdateTier(ctx, tn.ID, tier.Starter, tier.Quota{StorageBytes: 1}))
	got, err = s.Get(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, tier.Starter, got.Tier)
	assert.Equal(t, int64(99), got.Usage.StorageBytes)

	assert.ErrorIs(t, s.UpdateUsage(ctx, uuid.New(), tenant.Usage{}), tenant.ErrTenantNotFound)
}

func TestStore_Ledger(t *testing.T) {
	t.Parallel()
	s, tn := seed(t)
	ctx := context.Background()
	now := time.Now()

	e := ledger.Entry{TenantID: tn.ID, ExternalEventID: "evt_1", EventType: "invoice.paid", Status: ledger.StatusApplied, ReceivedAt: now}
	require.NoError(t, s.Append(ctx, e))
	assert.ErrorIs(t, s.Append(ctx, e), ledger.ErrDuplicateEvent)
	assert.ErrorIs(t, s.Append(ctx, ledger.Entry{}), ledger.ErrInvalidEntry)

	ok, err := s.Exists(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Append(ctx, ledger.Entry{TenantID: tn.ID, ExternalEventID: "evt_0", EventType: "x", Status: ledger.StatusIgnored, ReceivedAt: now.Add(-time.Minute)}))
	require.NoError(t, s.Append(ctx, ledger.Entry{TenantID: uuid.New(), ExternalEventID: "evt_2", EventType: "x", Status: ledger.StatusApplied}))

	list, err := s.ListByTenant(ctx, tn.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "evt_0", list[0].ExternalEventID)
	assert.NotEqual(t, uuid.Nil, list[1].ID)
}

func TestStore_WithinTx(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		t.Parallel()
		s, tn := seed(t)

		err := s.WithinTx(ctx, func(ctx context.Context, tenants tenant.Store, events ledger.Ledger) error {
			if err := tenants.UpdateBilling(ctx, tn.ID, tenant.BillingRef{Status: tenant.StatusActive}); err != nil {
				return err
			}
			return events.Append(ctx, ledger.Entry{ExternalEventID: "evt_1", EventType: "x", Status: ledger.StatusApplied})
		})
		require.NoError(t, err)

		got, _ := s.Get(ctx, tn.ID)
		assert.Equal(t, tenant.StatusActive, got.Billing.Status)
		assert.Len(t, s.Entries(), 1)
	})

	t.Run("rollback on error", func(t *testing.T) {
		t.Parallel()
		s, tn := seed(t)
		require.NoError(t, s.Append(ctx, ledger.Entry{ExternalEventID: "evt_1", EventType: "x", Status: ledger.StatusApplied}))

		err := s.WithinTx(ctx, func(ctx context.Context, tenants tenant.Store, events ledger.Ledger) error {
			if err := tenants.UpdateBilling(ctx, tn.ID, tenant.BillingRef{Status: tenant.StatusCanceled}); err != nil {
				return err
			}
			return events.Append(ctx, ledger.Entry{ExternalEventID: "evt_1", EventType: "x", Status: ledger.StatusApplied})
		})
		assert.True(t, errors.Is(err, ledger.ErrDuplicateEvent))

		got, _ := s.Get(ctx, tn.ID)
		assert.Equal(t, tn.Billing, got.Billing)
		assert.Len(t, s.Entries(), 1)
	})
}
