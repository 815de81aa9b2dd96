package billing_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/pkg/billing"
	"github.com/dmitrymomot/meterkit/pkg/ledger"
	"github.com/dmitrymomot/meterkit/pkg/memstore"
	"github.com/dmitrymomot/meterkit/pkg/tenant"
	"github.com/dmitrymomot/meterkit/pkg/tier"
)

func envelope(id string, typ billing.EventType, at time.Time) billing.Envelope {
	return billing.Envelope{ID: id, Provider: billing.ProviderStripe, Type: typ, OccurredAt: at, CustomerID: "cus_1"}
}

func TestIngestWebhookEvent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	at := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)

	t.Run("duplicate delivery is applied once", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		b := activeBilling()
		b.Status = tenant.StatusPastDue
		id := seedTenant(store, tier.Growth, b)
		s := newSync(nil, store)

		ev := billing.PaymentSucceeded{
			Envelope: envelope("evt_paid", billing.EventPaymentSucceeded, at),
			Payment:  billing.Payment{SubscriptionID: "sub_1", Amount: 2900, Currency: "usd"},
		}
		require.NoError(t, s.IngestWebhookEvent(ctx, ev))
		first, err := store.Get(ctx, id)
		require.NoError(t, err)

		require.NoError(t, s.IngestWebhookEvent(ctx, ev))
		second, err := store.Get(ctx, id)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, tenant.StatusActive, second.Billing.Status)

		entries, err := store.ListByTenant(ctx, id)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "evt_paid", entries[0].ExternalEventID)
		assert.Equal(t, ledger.StatusApplied, entries[0].Status)
		assert.Equal(t, int64(2900), entries[0].Amount)
		assert.Equal(t, receivedAt, entries[0].ReceivedAt)
	})

	t.Run("concurrent duplicates", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		seedTenant(store, tier.Growth, activeBilling())
		s := newSync(nil, store)
		ev := billing.PaymentFailed{Envelope: envelope("evt_failed", billing.EventPaymentFailed, at)}

		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = s.IngestWebhookEvent(ctx, ev)
			}()
		}
		wg.Wait()

		for _, err := range errs {
			assert.NoError(t, err)
		}
		assert.Len(t, store.Entries(), 1)
	})

	t.Run("payment failed marks past due", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		id := seedTenant(store, tier.Growth, activeBilling())

		ev := billing.PaymentFailed{Envelope: envelope("evt_f", billing.EventPaymentFailed, at)}
		require.NoError(t, newSync(nil, store).IngestWebhookEvent(ctx, ev))

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, tenant.StatusPastDue, got.Billing.Status)
		assert.Equal(t, at, got.Billing.SyncedAt)
	})

	t.Run("subscription updated overwrites state and tier", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		id := seedTenant(store, tier.Growth, activeBilling())
		next := periodEnd.AddDate(0, 1, 0)

		ev := billing.SubscriptionUpdated{
			Envelope:          envelope("evt_u", billing.EventSubscriptionUpdated, at),
			SubscriptionID:    "sub_1",
			Status:            tenant.StatusTrialing,
			PeriodStart:       periodEnd,
			PeriodEnd:         next,
			CancelAtPeriodEnd: true,
			PriceRef:          "price_professional",
		}
		require.NoError(t, newSync(nil, store).IngestWebhookEvent(ctx, ev))

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, tenant.StatusTrialing, got.Billing.Status)
		assert.Equal(t, periodEnd, got.Billing.PeriodStart)
		assert.Equal(t, next, got.Billing.PeriodEnd)
		assert.True(t, got.Billing.CancelAtPeriodEnd)
		assert.Equal(t, tier.Professional, got.Tier)
	})

	t.Run("subscription deleted downgrades to starter", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		id := seedTenant(store, tier.Professional, activeBilling())

		ev := billing.SubscriptionDeleted{Envelope: envelope("evt_d", billing.EventSubscriptionDeleted, at), SubscriptionID: "sub_1"}
		require.NoError(t, newSync(nil, store).IngestWebhookEvent(ctx, ev))

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		starter := policies().Resolve(tier.Starter)
		assert.Equal(t, tenant.StatusCanceled, got.Billing.Status)
		assert.Equal(t, tier.Starter, got.Tier)
		assert.Equal(t, starter.Quota, got.Quota)
	})

	t.Run("deletion of replaced subscription is ignored", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		id := seedTenant(store, tier.Growth, activeBilling())

		ev := billing.SubscriptionDeleted{Envelope: envelope("evt_old", billing.EventSubscriptionDeleted, at), SubscriptionID: "sub_0"}
		require.NoError(t, newSync(nil, store).IngestWebhookEvent(ctx, ev))

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, tier.Growth, got.Tier)
		entries, err := store.ListByTenant(ctx, id)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, ledger.StatusIgnored, entries[0].Status)
	})

	t.Run("out of order events", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		id := seedTenant(store, tier.Growth, activeBilling())
		s := newSync(nil, store)

		later := billing.PaymentFailed{Envelope: envelope("evt_late", billing.EventPaymentFailed, at.Add(time.Hour))}
		earlier := billing.PaymentSucceeded{Envelope: envelope("evt_early", billing.EventPaymentSucceeded, at)}

		require.NoError(t, s.IngestWebhookEvent(ctx, later))
		require.NoError(t, s.IngestWebhookEvent(ctx, earlier))

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, tenant.StatusPastDue, got.Billing.Status)
		assert.Equal(t, at.Add(time.Hour), got.Billing.SyncedAt)

		entries, err := store.ListByTenant(ctx, id)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		statuses := map[string]ledger.Status{}
		for _, e := range entries {
			statuses[e.ExternalEventID] = e.Status
		}
		assert.Equal(t, ledger.StatusApplied, statuses["evt_late"])
		assert.Equal(t, ledger.StatusIgnored, statuses["evt_early"])
	})

	t.Run("event without timestamp is applied", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		b := activeBilling()
		b.SyncedAt = at
		id := seedTenant(store, tier.Growth, b)

		ev := billing.SubscriptionDeleted{
			Envelope:       envelope("evt_untimed", billing.EventSubscriptionDeleted, time.Time{}),
			SubscriptionID: "sub_1",
		}
		require.NoError(t, newSync(nil, store).IngestWebhookEvent(ctx, ev))

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, tier.Starter, got.Tier)
		assert.Equal(t, tenant.StatusCanceled, got.Billing.Status)
		assert.Equal(t, at, got.Billing.SyncedAt)

		entries, err := store.ListByTenant(ctx, id)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, ledger.StatusApplied, entries[0].Status)
	})

	t.Run("unknown tenant is recorded as ignored", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		ev := billing.PaymentSucceeded{Envelope: billing.Envelope{
			ID: "evt_x", Provider: billing.ProviderPaddle, Type: billing.EventPaymentSucceeded, OccurredAt: at, CustomerID: "ctm_unknown",
		}}

		require.NoError(t, newSync(nil, store).IngestWebhookEvent(ctx, ev))
		entries := store.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, uuid.Nil, entries[0].TenantID)
		assert.Equal(t, ledger.StatusIgnored, entries[0].Status)
	})

	t.Run("resolves by tenant id", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		id := seedTenant(store, tier.Growth, tenant.BillingRef{})
		ev := billing.PaymentSucceeded{Envelope: billing.Envelope{
			ID: "evt_t", Provider: billing.ProviderStripe, Type: billing.EventPaymentSucceeded, OccurredAt: at,
			TenantID: id, CustomerID: "cus_77",
		}, Payment: billing.Payment{SubscriptionID: "sub_77"}}

		require.NoError(t, newSync(nil, store).IngestWebhookEvent(ctx, ev))
		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "cus_77", got.Billing.CustomerID)
		assert.Equal(t, "sub_77", got.Billing.SubscriptionID)
		assert.Equal(t, tenant.StatusActive, got.Billing.Status)
	})

	t.Run("invalid event", func(t *testing.T) {
		t.Parallel()
		s := newSync(nil, memstore.New())
		assert.ErrorIs(t, s.IngestWebhookEvent(ctx, nil), billing.ErrInvalidEvent)
		assert.ErrorIs(t, s.IngestWebhookEvent(ctx, billing.SubscriptionDeleted{Envelope: envelope("evt", billing.EventSubscriptionDeleted, at)}), billing.ErrInvalidEvent)
	})
}
