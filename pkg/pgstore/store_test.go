package pgstore_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/pkg/ledger"
	"github.com/dmitrymomot/meterkit/pkg/pg"
	"github.com/dmitrymomot/meterkit/pkg/pgstore"
	"github.com/dmitrymomot/meterkit/pkg/tenant"
	"github.com/dmitrymomot/meterkit/pkg/tier"
)

// setup connects to METER_TEST_PG_URL and applies the embedded migrations.
func setup(t *testing.T) (*pgxpool.Pool, *pgstore.Store) {
	t.Helper()

	url := os.Getenv("METER_TEST_PG_URL")
	if url == "" || testing.Short() {
		t.Skip("METER_TEST_PG_URL not set")
	}

	ctx := context.Background()
	pool, err := pg.Connect(ctx, pg.Config{ConnectionString: url, MaxOpenConns: 4, RetryAttempts: 1, RetryInterval: time.Second})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pg.MigrateFS(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, "meter_test_migrations", slog.Default()))
	return pool, pgstore.New(pool)
}

func insertTenant(t *testing.T, pool *pgxpool.Pool, customerID string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO tenants (id, name, email, tier, billing_customer_id) VALUES ($1, 'Acme', 'ops@acme.test', 'growth', $2)`,
		id, customerID)
	require.NoError(t, err)
	return id
}

func TestStore_Tenants(t *testing.T) {
	pool, store := setup(t)
	ctx := context.Background()
	customerID := "cus_" + uuid.NewString()
	id := insertTenant(t, pool, customerID)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, tier.Growth, got.Tier)
	assert.Equal(t, customerID, got.Billing.CustomerID)

	_, err = store.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)

	byCustomer, err := store.FindByCustomerID(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, id, byCustomer.ID)

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, store.UpdateUsage(ctx, id, tenant.Usage{StorageBytes: 2048, ItemCount: 2, ComputedAt: now}))
	require.NoError(t, store.UpdateBilling(ctx, id, tenant.BillingRef{
		CustomerID: customerID, SubscriptionID: "sub_1", Status: tenant.StatusActive, PeriodStart: now,
	}))
	require.NoError(t, store.UpdateTier(ctx, id, tier.Professional, tier.Quota{StorageBytes: 100, Minutes: 10}))

	got, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2048), got.Usage.StorageBytes)
	assert.Equal(t, now, got.Usage.ComputedAt)
	assert.Equal(t, tenant.StatusActive, got.Billing.Status)
	assert.Equal(t, tier.Professional, got.Tier)
	assert.Equal(t, int64(100), got.Quota.StorageBytes)

	ids, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, id)

	assert.ErrorIs(t, store.UpdateUsage(ctx, uuid.New(), tenant.Usage{}), tenant.ErrTenantNotFound)
}

func TestStore_LedgerWithinTx(t *testing.T) {
	pool, store := setup(t)
	ctx := context.Background()
	id := insertTenant(t, pool, "cus_"+uuid.NewString())
	eventID := "evt_" + uuid.NewString()

	entry := ledger.Entry{TenantID: id, ExternalEventID: eventID, Provider: "stripe", EventType: "invoice.paid", Status: ledger.StatusApplied}

	err := store.WithinTx(ctx, func(ctx context.Context, tenants tenant.Store, events ledger.Ledger) error {
		if err := tenants.UpdateBilling(ctx, id, tenant.BillingRef{Status: tenant.StatusActive}); err != nil {
			return err
		}
		return events.Append(ctx, entry)
	})
	require.NoError(t, err)

	err = store.WithinTx(ctx, func(ctx context.Context, tenants tenant.Store, events ledger.Ledger) error {
		if err := tenants.UpdateBilling(ctx, id, tenant.BillingRef{Status: tenant.StatusCanceled}); err != nil {
			return err
		}
		return events.Append(ctx, entry)
	})
	assert.ErrorIs(t, err, ledger.ErrDuplicateEvent)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, tenant.StatusActive, got.Billing.Status, "rolled back")

	ok, err := store.Exists(ctx, eventID)
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := store.ListByTenant(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.StatusApplied, entries[0].Status)
}
