package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/meterkit/pkg/ledger"
	"github.com/dmitrymomot/meterkit/pkg/pg"
	"github.com/dmitrymomot/meterkit/pkg/tenant"
	"github.com/dmitrymomot/meterkit/pkg/tier"
	"github.com/dmitrymomot/meterkit/pkg/usage"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a PostgreSQL tenant store and ledger.
type Store struct {
	pool *pgxpool.Pool
	db   querier
}

// New creates a Store on pool. Panics if pool is nil.
func New(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("pgstore: pool is required")
	}
	return &Store{pool: pool, db: pool}
}

// WithinTx runs fn in one database transaction.
func (s *Store) WithinTx(ctx context.Context, fn ledger.TxFunc) error {
	if s.pool == nil {
		// already inside a transaction
		return fn(ctx, s, s)
	}
	return pg.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		txStore := &Store{db: tx}
		return fn(ctx, txStore, txStore)
	})
}

const tenantColumns = `id, name, email, tier, quota_storage_bytes, quota_minutes,
	usage_storage_bytes, usage_transcription_minutes, usage_content_bytes, usage_transcription_bytes,
	usage_analysis_bytes, usage_metadata_bytes, usage_item_count, usage_computed_at,
	billing_customer_id, billing_subscription_id, billing_status, billing_period_start,
	billing_period_end, billing_cancel_at_period_end, billing_synced_at`

func scanTenant(row pgx.Row) (*tenant.Tenant, error) {
	var (
		t          tenant.Tenant
		tierName   string
		status     string
		customerID *string
		computedAt *time.Time
		start, end *time.Time
		syncedAt   *time.Time
		b          usage.Breakdown
	)
	err := row.Scan(
		&t.ID, &t.Name, &t.Email, &tierName, &t.Quota.StorageBytes, &t.Quota.Minutes,
		&t.Usage.StorageBytes, &t.Usage.TranscriptionMinutes, &b.Content, &b.Transcription,
		&b.Analysis, &b.Metadata, &t.Usage.ItemCount, &computedAt,
		&customerID, &t.Billing.SubscriptionID, &status, &start,
		&end, &t.Billing.CancelAtPeriodEnd, &syncedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Tier = tier.Parse(tierName)
	t.Usage.Breakdown = b
	t.Usage.ComputedAt = deref(computedAt)
	t.Billing.CustomerID = derefString(customerID)
	t.Billing.Status = tenant.ParseStatus(status)
	t.Billing.PeriodStart = deref(start)
	t.Billing.PeriodEnd = deref(end)
	t.Billing.SyncedAt = deref(syncedAt)
	return &t, nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	t, err := scanTenant(s.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
	if err != nil {
		return nil, tenantErr(err)
	}
	return t, nil
}

func (s *Store) FindByCustomerID(ctx context.Context, customerID string) (*tenant.Tenant, error) {
	if customerID == "" {
		return nil, tenant.ErrTenantNotFound
	}
	t, err := scanTenant(s.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE billing_customer_id = $1`, customerID))
	if err != nil {
		return nil, tenantErr(err)
	}
	return t, nil
}

func (s *Store) ListAll(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM tenants ORDER BY created_at, id`)
	if err != nil {
		return nil, tenantErr(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, tenantErr(err)
	}
	return ids, nil
}

func (s *Store) UpdateUsage(ctx context.Context, id uuid.UUID, u tenant.Usage) error {
	return s.execTenant(ctx, `UPDATE tenants SET
		usage_storage_bytes = $2, usage_transcription_minutes = $3, usage_content_bytes = $4,
		usage_transcription_bytes = $5, usage_analysis_bytes = $6, usage_metadata_bytes = $7,
		usage_item_count = $8, usage_computed_at = $9
		WHERE id = $1`,
		id, u.StorageBytes, u.TranscriptionMinutes, u.Breakdown.Content,
		u.Breakdown.Transcription, u.Breakdown.Analysis, u.Breakdown.Metadata,
		u.ItemCount, nullTime(u.ComputedAt),
	)
}

func (s *Store) UpdateBilling(ctx context.Context, id uuid.UUID, b tenant.BillingRef) error {
	return s.execTenant(ctx, `UPDATE tenants SET
		billing_customer_id = $2, billing_subscription_id = $3, billing_status = $4,
		billing_period_start = $5, billing_period_end = $6, billing_cancel_at_period_end = $7,
		billing_synced_at = $8
		WHERE id = $1`,
		id, nullString(b.CustomerID), b.SubscriptionID, string(b.Status),
		nullTime(b.PeriodStart), nullTime(b.PeriodEnd), b.CancelAtPeriodEnd, nullTime(b.SyncedAt),
	)
}

func (s *Store) UpdateTier(ctx context.Context, id uuid.UUID, t tier.Tier, q tier.Quota) error {
	return s.execTenant(ctx, `UPDATE tenants SET tier = $2, quota_storage_bytes = $3, quota_minutes = $4 WHERE id = $1`,
		id, string(t), q.StorageBytes, q.Minutes,
	)
}

func (s *Store) execTenant(ctx context.Context, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return tenantErr(err)
	}
	if tag.RowsAffected() == 0 {
		return tenant.ErrTenantNotFound
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, externalEventID string) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM billing_events WHERE external_event_id = $1)`, externalEventID).Scan(&ok)
	if err != nil {
		return false, errors.Join(ledger.ErrStore, err)
	}
	return ok, nil
}

func (s *Store) Append(ctx context.Context, e ledger.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now().UTC()
	}

	var tenantID *uuid.UUID
	if e.TenantID != uuid.Nil {
		tenantID = &e.TenantID
	}

	_, err := s.db.Exec(ctx, `INSERT INTO billing_events
		(id, tenant_id, external_event_id, provider, event_type, amount, currency, status, reason, occurred_at, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, tenantID, e.ExternalEventID, e.Provider, e.EventType, e.Amount, e.Currency,
		string(e.Status), e.Reason, nullTime(e.OccurredAt), e.ReceivedAt,
	)
	switch {
	case err == nil:
		return nil
	case pg.IsDuplicateKeyError(err):
		return ledger.ErrDuplicateEvent
	default:
		return errors.Join(ledger.ErrStore, err)
	}
}

func (s *Store) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]ledger.Entry, error) {
	rows, err := s.db.Query(ctx, `SELECT id, tenant_id, external_event_id, provider, event_type, amount,
		currency, status, reason, occurred_at, received_at
		FROM billing_events WHERE tenant_id = $1 ORDER BY received_at, external_event_id`, tenantID)
	if err != nil {
		return nil, errors.Join(ledger.ErrStore, err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.Entry, error) {
		var (
			e          ledger.Entry
			tid        *uuid.UUID
			status     string
			occurredAt *time.Time
		)
		err := row.Scan(&e.ID, &tid, &e.ExternalEventID, &e.Provider, &e.EventType, &e.Amount,
			&e.Currency, &status, &e.Reason, &occurredAt, &e.ReceivedAt)
		if tid != nil {
			e.TenantID = *tid
		}
		e.Status = ledger.Status(status)
		e.OccurredAt = deref(occurredAt)
		return e, err
	})
	if err != nil {
		return nil, errors.Join(ledger.ErrStore, err)
	}
	return entries, nil
}

func tenantErr(err error) error {
	if pg.IsNotFoundError(err) {
		return tenant.ErrTenantNotFound
	}
	return errors.Join(tenant.ErrStore, fmt.Errorf("postgres: %w", err))
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var (
	_ tenant.Store      = (*Store)(nil)
	_ ledger.Ledger     = (*Store)(nil)
	_ ledger.UnitOfWork = (*Store)(nil)
)
