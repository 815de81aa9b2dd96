package billing

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/ledger"
	"github.com/dmitrymomot/meterkit/pkg/logger"
	"github.com/dmitrymomot/meterkit/pkg/tenant"
	"github.com/dmitrymomot/meterkit/pkg/tier"
)

const (
	reasonUnknownTenant = "unknown tenant"
	reasonStaleEvent    = "older than last applied event"
	reasonSuperseded    = "subscription superseded"
)

// IngestWebhookEvent applies a processor notification exactly once.
//
// An event already in the ledger is acknowledged without side effects. The
// tenant update and the ledger append run in one unit of work with the
// append last, so a failure leaves neither behind and the processor's
// redelivery is processed from scratch. Events for unknown tenants and
// events older than the last applied one are recorded as ignored.
func (s *Sync) IngestWebhookEvent(ctx context.Context, ev Event) error {
	if ev == nil {
		return ErrInvalidEvent
	}
	if err := ev.Validate(); err != nil {
		return errors.Join(ErrInvalidEvent, err)
	}
	meta := ev.Meta()
	log := s.log.With(logger.Component("billing"), logger.Provider(meta.Provider),
		logger.EventID(meta.ID), logger.EventType(string(meta.Type)))

	seen, err := s.store.Exists(ctx, meta.ID)
	if err != nil {
		return err
	}
	if seen {
		log.DebugContext(ctx, "duplicate billing event skipped")
		return nil
	}

	t, err := s.resolveTenant(ctx, meta)
	if errors.Is(err, tenant.ErrTenantNotFound) {
		log.WarnContext(ctx, "billing event for unknown tenant", slog.String("customer_id", meta.CustomerID))
		return s.record(ctx, log, s.entry(ev, uuid.Nil, ledger.StatusIgnored, reasonUnknownTenant))
	}
	if err != nil {
		return err
	}
	ctx = tenant.WithID(ctx, t.ID)

	unlock, err := s.lockTenant(ctx, t.ID)
	if err != nil {
		return err
	}
	defer unlock()

	err = s.store.WithinTx(ctx, func(ctx context.Context, tenants tenant.Store, events ledger.Ledger) error {
		cur, err := tenants.Get(ctx, t.ID)
		if err != nil {
			return err
		}

		// events without a timestamp cannot be ordered; last writer wins
		if !meta.OccurredAt.IsZero() && meta.OccurredAt.Before(cur.Billing.SyncedAt) {
			log.InfoContext(ctx, "stale billing event ignored",
				slog.Time("occurred_at", meta.OccurredAt), slog.Time("synced_at", cur.Billing.SyncedAt))
			return events.Append(ctx, s.entry(ev, cur.ID, ledger.StatusIgnored, reasonStaleEvent))
		}

		if superseded(cur, ev) {
			log.InfoContext(ctx, "billing event for replaced subscription ignored")
			return events.Append(ctx, s.entry(ev, cur.ID, ledger.StatusIgnored, reasonSuperseded))
		}

		if err := s.apply(ctx, tenants, cur, ev); err != nil {
			return err
		}
		return events.Append(ctx, s.entry(ev, cur.ID, ledger.StatusApplied, ""))
	})
	if errors.Is(err, ledger.ErrDuplicateEvent) {
		log.DebugContext(ctx, "billing event recorded concurrently")
		return nil
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to ingest billing event", logger.Error(err))
		return err
	}

	log.InfoContext(ctx, "billing event applied", logger.TenantID(t.ID))
	return nil
}

func (s *Sync) resolveTenant(ctx context.Context, meta Envelope) (*tenant.Tenant, error) {
	if meta.TenantID != uuid.Nil {
		t, err := s.store.Get(ctx, meta.TenantID)
		if err == nil || !errors.Is(err, tenant.ErrTenantNotFound) || meta.CustomerID == "" {
			return t, err
		}
	}
	return s.store.FindByCustomerID(ctx, meta.CustomerID)
}

// superseded reports whether ev deletes a subscription the tenant has
// already replaced with another one.
func superseded(t *tenant.Tenant, ev Event) bool {
	e, ok := ev.(SubscriptionDeleted)
	return ok && t.Billing.SubscriptionID != "" && t.Billing.SubscriptionID != e.SubscriptionID
}

// apply writes the state change carried by ev onto t.
func (s *Sync) apply(ctx context.Context, tenants tenant.Store, t *tenant.Tenant, ev Event) error {
	meta := ev.Meta()
	b := t.Billing
	if meta.OccurredAt.After(b.SyncedAt) {
		b.SyncedAt = meta.OccurredAt
	}
	if b.CustomerID == "" {
		b.CustomerID = meta.CustomerID
	}

	switch e := ev.(type) {
	case PaymentSucceeded:
		b.Status = tenant.StatusActive
		if b.SubscriptionID == "" {
			b.SubscriptionID = e.SubscriptionID
		}

	case PaymentFailed:
		b.Status = tenant.StatusPastDue
		if b.SubscriptionID == "" {
			b.SubscriptionID = e.SubscriptionID
		}

	case SubscriptionUpdated:
		b.SubscriptionID = e.SubscriptionID
		b.Status = e.Status
		b.PeriodStart = e.PeriodStart
		b.PeriodEnd = e.PeriodEnd
		b.CancelAtPeriodEnd = e.CancelAtPeriodEnd
		if err := s.syncTier(ctx, tenants, t, e.Status, e.PriceRef); err != nil {
			return err
		}

	case SubscriptionDeleted:
		b.SubscriptionID = e.SubscriptionID
		b.Status = tenant.StatusCanceled
		b.CancelAtPeriodEnd = false
		starter := s.policies.Resolve(tier.Starter)
		if err := tenants.UpdateTier(ctx, t.ID, starter.Tier, starter.Quota); err != nil {
			return err
		}
	}

	return tenants.UpdateBilling(ctx, t.ID, b)
}

func (s *Sync) entry(ev Event, tenantID uuid.UUID, status ledger.Status, reason string) ledger.Entry {
	meta := ev.Meta()
	amt, currency := amount(ev)
	return ledger.Entry{
		ID:              uuid.New(),
		TenantID:        tenantID,
		ExternalEventID: meta.ID,
		Provider:        meta.Provider,
		EventType:       string(meta.Type),
		Amount:          amt,
		Currency:        currency,
		Status:          status,
		Reason:          reason,
		OccurredAt:      meta.OccurredAt,
		ReceivedAt:      s.now().UTC(),
	}
}

// record appends an entry outside a tenant unit of work.
func (s *Sync) record(ctx context.Context, log *slog.Logger, e ledger.Entry) error {
	err := s.store.Append(ctx, e)
	if errors.Is(err, ledger.ErrDuplicateEvent) {
		log.DebugContext(ctx, "billing event recorded concurrently")
		return nil
	}
	return err
}
