package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/tenant"
)

// Status tells whether an event changed tenant state.
type Status string

const (
	StatusApplied Status = "applied"
	StatusIgnored Status = "ignored"
)

// Entry is one recorded billing event.
type Entry struct {
	ID              uuid.UUID `json:"id"`
	TenantID        uuid.UUID `json:"tenant_id"` // uuid.Nil when the tenant could not be resolved
	ExternalEventID string    `json:"external_event_id"`
	Provider        string    `json:"provider"`
	EventType       string    `json:"event_type"`
	Amount          int64     `json:"amount"` // minor currency units
	Currency        string    `json:"currency,omitempty"`
	Status          Status    `json:"status"`
	Reason          string    `json:"reason,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
	ReceivedAt      time.Time `json:"received_at"`
}

// Validate checks the fields every entry must carry.
func (e Entry) Validate() error {
	if e.ExternalEventID == "" {
		return errors.Join(ErrInvalidEntry, errors.New("external event id is required"))
	}
	if e.EventType == "" {
		return errors.Join(ErrInvalidEntry, errors.New("event type is required"))
	}
	if e.Status != StatusApplied && e.Status != StatusIgnored {
		return errors.Join(ErrInvalidEntry, errors.New("unknown status "+string(e.Status)))
	}
	return nil
}

// Ledger is the append-only event store.
type Ledger interface {
	Exists(ctx context.Context, externalEventID string) (bool, error)
	// Append returns ErrDuplicateEvent if the external event id is already recorded.
	Append(ctx context.Context, e Entry) error
	// ListByTenant returns the tenant's entries ordered by ReceivedAt.
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Entry, error)
}

// TxFunc runs inside a unit of work with transaction-bound stores.
type TxFunc func(ctx context.Context, tenants tenant.Store, events Ledger) error

// UnitOfWork runs fn atomically: if fn returns an error, none of its writes
// are visible.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn TxFunc) error
}
