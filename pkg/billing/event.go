package billing

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/tenant"
)

// EventType is the processor-independent kind of a billing event.
type EventType string

const (
	EventPaymentSucceeded    EventType = "payment_succeeded"
	EventPaymentFailed       EventType = "payment_failed"
	EventSubscriptionUpdated EventType = "subscription_updated"
	EventSubscriptionDeleted EventType = "subscription_deleted"
)

// Event is a parsed billing notification. The set of implementations is
// closed: PaymentSucceeded, PaymentFailed, SubscriptionUpdated and
// SubscriptionDeleted.
type Event interface {
	Meta() Envelope
	Validate() error
	isEvent()
}

// Envelope carries the fields shared by every event.
type Envelope struct {
	ID           string    // processor event id, the idempotency key
	Provider     string    // "stripe", "paddle"
	Type         EventType // normalized type
	ProviderType string    // raw processor type, e.g. "invoice.paid"
	OccurredAt   time.Time
	TenantID     uuid.UUID // from processor metadata, may be uuid.Nil
	CustomerID   string    // processor customer id, may be empty
}

func (e Envelope) Meta() Envelope { return e }

func (e Envelope) validate(want EventType) error {
	var errs []error
	if e.ID == "" {
		errs = append(errs, errors.New("event id is required"))
	}
	if e.Type != want {
		errs = append(errs, fmt.Errorf("event type %q does not match %q", e.Type, want))
	}
	if e.TenantID == uuid.Nil && e.CustomerID == "" {
		errs = append(errs, errors.New("tenant id or customer id is required"))
	}
	return errors.Join(errs...)
}

// Payment fields shared by the payment events. Amount is in minor units.
type Payment struct {
	SubscriptionID string
	Amount         int64
	Currency       string
}

type PaymentSucceeded struct {
	Envelope
	Payment
}

func (PaymentSucceeded) isEvent() {}

func (e PaymentSucceeded) Validate() error {
	return e.Envelope.validate(EventPaymentSucceeded)
}

type PaymentFailed struct {
	Envelope
	Payment
}

func (PaymentFailed) isEvent() {}

func (e PaymentFailed) Validate() error {
	return e.Envelope.validate(EventPaymentFailed)
}

// SubscriptionUpdated carries the processor's authoritative subscription state.
type SubscriptionUpdated struct {
	Envelope
	SubscriptionID    string
	Status            tenant.SubscriptionStatus
	PeriodStart       time.Time
	PeriodEnd         time.Time
	CancelAtPeriodEnd bool
	PriceRef          string
}

func (SubscriptionUpdated) isEvent() {}

func (e SubscriptionUpdated) Validate() error {
	errs := []error{e.Envelope.validate(EventSubscriptionUpdated)}
	if e.SubscriptionID == "" {
		errs = append(errs, errors.New("subscription id is required"))
	}
	if e.Status == tenant.StatusNone || !e.Status.Valid() {
		errs = append(errs, fmt.Errorf("unknown subscription status %q", e.Status))
	}
	if !e.PeriodStart.IsZero() && !e.PeriodEnd.IsZero() && e.PeriodEnd.Before(e.PeriodStart) {
		errs = append(errs, errors.New("period end is before period start"))
	}
	return errors.Join(errs...)
}

type SubscriptionDeleted struct {
	Envelope
	SubscriptionID string
}

func (SubscriptionDeleted) isEvent() {}

func (e SubscriptionDeleted) Validate() error {
	errs := []error{e.Envelope.validate(EventSubscriptionDeleted)}
	if e.SubscriptionID == "" {
		errs = append(errs, errors.New("subscription id is required"))
	}
	return errors.Join(errs...)
}

// amount returns the payment amount and currency carried by ev, if any.
func amount(ev Event) (int64, string) {
	switch e := ev.(type) {
	case PaymentSucceeded:
		return e.Amount, e.Currency
	case PaymentFailed:
		return e.Amount, e.Currency
	}
	return 0, ""
}
