package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

// ProviderStripe names Stripe in ledger entries and routes.
const ProviderStripe = "stripe"

// StripeWebhookParser verifies the Stripe-Signature header and decodes
// invoice and subscription events.
type StripeWebhookParser struct {
	secret string
}

func NewStripeWebhookParser(secret string) *StripeWebhookParser {
	return &StripeWebhookParser{secret: secret}
}

func (p *StripeWebhookParser) Provider() string { return ProviderStripe }

func (p *StripeWebhookParser) Parse(_ context.Context, payload []byte, signature string) (Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}
	if event.Data == nil {
		return nil, errors.Join(ErrInvalidPayload, errors.New("event has no data"))
	}

	env := Envelope{
		ID:           event.ID,
		Provider:     ProviderStripe,
		ProviderType: string(event.Type),
		OccurredAt:   unixTime(event.Created),
	}

	switch event.Type {
	case "invoice.paid", "invoice.payment_succeeded":
		inv, err := decodeStripe[stripe.Invoice](event)
		if err != nil {
			return nil, err
		}
		env.Type = EventPaymentSucceeded
		fillInvoiceEnvelope(&env, inv)
		return PaymentSucceeded{Envelope: env, Payment: invoicePayment(inv, inv.AmountPaid)}, nil

	case "invoice.payment_failed":
		inv, err := decodeStripe[stripe.Invoice](event)
		if err != nil {
			return nil, err
		}
		env.Type = EventPaymentFailed
		fillInvoiceEnvelope(&env, inv)
		return PaymentFailed{Envelope: env, Payment: invoicePayment(inv, inv.AmountDue)}, nil

	case "customer.subscription.updated":
		sub, err := decodeStripe[stripe.Subscription](event)
		if err != nil {
			return nil, err
		}
		env.Type = EventSubscriptionUpdated
		s := fromStripeSubscription(sub)
		env.CustomerID = s.CustomerID
		env.TenantID = tenantFromMetadata(sub.Metadata)
		return SubscriptionUpdated{
			Envelope:          env,
			SubscriptionID:    s.ID,
			Status:            s.Status,
			PeriodStart:       s.PeriodStart,
			PeriodEnd:         s.PeriodEnd,
			CancelAtPeriodEnd: s.CancelAtPeriodEnd,
			PriceRef:          s.PriceRef,
		}, nil

	case "customer.subscription.deleted":
		sub, err := decodeStripe[stripe.Subscription](event)
		if err != nil {
			return nil, err
		}
		env.Type = EventSubscriptionDeleted
		if sub.Customer != nil {
			env.CustomerID = sub.Customer.ID
		}
		env.TenantID = tenantFromMetadata(sub.Metadata)
		return SubscriptionDeleted{Envelope: env, SubscriptionID: sub.ID}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, event.Type)
}

func decodeStripe[T any](event stripe.Event) (*T, error) {
	var v T
	if err := json.Unmarshal(event.Data.Raw, &v); err != nil {
		return nil, errors.Join(ErrInvalidPayload, fmt.Errorf("decode %s: %w", event.Type, err))
	}
	return &v, nil
}

func fillInvoiceEnvelope(env *Envelope, inv *stripe.Invoice) {
	if inv.Customer != nil {
		env.CustomerID = inv.Customer.ID
	}
	env.TenantID = tenantFromMetadata(inv.Metadata)
	if inv.Subscription != nil && env.TenantID == uuid.Nil {
		env.TenantID = tenantFromMetadata(inv.Subscription.Metadata)
	}
}

func invoicePayment(inv *stripe.Invoice, amount int64) Payment {
	p := Payment{Amount: amount, Currency: string(inv.Currency)}
	if inv.Subscription != nil {
		p.SubscriptionID = inv.Subscription.ID
	}
	return p
}
