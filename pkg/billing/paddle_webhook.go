package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"

	"github.com/dmitrymomot/meterkit/pkg/tenant"
)

// ProviderPaddle names Paddle in ledger entries and routes.
const ProviderPaddle = "paddle"

// PaddleSignatureHeader carries the Paddle webhook signature.
const PaddleSignatureHeader = "Paddle-Signature"

// PaddleWebhookParser verifies Paddle-Signature with the Paddle SDK and
// decodes transaction and subscription notifications.
type PaddleWebhookParser struct {
	verifier *paddle.WebhookVerifier
}

func NewPaddleWebhookParser(secret string) *PaddleWebhookParser {
	return &PaddleWebhookParser{verifier: paddle.NewWebhookVerifier(secret)}
}

func (p *PaddleWebhookParser) Provider() string { return ProviderPaddle }

type paddleNotification struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type paddleCustomData struct {
	TenantID string `json:"tenant_id"`
}

type paddleTransaction struct {
	ID             string            `json:"id"`
	CustomerID     string            `json:"customer_id"`
	SubscriptionID string            `json:"subscription_id"`
	CurrencyCode   string            `json:"currency_code"`
	CustomData     *paddleCustomData `json:"custom_data"`
	Details        struct {
		Totals struct {
			GrandTotal string `json:"grand_total"`
		} `json:"totals"`
	} `json:"details"`
}

type paddleSubscription struct {
	ID                   string            `json:"id"`
	Status               string            `json:"status"`
	CustomerID           string            `json:"customer_id"`
	CustomData           *paddleCustomData `json:"custom_data"`
	CurrentBillingPeriod *struct {
		StartsAt time.Time `json:"starts_at"`
		EndsAt   time.Time `json:"ends_at"`
	} `json:"current_billing_period"`
	ScheduledChange *struct {
		Action string `json:"action"`
	} `json:"scheduled_change"`
	Items []struct {
		Price struct {
			ID string `json:"id"`
		} `json:"price"`
	} `json:"items"`
}

func (p *PaddleWebhookParser) Parse(ctx context.Context, payload []byte, signature string) (Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhooks/paddle", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build verification request: %w", err)
	}
	req.Header.Set(PaddleSignatureHeader, signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}
	if !valid {
		return nil, ErrInvalidSignature
	}

	var n paddleNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}

	env := Envelope{
		ID:           n.EventID,
		Provider:     ProviderPaddle,
		ProviderType: n.EventType,
		OccurredAt:   n.OccurredAt.UTC(),
	}

	switch n.EventType {
	case "transaction.completed", "transaction.paid":
		txn, err := decodePaddle[paddleTransaction](n)
		if err != nil {
			return nil, err
		}
		env.Type = EventPaymentSucceeded
		pay, err := txn.fill(&env)
		if err != nil {
			return nil, err
		}
		return PaymentSucceeded{Envelope: env, Payment: pay}, nil

	case "transaction.payment_failed":
		txn, err := decodePaddle[paddleTransaction](n)
		if err != nil {
			return nil, err
		}
		env.Type = EventPaymentFailed
		pay, err := txn.fill(&env)
		if err != nil {
			return nil, err
		}
		return PaymentFailed{Envelope: env, Payment: pay}, nil

	case "subscription.updated":
		sub, err := decodePaddle[paddleSubscription](n)
		if err != nil {
			return nil, err
		}
		env.Type = EventSubscriptionUpdated
		sub.fill(&env)
		ev := SubscriptionUpdated{
			Envelope:          env,
			SubscriptionID:    sub.ID,
			Status:            tenant.ParseStatus(sub.Status),
			CancelAtPeriodEnd: sub.ScheduledChange != nil && sub.ScheduledChange.Action == "cancel",
		}
		if sub.CurrentBillingPeriod != nil {
			ev.PeriodStart = sub.CurrentBillingPeriod.StartsAt.UTC()
			ev.PeriodEnd = sub.CurrentBillingPeriod.EndsAt.UTC()
		}
		if len(sub.Items) > 0 {
			ev.PriceRef = sub.Items[0].Price.ID
		}
		return ev, nil

	case "subscription.canceled":
		sub, err := decodePaddle[paddleSubscription](n)
		if err != nil {
			return nil, err
		}
		env.Type = EventSubscriptionDeleted
		sub.fill(&env)
		return SubscriptionDeleted{Envelope: env, SubscriptionID: sub.ID}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, n.EventType)
}

func decodePaddle[T any](n paddleNotification) (*T, error) {
	var v T
	if err := json.Unmarshal(n.Data, &v); err != nil {
		return nil, errors.Join(ErrInvalidPayload, fmt.Errorf("decode %s: %w", n.EventType, err))
	}
	return &v, nil
}

func (t *paddleTransaction) fill(env *Envelope) (Payment, error) {
	env.CustomerID = t.CustomerID
	if t.CustomData != nil {
		env.TenantID = tenantFromString(t.CustomData.TenantID)
	}

	pay := Payment{SubscriptionID: t.SubscriptionID, Currency: t.CurrencyCode}
	if total := t.Details.Totals.GrandTotal; total != "" {
		amount, err := strconv.ParseInt(total, 10, 64)
		if err != nil {
			return Payment{}, errors.Join(ErrInvalidPayload, fmt.Errorf("grand total %q: %w", total, err))
		}
		pay.Amount = amount
	}
	return pay, nil
}

func (s *paddleSubscription) fill(env *Envelope) {
	env.CustomerID = s.CustomerID
	if s.CustomData != nil {
		env.TenantID = tenantFromString(s.CustomData.TenantID)
	}
}
