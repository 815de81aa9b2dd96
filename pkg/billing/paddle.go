package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/PaddleHQ/paddle-go-sdk/v4/pkg/paddleerr"
	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/tenant"
)

// PaddleProcessor implements Processor on the Paddle Billing API.
//
// Paddle opens subscriptions through a checkout transaction rather than a
// direct API call. CreateSubscription therefore returns an incomplete
// subscription without an id; ClientSecret carries the transaction id for
// Paddle.js checkout, and the subscription id arrives with the first
// transaction or subscription webhook.
type PaddleProcessor struct {
	sdk *paddle.SDK
}

// PaddleOption configures a PaddleProcessor.
type PaddleOption func(*paddleOptions)

type paddleOptions struct {
	sdkOpts []paddle.Option
}

// WithPaddleBaseURL points the processor at another API host.
func WithPaddleBaseURL(url string) PaddleOption {
	return func(o *paddleOptions) {
		o.sdkOpts = append(o.sdkOpts, paddle.WithBaseURL(url))
	}
}

// NewPaddleProcessor creates a processor for the configured environment
// ("production" or "sandbox").
func NewPaddleProcessor(cfg PaddleConfig, opts ...PaddleOption) (*PaddleProcessor, error) {
	if cfg.APIKey == "" {
		return nil, ErrProcessorNotConfigured
	}
	o := &paddleOptions{}
	for _, opt := range opts {
		opt(o)
	}

	var (
		sdk *paddle.SDK
		err error
	)
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		sdk, err = paddle.NewSandbox(cfg.APIKey, o.sdkOpts...)
	case "production", "":
		sdk, err = paddle.New(cfg.APIKey, o.sdkOpts...)
	default:
		return nil, fmt.Errorf("invalid paddle environment: %s", cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}
	return &PaddleProcessor{sdk: sdk}, nil
}

func (p *PaddleProcessor) CreateCustomer(ctx context.Context, c CustomerParams) (string, error) {
	req := &paddle.CreateCustomerRequest{
		Email:      c.Email,
		CustomData: paddle.CustomData{"tenant_id": c.TenantID.String()},
	}
	if c.Name != "" {
		req.Name = paddle.PtrTo(c.Name)
	}

	cust, err := p.sdk.CustomersClient.CreateCustomer(ctx, req)
	if err != nil {
		return "", mapPaddleError(err)
	}
	return cust.ID, nil
}

func (p *PaddleProcessor) CreateSubscription(ctx context.Context, tenantID uuid.UUID, customerID, priceRef string) (Subscription, error) {
	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  priceRef,
		Quantity: 1,
	})
	txn, err := p.sdk.TransactionsClient.CreateTransaction(ctx, &paddle.CreateTransactionRequest{
		Items:      []paddle.CreateTransactionItems{*item},
		CustomerID: paddle.PtrTo(customerID),
		CustomData: paddle.CustomData{"tenant_id": tenantID.String()},
	})
	if err != nil {
		return Subscription{}, mapPaddleError(err)
	}

	checkout := txn.ID
	return Subscription{
		CustomerID:   customerID,
		Status:       tenant.StatusIncomplete,
		PriceRef:     priceRef,
		ClientSecret: &checkout,
	}, nil
}

func (p *PaddleProcessor) UpdateSubscriptionPrice(ctx context.Context, subscriptionID, priceRef string) (Subscription, error) {
	item := paddle.NewUpdateSubscriptionItemsSubscriptionUpdateItemFromCatalog(&paddle.SubscriptionUpdateItemFromCatalog{
		PriceID:  priceRef,
		Quantity: 1,
	})
	sub, err := p.sdk.SubscriptionsClient.UpdateSubscription(ctx, &paddle.UpdateSubscriptionRequest{
		SubscriptionID:       subscriptionID,
		Items:                paddle.NewPatchField([]paddle.UpdateSubscriptionItems{*item}),
		ProrationBillingMode: paddle.NewPatchField(paddle.ProrationBillingModeProratedImmediately),
	})
	if err != nil {
		return Subscription{}, mapPaddleError(err)
	}
	return fromPaddleSubscription(sub)
}

func (p *PaddleProcessor) CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) (Subscription, error) {
	from := paddle.EffectiveFromNextBillingPeriod
	if immediate {
		from = paddle.EffectiveFromImmediately
	}
	sub, err := p.sdk.SubscriptionsClient.CancelSubscription(ctx, &paddle.CancelSubscriptionRequest{
		SubscriptionID: subscriptionID,
		EffectiveFrom:  paddle.PtrTo(from),
	})
	if err != nil {
		return Subscription{}, mapPaddleError(err)
	}
	return fromPaddleSubscription(sub)
}

func (p *PaddleProcessor) GetSubscription(ctx context.Context, subscriptionID string) (Subscription, error) {
	sub, err := p.sdk.SubscriptionsClient.GetSubscription(ctx, &paddle.GetSubscriptionRequest{SubscriptionID: subscriptionID})
	if err != nil {
		return Subscription{}, mapPaddleError(err)
	}
	return fromPaddleSubscription(sub)
}

func fromPaddleSubscription(sub *paddle.Subscription) (Subscription, error) {
	out := Subscription{
		ID:         sub.ID,
		CustomerID: sub.CustomerID,
		Status:     tenant.ParseStatus(string(sub.Status)),
	}
	if period := sub.CurrentBillingPeriod; period != nil {
		var err error
		if out.PeriodStart, err = parsePaddleTime(period.StartsAt); err != nil {
			return Subscription{}, err
		}
		if out.PeriodEnd, err = parsePaddleTime(period.EndsAt); err != nil {
			return Subscription{}, err
		}
	}
	if sc := sub.ScheduledChange; sc != nil && sc.Action == paddle.ScheduledChangeActionCancel {
		out.CancelAtPeriodEnd = true
	}
	if len(sub.Items) > 0 {
		out.PriceRef = sub.Items[0].Price.ID
	}
	return out, nil
}

func parsePaddleTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("paddle: invalid time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func mapPaddleError(err error) error {
	var apiErr *paddleerr.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("paddle %s (code %s): %w", apiErr.Type, apiErr.Code, err)
	}
	return fmt.Errorf("paddle: %w", err)
}
