package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"

	"github.com/dmitrymomot/meterkit/pkg/tenant"
)

// StripeProcessor implements Processor on the Stripe API.
type StripeProcessor struct {
	api *client.API
}

// StripeOption configures a StripeProcessor.
type StripeOption func(*stripeOptions)

type stripeOptions struct {
	backends *stripe.Backends
}

// WithStripeBackends overrides the Stripe API backends. Useful for testing
// against a local server.
func WithStripeBackends(b *stripe.Backends) StripeOption {
	return func(o *stripeOptions) {
		o.backends = b
	}
}

// NewStripeProcessor creates a processor using its own Stripe client, never
// the package-level global.
func NewStripeProcessor(cfg StripeConfig, opts ...StripeOption) (*StripeProcessor, error) {
	if cfg.SecretKey == "" {
		return nil, ErrProcessorNotConfigured
	}
	o := &stripeOptions{}
	for _, opt := range opts {
		opt(o)
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, o.backends)
	return &StripeProcessor{api: api}, nil
}

func (p *StripeProcessor) CreateCustomer(ctx context.Context, c CustomerParams) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(c.Email),
		Name:  stripe.String(c.Name),
	}
	params.Context = ctx
	params.AddMetadata("tenant_id", c.TenantID.String())
	params.SetIdempotencyKey("customer-" + c.TenantID.String())

	cust, err := p.api.Customers.New(params)
	if err != nil {
		return "", mapStripeError(err)
	}
	return cust.ID, nil
}

func (p *StripeProcessor) CreateSubscription(ctx context.Context, tenantID uuid.UUID, customerID, priceRef string) (Subscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceRef)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
	}
	params.Context = ctx
	params.AddMetadata("tenant_id", tenantID.String())
	params.AddExpand("latest_invoice.payment_intent")

	sub, err := p.api.Subscriptions.New(params)
	if err != nil {
		return Subscription{}, mapStripeError(err)
	}
	return fromStripeSubscription(sub), nil
}

func (p *StripeProcessor) UpdateSubscriptionPrice(ctx context.Context, subscriptionID, priceRef string) (Subscription, error) {
	get := &stripe.SubscriptionParams{}
	get.Context = ctx
	sub, err := p.api.Subscriptions.Get(subscriptionID, get)
	if err != nil {
		return Subscription{}, mapStripeError(err)
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return Subscription{}, fmt.Errorf("subscription %s has no items", subscriptionID)
	}

	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(sub.Items.Data[0].ID),
				Price: stripe.String(priceRef),
			},
		},
		ProrationBehavior: stripe.String("create_prorations"),
	}
	params.Context = ctx

	updated, err := p.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return Subscription{}, mapStripeError(err)
	}
	return fromStripeSubscription(updated), nil
}

func (p *StripeProcessor) CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) (Subscription, error) {
	var (
		sub *stripe.Subscription
		err error
	)
	if immediate {
		params := &stripe.SubscriptionCancelParams{}
		params.Context = ctx
		sub, err = p.api.Subscriptions.Cancel(subscriptionID, params)
	} else {
		params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
		params.Context = ctx
		sub, err = p.api.Subscriptions.Update(subscriptionID, params)
	}
	if err != nil {
		return Subscription{}, mapStripeError(err)
	}
	return fromStripeSubscription(sub), nil
}

func (p *StripeProcessor) GetSubscription(ctx context.Context, subscriptionID string) (Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := p.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return Subscription{}, mapStripeError(err)
	}
	return fromStripeSubscription(sub), nil
}

func fromStripeSubscription(sub *stripe.Subscription) Subscription {
	out := Subscription{
		ID:                sub.ID,
		Status:            tenant.ParseStatus(string(sub.Status)),
		PeriodStart:       unixTime(sub.CurrentPeriodStart),
		PeriodEnd:         unixTime(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		out.PriceRef = sub.Items.Data[0].Price.ID
	}
	if inv := sub.LatestInvoice; inv != nil && inv.PaymentIntent != nil && inv.PaymentIntent.ClientSecret != "" {
		secret := inv.PaymentIntent.ClientSecret
		out.ClientSecret = &secret
	}
	return out
}

// mapStripeError keeps stripe types out of callers while preserving the
// message for logs.
func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return fmt.Errorf("stripe %s (status %d, code %s): %w", stripeErr.Type, stripeErr.HTTPStatusCode, stripeErr.Code, err)
	}
	return fmt.Errorf("stripe: %w", err)
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
