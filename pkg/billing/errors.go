package billing

import "errors"

var (
	ErrExternalProcessor      = errors.New("billing processor request failed")
	ErrProcessorNotConfigured = errors.New("billing processor is not configured")
	ErrNoActiveSubscription   = errors.New("tenant has no active subscription")
	ErrSubscriptionExists     = errors.New("tenant already has an active subscription")
	ErrTierNotPurchasable     = errors.New("tier cannot be purchased")

	// Webhook errors
	ErrInvalidEvent     = errors.New("invalid billing event")
	ErrUnsupportedEvent = errors.New("unsupported billing event type")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
)
