package tenant

import "strings"

// SubscriptionStatus is the processor-reported state of a subscription.
type SubscriptionStatus string

const (
	StatusNone              SubscriptionStatus = ""
	StatusIncomplete        SubscriptionStatus = "incomplete"
	StatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	StatusTrialing          SubscriptionStatus = "trialing"
	StatusActive            SubscriptionStatus = "active"
	StatusPastDue           SubscriptionStatus = "past_due"
	StatusPaused            SubscriptionStatus = "paused"
	StatusCanceled          SubscriptionStatus = "canceled"
	StatusUnpaid            SubscriptionStatus = "unpaid"
)

// ParseStatus maps a processor status string onto a SubscriptionStatus.
// Both Stripe and Paddle spellings are accepted.
func ParseStatus(s string) SubscriptionStatus {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "cancelled":
		return StatusCanceled
	case "past-due":
		return StatusPastDue
	default:
		return SubscriptionStatus(v)
	}
}

// Valid reports whether s is a known status.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case StatusNone, StatusIncomplete, StatusIncompleteExpired, StatusTrialing,
		StatusActive, StatusPastDue, StatusPaused, StatusCanceled, StatusUnpaid:
		return true
	}
	return false
}
