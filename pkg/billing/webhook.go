package billing

import (
	"context"

	"github.com/google/uuid"
)

// WebhookParser verifies and decodes a processor webhook delivery.
// Parse returns ErrInvalidSignature, ErrInvalidPayload or ErrUnsupportedEvent
// for deliveries it cannot turn into an Event.
type WebhookParser interface {
	Provider() string
	Parse(ctx context.Context, payload []byte, signature string) (Event, error)
}

// tenantFromMetadata reads the tenant id the engine stores on processor objects.
func tenantFromMetadata(md map[string]string) uuid.UUID {
	return tenantFromString(md["tenant_id"])
}

func tenantFromString(s string) uuid.UUID {
	if s == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}
