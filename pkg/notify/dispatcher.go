package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/logger"
	"github.com/dmitrymomot/meterkit/pkg/tenant"
)

// TemplateKind names a notification template.
type TemplateKind string

const (
	TemplateUsageWarning TemplateKind = "usage_warning"
	TemplateUsageOverage TemplateKind = "usage_overage"
)

// Recipient is where a tenant's notifications go.
type Recipient struct {
	Ref  string // e-mail address
	Name string
}

// Dispatcher delivers one templated message.
type Dispatcher interface {
	Send(ctx context.Context, to Recipient, kind TemplateKind, v Violation) error
}

// RecipientResolver finds the recipient for a tenant.
type RecipientResolver interface {
	Resolve(ctx context.Context, tenantID uuid.UUID) (Recipient, error)
}

// RecipientFunc adapts a function to RecipientResolver.
type RecipientFunc func(ctx context.Context, tenantID uuid.UUID) (Recipient, error)

func (f RecipientFunc) Resolve(ctx context.Context, tenantID uuid.UUID) (Recipient, error) {
	return f(ctx, tenantID)
}

// TenantRecipients resolves recipients from the tenant's billing e-mail.
func TenantRecipients(store tenant.Store) RecipientResolver {
	return RecipientFunc(func(ctx context.Context, tenantID uuid.UUID) (Recipient, error) {
		t, err := store.Get(ctx, tenantID)
		if err != nil {
			return Recipient{}, err
		}
		if t.Email == "" {
			return Recipient{}, ErrNoRecipient
		}
		return Recipient{Ref: t.Email, Name: t.Name}, nil
	})
}

// LogDispatcher only logs messages. Useful in development and dry runs.
type LogDispatcher struct {
	log *slog.Logger
}

// NewLogDispatcher returns a LogDispatcher. A nil logger uses slog.Default.
func NewLogDispatcher(log *slog.Logger) *LogDispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Send(ctx context.Context, to Recipient, kind TemplateKind, v Violation) error {
	d.log.LogAttrs(ctx, slog.LevelInfo, "usage notification",
		logger.Component("notify"),
		logger.TenantID(v.TenantID),
		slog.String("recipient", to.Ref),
		slog.String("template", string(kind)),
		slog.Float64("percent", v.Percent),
		logger.Bytes("overage_bytes", v.OverageBytes),
		slog.String("overage_cost", v.OverageCost.StringFixed(2)),
	)
	return nil
}
