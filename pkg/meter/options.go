package meter

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/meterkit/pkg/billing"
	"github.com/dmitrymomot/meterkit/pkg/lock"
	"github.com/dmitrymomot/meterkit/pkg/notify"
	"github.com/dmitrymomot/meterkit/pkg/report"
	"github.com/dmitrymomot/meterkit/pkg/tier"
)

// Option configures an Engine.
type Option func(*options)

type options struct {
	policies         *tier.Table
	processor        billing.Processor
	parsers          []billing.WebhookParser
	dispatcher       notify.Dispatcher
	recipients       notify.RecipientResolver
	marker           notify.Marker
	locker           lock.Locker
	archiver         report.Archiver
	concurrency      int
	processorTimeout time.Duration
	log              *slog.Logger
	now              func() time.Time
}

// WithPolicies sets the tier table. Default: tier.DefaultPolicies.
func WithPolicies(t *tier.Table) Option {
	return func(o *options) {
		if t != nil {
			o.policies = t
		}
	}
}

// WithProcessor sets the billing processor used by the subscription
// operations. Without it only webhook ingestion is available.
func WithProcessor(p billing.Processor) Option {
	return func(o *options) { o.processor = p }
}

// WithWebhookParsers registers webhook parsers by their Provider name.
func WithWebhookParsers(parsers ...billing.WebhookParser) Option {
	return func(o *options) {
		for _, p := range parsers {
			if p != nil {
				o.parsers = append(o.parsers, p)
			}
		}
	}
}

// WithDispatcher sets the notification channel. Default: notify.LogDispatcher.
func WithDispatcher(d notify.Dispatcher) Option {
	return func(o *options) {
		if d != nil {
			o.dispatcher = d
		}
	}
}

// WithRecipients sets how notification recipients are found.
// Default: notify.TenantRecipients over the engine's store.
func WithRecipients(r notify.RecipientResolver) Option {
	return func(o *options) {
		if r != nil {
			o.recipients = r
		}
	}
}

// WithMarker sets the notification de-duplication store.
func WithMarker(m notify.Marker) Option {
	return func(o *options) {
		if m != nil {
			o.marker = m
		}
	}
}

// WithLocker sets the lock shared by reconciliation and billing sync.
// Use lock.NewRedis when more than one instance runs.
func WithLocker(l lock.Locker) Option {
	return func(o *options) {
		if l != nil {
			o.locker = l
		}
	}
}

// WithArchiver stores every reconciliation summary.
func WithArchiver(a report.Archiver) Option {
	return func(o *options) {
		if a != nil {
			o.archiver = a
		}
	}
}

// WithConcurrency bounds parallel tenant reconciliation.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithProcessorTimeout bounds each billing processor call.
func WithProcessorTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.processorTimeout = d
		}
	}
}

// WithLogger sets the logger passed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithClock overrides the time source of every component.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
