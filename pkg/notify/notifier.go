package notify

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/meterkit/pkg/logger"
)

// Notifier de-duplicates violations and hands them to a Dispatcher.
type Notifier struct {
	dispatcher Dispatcher
	recipients RecipientResolver
	marker     Marker
	log        *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithMarker sets the de-duplication store. Default: NewMemoryMarker.
func WithMarker(m Marker) Option {
	return func(n *Notifier) {
		if m != nil {
			n.marker = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.log = l
		}
	}
}

// New creates a Notifier. Panics if dispatcher or recipients is nil.
func New(dispatcher Dispatcher, recipients RecipientResolver, opts ...Option) *Notifier {
	if dispatcher == nil {
		panic("notify: Dispatcher is required")
	}
	if recipients == nil {
		panic("notify: RecipientResolver is required")
	}
	n := &Notifier{
		dispatcher: dispatcher,
		recipients: recipients,
		marker:     NewMemoryMarker(),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify sends the violation unless its bucket was already notified in the
// same period. Failures are logged.
func (n *Notifier) Notify(ctx context.Context, v Violation) {
	if v.Bucket == BucketNone {
		return
	}
	attrs := []slog.Attr{logger.Component("notify"), logger.TenantID(v.TenantID), slog.Int("bucket", int(v.Bucket))}

	first, err := n.marker.Mark(ctx, v.TenantID, v.PeriodStart, v.Bucket)
	if err != nil {
		n.log.LogAttrs(ctx, slog.LevelError, "notification marker failed, sending anyway", append(attrs, logger.Error(err))...)
		first = true
	}
	if !first {
		n.log.LogAttrs(ctx, slog.LevelDebug, "notification already sent for period", attrs...)
		return
	}

	to, err := n.recipients.Resolve(ctx, v.TenantID)
	if err != nil {
		n.log.LogAttrs(ctx, slog.LevelError, "cannot resolve notification recipient", append(attrs, logger.Error(err))...)
		n.release(ctx, v, attrs)
		return
	}

	if err := n.dispatcher.Send(ctx, to, v.Bucket.Template(), v); err != nil {
		n.log.LogAttrs(ctx, slog.LevelError, "failed to send usage notification", append(attrs, logger.Error(err))...)
		n.release(ctx, v, attrs)
		return
	}
	if v.Bucket == BucketOverLimit {
		// over the limit implies the warning bucket for this period
		_, _ = n.marker.Mark(ctx, v.TenantID, v.PeriodStart, BucketWarning)
	}
	n.log.LogAttrs(ctx, slog.LevelInfo, "usage notification sent", attrs...)
}

// release clears the bucket mark so the next cycle retries the notification.
func (n *Notifier) release(ctx context.Context, v Violation, attrs []slog.Attr) {
	if err := n.marker.Unmark(ctx, v.TenantID, v.PeriodStart, v.Bucket); err != nil {
		n.log.LogAttrs(ctx, slog.LevelError, "cannot release notification marker", append(attrs, logger.Error(err))...)
	}
}
