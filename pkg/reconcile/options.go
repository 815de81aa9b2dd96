package reconcile

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/meterkit/pkg/lock"
	"github.com/dmitrymomot/meterkit/pkg/report"
)

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithConcurrency bounds the number of tenants reconciled at once. Default 4.
func WithConcurrency(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLocker sets the per-tenant lock. Default: lock.NewLocal.
func WithLocker(l lock.Locker) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.locker = l
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// WithArchiver stores every run summary. Archive failures are only logged.
func WithArchiver(a report.Archiver) Option {
	return func(r *Reconciler) {
		r.archiver = a
	}
}
