package billing

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/meterkit/pkg/lock"
)

// SyncOption configures a Sync.
type SyncOption func(*Sync)

// WithLocker sets the per-tenant lock. Default: lock.NewLocal.
func WithLocker(l lock.Locker) SyncOption {
	return func(s *Sync) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) SyncOption {
	return func(s *Sync) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source used for ledger timestamps.
func WithClock(now func() time.Time) SyncOption {
	return func(s *Sync) {
		if now != nil {
			s.now = now
		}
	}
}

// WithProcessorTimeout bounds each processor call. Default ProcessorTimeout.
func WithProcessorTimeout(d time.Duration) SyncOption {
	return func(s *Sync) {
		if d > 0 {
			s.timeout = d
		}
	}
}
