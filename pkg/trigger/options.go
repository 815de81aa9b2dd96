package trigger

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/meterkit/pkg/lock"
)

// Option configures a Runner.
type Option func(*Runner)

// WithCheckInterval sets how often the runner looks for due jobs. Default 1s.
func WithCheckInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithLocker makes a job run on one instance at a time. A tick whose lock is
// held elsewhere is skipped. Default: lock.NewLocal.
func WithLocker(l lock.Locker) Option {
	return func(r *Runner) {
		if l != nil {
			r.locker = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// JobOption configures a registered job.
type JobOption func(*job)

// RunOnStart runs the job on the first check instead of waiting for its
// first scheduled time.
func RunOnStart() JobOption {
	return func(j *job) {
		j.runOnStart = true
	}
}

// WithJobTimeout bounds a single run of the job.
func WithJobTimeout(d time.Duration) JobOption {
	return func(j *job) {
		if d > 0 {
			j.timeout = d
		}
	}
}
