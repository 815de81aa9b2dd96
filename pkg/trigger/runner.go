package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/meterkit/pkg/lock"
	"github.com/dmitrymomot/meterkit/pkg/logger"
)

// JobFunc is one run of a periodic job.
type JobFunc func(ctx context.Context) error

type job struct {
	name       string
	schedule   Schedule
	fn         JobFunc
	runOnStart bool
	timeout    time.Duration

	nextRun time.Time
	running bool
}

// Runner invokes registered jobs on their schedules. A job never overlaps
// with itself; a tick that finds the previous run still going is skipped.
type Runner struct {
	mu       sync.Mutex
	jobs     map[string]*job
	order    []string
	interval time.Duration
	locker   lock.Locker
	log      *slog.Logger
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewRunner creates an empty Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		jobs:     make(map[string]*job),
		interval: time.Second,
		locker:   lock.NewLocal(),
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddJob registers fn under name.
func (r *Runner) AddJob(name string, schedule Schedule, fn JobFunc, opts ...JobOption) error {
	if fn == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrInvalidSchedule
	}

	j := &job{name: name, schedule: schedule, fn: fn}
	for _, opt := range opts {
		opt(j)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyRegistered, name)
	}
	r.jobs[name] = j
	r.order = append(r.order, name)

	r.log.Info("registered periodic job",
		logger.Component("trigger"),
		slog.String("job", name),
		slog.String("schedule", schedule.String()))
	return nil
}

// Jobs returns the registered job names in registration order.
func (r *Runner) Jobs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Start runs the check loop until ctx is canceled, then waits for running
// jobs to return.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	count := len(r.jobs)
	now := r.now()
	for _, j := range r.jobs {
		if j.runOnStart {
			j.nextRun = now
		} else {
			j.nextRun = j.schedule.Next(now)
		}
	}
	r.mu.Unlock()

	if count == 0 {
		return ErrNoJobs
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.check(ctx)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("trigger runner shutting down", logger.Component("trigger"))
			r.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			r.check(ctx)
		}
	}
}

// check starts every due job that is not already running.
func (r *Runner) check(ctx context.Context) {
	now := r.now()

	r.mu.Lock()
	var due []*job
	for _, name := range r.order {
		j := r.jobs[name]
		if j.running || j.nextRun.After(now) {
			continue
		}
		j.running = true
		j.nextRun = j.schedule.Next(now)
		due = append(due, j)
	}
	r.mu.Unlock()

	for _, j := range due {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			defer r.finish(j)
			r.run(ctx, j)
		}()
	}
}

func (r *Runner) finish(j *job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j.running = false
}

// RunNow runs a registered job synchronously, outside its schedule.
func (r *Runner) RunNow(ctx context.Context, name string) error {
	r.mu.Lock()
	j, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return r.run(ctx, j)
}

func (r *Runner) run(ctx context.Context, j *job) error {
	log := r.log.With(logger.Component("trigger"), slog.String("job", j.name))

	unlock, err := r.locker.TryLock(ctx, "trigger:"+j.name)
	if errors.Is(err, lock.ErrLocked) {
		log.DebugContext(ctx, "job is running elsewhere, skipped")
		return err
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to acquire job lock", logger.Error(err))
		return err
	}
	defer unlock()

	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	start := time.Now()
	err = j.fn(ctx)
	if err != nil {
		log.ErrorContext(ctx, "job failed", logger.Error(err), logger.Duration(time.Since(start)))
		return err
	}
	log.InfoContext(ctx, "job finished", logger.Duration(time.Since(start)))
	return nil
}
