package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/meterkit/pkg/lock"
	"github.com/dmitrymomot/meterkit/pkg/logger"
	"github.com/dmitrymomot/meterkit/pkg/notify"
	"github.com/dmitrymomot/meterkit/pkg/report"
	"github.com/dmitrymomot/meterkit/pkg/tenant"
	"github.com/dmitrymomot/meterkit/pkg/tier"
	"github.com/dmitrymomot/meterkit/pkg/usage"
)

// UsageComputer computes a tenant's usage snapshot. *usage.Aggregator implements it.
type UsageComputer interface {
	ComputeUsage(ctx context.Context, tenantID uuid.UUID) (usage.Snapshot, error)
}

// Notifier receives violations. *notify.Notifier implements it.
type Notifier interface {
	Notify(ctx context.Context, v notify.Violation)
}

// Reconciler keeps stored tenant usage in line with the content store.
type Reconciler struct {
	usage       UsageComputer
	tenants     tenant.Store
	policies    *tier.Table
	notifier    Notifier
	locker      lock.Locker
	archiver    report.Archiver
	concurrency int
	log         *slog.Logger
	now         func() time.Time
}

// New creates a Reconciler. Panics if a required dependency is nil.
func New(u UsageComputer, tenants tenant.Store, policies *tier.Table, n Notifier, opts ...Option) *Reconciler {
	if u == nil {
		panic("reconcile: UsageComputer is required")
	}
	if tenants == nil {
		panic("reconcile: tenant.Store is required")
	}
	if policies == nil {
		panic("reconcile: tier.Table is required")
	}
	if n == nil {
		panic("reconcile: Notifier is required")
	}

	r := &Reconciler{
		usage:       u,
		tenants:     tenants,
		policies:    policies,
		notifier:    n,
		locker:      lock.NewLocal(),
		concurrency: 4,
		log:         slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReconcileAll reconciles every tenant. The error is non-nil only when the
// tenant list cannot be read; per-tenant failures are in the summary.
func (r *Reconciler) ReconcileAll(ctx context.Context) (Summary, error) {
	s := Summary{RunID: uuid.NewString(), StartedAt: r.now().UTC()}
	ctx = logger.WithRunID(ctx, s.RunID)

	ids, err := r.tenants.ListAll(ctx)
	if err != nil {
		return s, errors.Join(ErrListTenants, err)
	}
	ids = dedupe(ids)

	s.Results = make([]Result, len(ids))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			s.Results[i] = r.reconcile(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range s.Results {
		if res.OK() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	s.FinishedAt = r.now().UTC()

	r.log.LogAttrs(ctx, slog.LevelInfo, "reconciliation run finished",
		logger.Component("reconcile"),
		slog.Int("tenants", len(ids)),
		slog.Int("succeeded", s.Succeeded),
		slog.Int("failed", s.Failed),
		logger.Duration(s.FinishedAt.Sub(s.StartedAt)),
	)
	r.archive(ctx, s)
	return s, nil
}

// ReconcileOne reconciles a single tenant and returns its error, if any.
func (r *Reconciler) ReconcileOne(ctx context.Context, tenantID uuid.UUID) (Result, error) {
	res := r.reconcile(ctx, tenantID)
	return res, res.Err
}

func (r *Reconciler) reconcile(ctx context.Context, id uuid.UUID) Result {
	ctx = tenant.WithID(ctx, id)
	res := Result{TenantID: id}

	snap, v, err := r.reconcileLocked(ctx, id)
	if err != nil {
		res.Err = err
		r.log.LogAttrs(ctx, slog.LevelWarn, "tenant reconciliation failed",
			logger.Component("reconcile"), logger.TenantID(id), logger.Error(err))
		return res
	}
	res.Snapshot = &snap
	res.Violation = v
	return res
}

func (r *Reconciler) reconcileLocked(ctx context.Context, id uuid.UUID) (usage.Snapshot, *notify.Violation, error) {
	unlock, err := r.locker.TryLock(ctx, "reconcile:"+id.String())
	if errors.Is(err, lock.ErrLocked) {
		return usage.Snapshot{}, nil, ErrReconcileInProgress
	}
	if err != nil {
		return usage.Snapshot{}, nil, fmt.Errorf("acquire tenant lock: %w", err)
	}
	defer unlock()

	t, err := r.tenants.Get(ctx, id)
	if err != nil {
		return usage.Snapshot{}, nil, err
	}

	snap, err := r.usage.ComputeUsage(ctx, id)
	if err != nil {
		return usage.Snapshot{}, nil, err
	}

	// persisted before evaluation so the check never runs on a stale value
	if err := r.tenants.UpdateUsage(ctx, id, tenant.UsageFromSnapshot(snap)); err != nil {
		return usage.Snapshot{}, nil, err
	}

	v := Evaluate(snap, r.policies.Resolve(t.Tier), r.periodStart(t))
	if v != nil {
		r.notifier.Notify(ctx, *v)
	}
	return snap, v, nil
}

// periodStart is the subscription period start, or the calendar month for
// tenants without a subscription.
func (r *Reconciler) periodStart(t *tenant.Tenant) time.Time {
	if !t.Billing.PeriodStart.IsZero() {
		return t.Billing.PeriodStart.UTC()
	}
	now := r.now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func (r *Reconciler) archive(ctx context.Context, s Summary) {
	if r.archiver == nil {
		return
	}
	err := r.archiver.Archive(ctx, report.Report{
		ID:        s.RunID,
		Kind:      "reconciliation",
		CreatedAt: s.FinishedAt,
		Body:      s,
	})
	if err != nil {
		r.log.LogAttrs(ctx, slog.LevelError, "failed to archive reconciliation summary",
			logger.Component("reconcile"), logger.Error(err))
	}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
