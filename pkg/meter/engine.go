package meter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/billing"
	"github.com/dmitrymomot/meterkit/pkg/ledger"
	"github.com/dmitrymomot/meterkit/pkg/lock"
	"github.com/dmitrymomot/meterkit/pkg/logger"
	"github.com/dmitrymomot/meterkit/pkg/notify"
	"github.com/dmitrymomot/meterkit/pkg/reconcile"
	"github.com/dmitrymomot/meterkit/pkg/tenant"
	"github.com/dmitrymomot/meterkit/pkg/tier"
	"github.com/dmitrymomot/meterkit/pkg/trigger"
	"github.com/dmitrymomot/meterkit/pkg/usage"
)

// ReconcileJob is the trigger job name registered by Schedule.
const ReconcileJob = "reconcile"

// Engine wires the aggregator, reconciler, notifier and billing sync over
// one store and one lock.
type Engine struct {
	store      billing.Store
	policies   *tier.Table
	aggregator *usage.Aggregator
	reconciler *reconcile.Reconciler
	sync       *billing.Sync
	parsers    map[string]billing.WebhookParser
	locker     lock.Locker
	log        *slog.Logger
}

// New builds an Engine. content is read for usage; store persists tenants
// and the billing ledger. Panics if either is nil.
func New(content usage.ContentStore, store billing.Store, opts ...Option) *Engine {
	if content == nil {
		panic("meter: usage.ContentStore is required")
	}
	if store == nil {
		panic("meter: billing.Store is required")
	}

	o := &options{
		policies:         tier.NewTable(tier.DefaultPolicies()),
		locker:           lock.NewLocal(),
		concurrency:      4,
		processorTimeout: billing.ProcessorTimeout,
		log:              slog.Default(),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.dispatcher == nil {
		o.dispatcher = notify.NewLogDispatcher(o.log)
	}
	if o.recipients == nil {
		o.recipients = notify.TenantRecipients(store)
	}

	notifierOpts := []notify.Option{notify.WithLogger(o.log)}
	if o.marker != nil {
		notifierOpts = append(notifierOpts, notify.WithMarker(o.marker))
	}
	notifier := notify.New(o.dispatcher, o.recipients, notifierOpts...)

	aggregator := usage.NewAggregator(content, usage.WithClock(o.now))

	reconcileOpts := []reconcile.Option{
		reconcile.WithConcurrency(o.concurrency),
		reconcile.WithLocker(o.locker),
		reconcile.WithLogger(o.log),
		reconcile.WithClock(o.now),
	}
	if o.archiver != nil {
		reconcileOpts = append(reconcileOpts, reconcile.WithArchiver(o.archiver))
	}

	e := &Engine{
		store:      store,
		policies:   o.policies,
		aggregator: aggregator,
		reconciler: reconcile.New(aggregator, store, o.policies, notifier, reconcileOpts...),
		sync: billing.NewSync(o.processor, store, o.policies,
			billing.WithLocker(o.locker),
			billing.WithLogger(o.log),
			billing.WithClock(o.now),
			billing.WithProcessorTimeout(o.processorTimeout),
		),
		parsers: make(map[string]billing.WebhookParser, len(o.parsers)),
		locker:  o.locker,
		log:     o.log,
	}
	for _, p := range o.parsers {
		e.parsers[p.Provider()] = p
	}
	return e
}

// Policies returns the tier table in use.
func (e *Engine) Policies() *tier.Table { return e.policies }

// ComputeUsage returns a fresh snapshot without persisting it.
func (e *Engine) ComputeUsage(ctx context.Context, tenantID uuid.UUID) (usage.Snapshot, error) {
	return e.aggregator.ComputeUsage(ctx, tenantID)
}

// ReconcileAll reconciles every tenant. See reconcile.Reconciler.ReconcileAll.
func (e *Engine) ReconcileAll(ctx context.Context) (reconcile.Summary, error) {
	return e.reconciler.ReconcileAll(ctx)
}

// ReconcileOne reconciles a single tenant.
func (e *Engine) ReconcileOne(ctx context.Context, tenantID uuid.UUID) (reconcile.Result, error) {
	return e.reconciler.ReconcileOne(ctx, tenantID)
}

// Tenant returns the stored tenant record.
func (e *Engine) Tenant(ctx context.Context, tenantID uuid.UUID) (*tenant.Tenant, error) {
	return e.store.Get(ctx, tenantID)
}

// BillingEvents lists the ledger entries of a tenant.
func (e *Engine) BillingEvents(ctx context.Context, tenantID uuid.UUID) ([]ledger.Entry, error) {
	return e.store.ListByTenant(ctx, tenantID)
}

// EnsureCustomer returns the processor customer id of the tenant,
// creating the customer on first use.
func (e *Engine) EnsureCustomer(ctx context.Context, tenantID uuid.UUID) (string, error) {
	return e.sync.EnsureCustomer(ctx, tenantID)
}

// CreateSubscription subscribes the tenant to the tier behind priceRef.
func (e *Engine) CreateSubscription(ctx context.Context, tenantID uuid.UUID, priceRef string) (billing.SubscriptionResult, error) {
	return e.sync.CreateSubscription(ctx, tenantID, priceRef)
}

// ChangeTier moves the active subscription to newTier's price.
func (e *Engine) ChangeTier(ctx context.Context, tenantID uuid.UUID, newTier tier.Tier) (tenant.SubscriptionStatus, error) {
	return e.sync.ChangeTier(ctx, tenantID, newTier)
}

// CancelSubscription cancels now or at period end.
func (e *Engine) CancelSubscription(ctx context.Context, tenantID uuid.UUID, immediate bool) error {
	return e.sync.CancelSubscription(ctx, tenantID, immediate)
}

// Resync pulls the subscription from the processor and stores it.
func (e *Engine) Resync(ctx context.Context, tenantID uuid.UUID) (tenant.BillingRef, error) {
	return e.sync.Resync(ctx, tenantID)
}

// IngestWebhookEvent applies a parsed billing event exactly once.
func (e *Engine) IngestWebhookEvent(ctx context.Context, ev billing.Event) error {
	return e.sync.IngestWebhookEvent(ctx, ev)
}

// HandleWebhook verifies and parses a raw webhook of provider and ingests
// the event. Unsupported event types return billing.ErrUnsupportedEvent
// and change nothing.
func (e *Engine) HandleWebhook(ctx context.Context, provider string, payload []byte, signature string) error {
	p, ok := e.parsers[provider]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	ev, err := p.Parse(ctx, payload, signature)
	if err != nil {
		return err
	}
	return e.sync.IngestWebhookEvent(ctx, ev)
}

// Providers lists the providers with a registered webhook parser.
func (e *Engine) Providers() []string {
	out := make([]string, 0, len(e.parsers))
	for name := range e.parsers {
		out = append(out, name)
	}
	return out
}

// Schedule returns a trigger runner that calls ReconcileAll on schedule.
// The runner shares the engine's lock, so only one instance runs a
// scheduled reconciliation at a time.
func (e *Engine) Schedule(schedule trigger.Schedule, opts ...trigger.Option) (*trigger.Runner, error) {
	runnerOpts := append([]trigger.Option{
		trigger.WithLogger(e.log),
		trigger.WithLocker(e.locker),
	}, opts...)
	r := trigger.NewRunner(runnerOpts...)

	err := r.AddJob(ReconcileJob, schedule, func(ctx context.Context) error {
		s, err := e.reconciler.ReconcileAll(ctx)
		if err != nil {
			return err
		}
		if s.Failed > 0 {
			e.log.WarnContext(ctx, "scheduled reconciliation finished with failures",
				logger.Component("meter"),
				logger.RunID(s.RunID),
				slog.Int("failed", s.Failed))
		}
		return nil
	}, trigger.RunOnStart())
	if err != nil {
		return nil, err
	}
	return r, nil
}
