package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/httpserver"
	"github.com/dmitrymomot/meterkit/pkg/ledger"
	"github.com/dmitrymomot/meterkit/pkg/reconcile"
	"github.com/dmitrymomot/meterkit/pkg/tenant"
)

// Engine is the part of meter.Engine served over HTTP.
type Engine interface {
	ReconcileAll(ctx context.Context) (reconcile.Summary, error)
	ReconcileOne(ctx context.Context, tenantID uuid.UUID) (reconcile.Result, error)
	HandleWebhook(ctx context.Context, provider string, payload []byte, signature string) error
	Tenant(ctx context.Context, tenantID uuid.UUID) (*tenant.Tenant, error)
	BillingEvents(ctx context.Context, tenantID uuid.UUID) ([]ledger.Entry, error)
}

// MaxWebhookBytes caps a webhook body.
const MaxWebhookBytes = 1 << 20

// RouterOptions configures Router.
type RouterOptions struct {
	Engine Engine
	Logger *slog.Logger
	// Checks back GET /health/ready.
	Checks []httpserver.Check
	// ReconcileTimeout bounds POST /reconcile. Zero means no limit beyond
	// the server's write timeout.
	ReconcileTimeout time.Duration
}

// Router returns the service's HTTP surface:
//
//	POST /webhooks/{provider}
//	POST /reconcile
//	POST /tenants/{tenantID}/reconcile
//	GET  /tenants/{tenantID}
//	GET  /tenants/{tenantID}/billing-events
//	GET  /health/live
//	GET  /health/ready
func Router(opts RouterOptions) chi.Router {
	if opts.Engine == nil {
		panic("api: Engine is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	h := &handlers{engine: opts.Engine, log: log, reconcileTimeout: opts.ReconcileTimeout}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(log, opts.Checks...))

	r.Post("/webhooks/{provider}", h.webhook)
	r.Post("/reconcile", h.reconcileAll)
	r.Route("/tenants/{tenantID}", func(t chi.Router) {
		t.Get("/", h.tenant)
		t.Get("/billing-events", h.billingEvents)
		t.Post("/reconcile", h.reconcileOne)
	})

	return r
}
