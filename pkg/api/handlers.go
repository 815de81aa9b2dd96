package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/billing"
	"github.com/dmitrymomot/meterkit/pkg/ledger"
	"github.com/dmitrymomot/meterkit/pkg/logger"
	"github.com/dmitrymomot/meterkit/pkg/meter"
	"github.com/dmitrymomot/meterkit/pkg/reconcile"
	"github.com/dmitrymomot/meterkit/pkg/tenant"
	"github.com/dmitrymomot/meterkit/pkg/usage"
)

// signatureHeaders maps a provider to the header carrying its webhook signature.
var signatureHeaders = map[string]string{
	billing.ProviderStripe: "Stripe-Signature",
	billing.ProviderPaddle: billing.PaddleSignatureHeader,
}

type handlers struct {
	engine           Engine
	log              *slog.Logger
	reconcileTimeout time.Duration
}

// webhook answers 2xx only when the event is recorded, so the processor
// redelivers anything that failed.
func (h *handlers) webhook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	header, ok := signatureHeaders[provider]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	err = h.engine.HandleWebhook(r.Context(), provider, payload, r.Header.Get(header))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
	case errors.Is(err, billing.ErrUnsupportedEvent):
		writeJSON(w, http.StatusAccepted, statusResponse{Status: "ignored"})
	case errors.Is(err, meter.ErrUnknownProvider):
		writeError(w, http.StatusNotFound, "unknown provider")
	case errors.Is(err, billing.ErrInvalidSignature):
		writeError(w, http.StatusBadRequest, "invalid signature")
	case errors.Is(err, billing.ErrInvalidPayload), errors.Is(err, billing.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, "invalid payload")
	default:
		h.log.ErrorContext(r.Context(), "webhook processing failed",
			logger.Component("api"), logger.Provider(provider), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "processing failed")
	}
}

func (h *handlers) reconcileAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reconcileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.reconcileTimeout)
		defer cancel()
	}

	s, err := h.engine.ReconcileAll(ctx)
	if err != nil {
		h.log.ErrorContext(ctx, "reconciliation failed", logger.Component("api"), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "reconciliation failed")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *handlers) reconcileOne(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}

	res, err := h.engine.ReconcileOne(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, tenant.ErrTenantNotFound):
		writeError(w, http.StatusNotFound, "tenant not found")
	case errors.Is(err, reconcile.ErrReconcileInProgress):
		writeJSON(w, http.StatusConflict, res)
	case errors.Is(err, usage.ErrDataSource):
		writeJSON(w, http.StatusServiceUnavailable, res)
	default:
		writeJSON(w, http.StatusInternalServerError, res)
	}
}

func (h *handlers) tenant(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	t, err := h.engine.Tenant(r.Context(), id)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handlers) billingEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	if _, err := h.engine.Tenant(r.Context(), id); err != nil {
		h.storeError(w, r, err)
		return
	}
	events, err := h.engine.BillingEvents(r.Context(), id)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	if events == nil {
		events = []ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, listResponse[ledger.Entry]{Items: events})
}

func (h *handlers) storeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, tenant.ErrTenantNotFound) {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}
	h.log.ErrorContext(r.Context(), "tenant store failed", logger.Component("api"), logger.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func tenantID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tenant id")
		return uuid.Nil, false
	}
	return id, true
}
