// Package billing keeps tenant subscription state and the billing ledger
// consistent with the external billing processor.
//
// Sync exposes the outbound operations (EnsureCustomer, CreateSubscription,
// ChangeTier, CancelSubscription, Resync) and the inbound IngestWebhookEvent.
// Every processor call runs under ProcessorTimeout and failures are wrapped in
// ErrExternalProcessor; nothing is persisted when the processor call fails.
//
// Webhook deliveries are turned into a closed set of Event variants by a
// WebhookParser (StripeWebhookParser, PaddleWebhookParser) and validated at
// the boundary. IngestWebhookEvent is idempotent on the processor event id:
//
//	ev, err := parser.Parse(ctx, body, r.Header.Get("Stripe-Signature"))
//	if errors.Is(err, billing.ErrUnsupportedEvent) {
//	    // acknowledge and drop
//	}
//	err = sync.IngestWebhookEvent(ctx, ev)
//
// Losing a paid subscription (subscription deleted, or an immediate cancel)
// reverts the tenant to the starter tier.
package billing
