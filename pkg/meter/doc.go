// Package meter is the composition root of the metering engine.
//
// New takes the content store that usage is computed from and the store
// holding tenants and the billing ledger; everything else is optional and
// defaults to in-process implementations:
//
//	engine := meter.New(usage.NewMongoSource(coll), pgstore.New(pool),
//		meter.WithPolicies(policies),
//		meter.WithProcessor(stripeProcessor),
//		meter.WithWebhookParsers(billing.NewStripeWebhookParser(secret)),
//		meter.WithDispatcher(notify.NewEmailDispatcher(sender)),
//		meter.WithLocker(lock.NewRedis(rdb)),
//	)
//
//	runner, _ := engine.Schedule(trigger.Every(15 * time.Minute))
//	go runner.Start(ctx)
//
// Reconciliation and billing sync share the engine's lock so that the
// scheduled run, on-demand runs and webhook ingestion never race on the
// same tenant fields.
package meter
