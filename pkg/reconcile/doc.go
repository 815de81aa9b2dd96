// Package reconcile recomputes tenant usage and checks it against the tier
// quota.
//
// For each tenant, under a per-tenant lock, the Reconciler:
//
//  1. loads the tenant and computes a fresh usage snapshot,
//  2. persists the snapshot with tenant.Store.UpdateUsage (always, even below
//     any threshold),
//  3. evaluates the snapshot against the tier policy and hands a Violation to
//     the notifier when usage is at or above 80% of the storage quota.
//
// ReconcileAll runs this over every tenant on a bounded worker pool. A failing
// tenant is recorded in its Result and never aborts the batch. ReconcileOne
// handles a single tenant and returns its error.
//
// The threshold test is exact decimal arithmetic (TotalBytes*100 >= Quota*80),
// so exactly 80% triggers and 79.999% does not. Storage overage is priced per
// decimal gigabyte; transcription minutes are tracked but not billed.
//
//	r := reconcile.New(agg, store, table, notifier,
//	    reconcile.WithConcurrency(8),
//	    reconcile.WithLocker(lock.NewRedis(client)),
//	)
//	summary, err := r.ReconcileAll(ctx)
package reconcile
