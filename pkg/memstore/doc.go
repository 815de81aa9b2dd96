// Package memstore is an in-memory implementation of tenant.Store,
// ledger.Ledger and ledger.UnitOfWork for tests and local development.
//
// A unit of work runs against a private copy of the state which replaces the
// shared state only when the function succeeds.
//
//	store := memstore.New()
//	store.Put(tenant.Tenant{ID: id, Tier: tier.Growth})
//
//	err := store.WithinTx(ctx, func(ctx context.Context, tenants tenant.Store, events ledger.Ledger) error {
//	    if err := tenants.UpdateBilling(ctx, id, ref); err != nil {
//	        return err
//	    }
//	    return events.Append(ctx, entry)
//	})
package memstore
