// Package tenant defines the tenant record the metering engine reads and
// updates, and the Store contract used to persist it.
//
// A tenant carries three disjoint field sets, each with its own writer:
//
//   - Usage is written by reconciliation through Store.UpdateUsage.
//   - Billing is written by billing sync through Store.UpdateBilling.
//   - Tier and Quota are written by billing sync through Store.UpdateTier.
//
// Store implementations must apply each update as a partial update of its own
// columns so concurrent writers never clobber each other.
//
// # Context
//
// WithID and IDFromContext propagate the tenant being processed; LoggerExtractor
// adds it to every log record when used with logger.WithContextExtractors.
//
//	ctx = tenant.WithID(ctx, t.ID)
//	log := logger.New(logger.WithContextExtractors(tenant.LoggerExtractor()))
//	log.InfoContext(ctx, "reconciled") // includes tenant_id
package tenant
