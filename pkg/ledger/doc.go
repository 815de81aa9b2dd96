// Package ledger records external billing events.
//
// The ledger is append-only and keyed by the processor's event id: appending
// an id that already exists fails with ErrDuplicateEvent, which callers treat
// as proof the event was processed before. Entries that were recorded only for
// idempotency, without changing a tenant, carry StatusIgnored.
//
// UnitOfWork groups a tenant update and a ledger append so they commit or roll
// back together.
package ledger
