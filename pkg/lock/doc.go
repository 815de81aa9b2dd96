// Package lock provides per-key mutual exclusion for tenant-scoped work.
//
// Two Locker implementations are available:
//
//   - Local: a keyed mutex for a single process. Entries are reference
//     counted and removed once no goroutine holds or waits for them.
//   - Redis: SET key token NX PX ttl, released by a compare-and-delete
//     script so an expired lock taken over by another owner is never freed
//     by the previous one.
//
// TryLock fails fast with ErrLocked; Lock waits until the key is free or the
// context is done.
//
//	unlock, err := locker.TryLock(ctx, "reconcile:"+tenantID.String())
//	if errors.Is(err, lock.ErrLocked) {
//	    return ErrReconcileInProgress
//	}
//	defer unlock()
package lock
