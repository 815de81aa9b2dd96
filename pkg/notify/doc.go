// Package notify turns usage threshold crossings into outbound messages.
//
// Reconciliation hands every Violation to Notifier.Notify. The notifier sends
// at most one message per tenant, per Bucket (80% warning, 100% over limit)
// and per billing period. The "already notified" state lives in a Marker:
// MemoryMarker for a single process, RedisMarker when several instances run
// reconciliation.
//
// Notify never returns an error. Marker failures are logged and the message
// is still sent, since a duplicate warning is preferable to a missed one.
// Delivery failures are logged and not retried.
//
//	n := notify.New(
//	    notify.NewEmailDispatcher(sender),
//	    notify.TenantRecipients(store),
//	    notify.WithMarker(notify.NewRedisMarker(client, "meter:notified")),
//	    notify.WithLogger(log),
//	)
//	n.Notify(ctx, violation)
package notify
