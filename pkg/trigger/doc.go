// Package trigger drives periodic jobs from an explicit, caller-owned loop.
//
// Nothing runs until Runner.Start is called, and Start returns when its
// context is canceled:
//
//	schedule, _ := trigger.ParseSchedule("every 15m")
//	r := trigger.NewRunner(trigger.WithLocker(lock.NewRedis(client)))
//	_ = r.AddJob("reconcile", schedule, func(ctx context.Context) error {
//	    _, err := reconciler.ReconcileAll(ctx)
//	    return err
//	})
//	err := r.Start(ctx)
//
// With a shared locker only one instance runs a given job per tick.
package trigger
