// Package pgstore implements tenant.Store, ledger.Ledger and ledger.UnitOfWork
// on PostgreSQL with pgx/v5.
//
// Each tenant update statement only sets the columns of its own field set
// (usage_*, billing_*, or tier and quota_*), so reconciliation and billing
// sync can write the same row concurrently.
//
// The schema ships with the package:
//
//	if err := pg.MigrateFS(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg.MigrationsTable, log); err != nil {
//	    return err
//	}
//	store := pgstore.New(pool)
package pgstore
