// Package pg wires PostgreSQL for the metering service using pgx/v5 and
// goose/v3: a retrying pool constructor, migrations from a directory or an
// embedded filesystem, a health check, a transaction helper and error
// classifiers.
//
// # Usage
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	// migrations shipped inside the binary
//	if err := pg.MigrateFS(ctx, pool, pgstore.Migrations, "migrations", cfg.MigrationsTable, slog.Default()); err != nil {
//	    return err
//	}
//
// Connect retries with a linearly growing delay (RetryInterval, 2×, 3× …) and
// stops early when the context is canceled.
//
// # Errors
//
// IsNotFoundError, IsDuplicateKeyError, IsForeignKeyViolationError and
// IsTxClosedError classify driver errors so store implementations can map
// them onto their domain sentinels.
package pg
