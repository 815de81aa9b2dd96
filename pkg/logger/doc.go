// Package logger builds the service's *slog.Logger and holds the attribute
// helpers shared by every package.
//
// New returns a logger whose handler is wrapped by LogHandlerDecorator, which
// runs ContextExtractor callbacks on every record. The metering service
// registers extractors for the reconciliation run id and the tenant being
// processed so per-tenant log lines can be correlated without threading
// attributes through every call.
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, cfg.ServiceName),
//	    logger.WithContextExtractors(logger.RunIDExtractor(), tenant.LoggerExtractor()),
//	)
//	logger.SetAsDefault(log)
//
//	ctx = logger.WithRunID(ctx, runID)
//	log.InfoContext(ctx, "reconciliation finished", logger.Duration(time.Since(start)))
//
// Development uses the text handler at debug level, staging and production the
// JSON handler at info level. Attribute helpers such as Error return an empty
// attribute for nil input, which slog drops.
package logger
