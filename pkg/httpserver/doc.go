// Package httpserver runs the service's HTTP surface with graceful shutdown
// and provides liveness and readiness handlers.
//
// Run blocks until its context is canceled; the caller owns signal handling
// (cmd/meterd uses signal.NotifyContext). In-flight requests are drained
// within the shutdown timeout.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	r.Get("/health/ready", httpserver.ReadinessHandler(log,
//		httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)},
//	))
//	err := srv.Run(ctx, r)
package httpserver
