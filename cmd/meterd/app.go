package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/meterkit/pkg/api"
	"github.com/dmitrymomot/meterkit/pkg/billing"
	"github.com/dmitrymomot/meterkit/pkg/config"
	"github.com/dmitrymomot/meterkit/pkg/email"
	"github.com/dmitrymomot/meterkit/pkg/httpserver"
	"github.com/dmitrymomot/meterkit/pkg/lock"
	"github.com/dmitrymomot/meterkit/pkg/logger"
	"github.com/dmitrymomot/meterkit/pkg/meter"
	"github.com/dmitrymomot/meterkit/pkg/mongo"
	"github.com/dmitrymomot/meterkit/pkg/notify"
	"github.com/dmitrymomot/meterkit/pkg/pg"
	"github.com/dmitrymomot/meterkit/pkg/pgstore"
	"github.com/dmitrymomot/meterkit/pkg/redis"
	"github.com/dmitrymomot/meterkit/pkg/report"
	"github.com/dmitrymomot/meterkit/pkg/tenant"
	"github.com/dmitrymomot/meterkit/pkg/usage"
)

// app holds the wired engine and everything that must be closed with it.
type app struct {
	cfg    meter.Config
	log    *slog.Logger
	engine *meter.Engine
	checks []httpserver.Check
	close  []func(context.Context) error
}

func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.close) - 1; i >= 0; i-- {
		errs = append(errs, a.close[i](ctx))
	}
	return errors.Join(errs...)
}

func newLogger() (*slog.Logger, error) {
	var cfg logger.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	log := logger.NewFromConfig(cfg, logger.WithContextExtractors(
		logger.RunIDExtractor(),
		tenant.LoggerExtractor(),
		api.RequestIDExtractor(),
	))
	logger.SetAsDefault(log)
	return log, nil
}

func connectPostgres(ctx context.Context, log *slog.Logger) (*pgxpool.Pool, error) {
	var cfg pg.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pg.MigrateFS(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg.MigrationsTable, log); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// bootstrap connects every backing service and builds the engine.
func bootstrap(ctx context.Context) (_ *app, err error) {
	log, err := newLogger()
	if err != nil {
		return nil, err
	}
	a := &app{log: log}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	if err := config.Load(&a.cfg); err != nil {
		return nil, err
	}
	policies, err := a.cfg.Policies()
	if err != nil {
		return nil, err
	}
	opts := append(a.cfg.Options(), meter.WithPolicies(policies), meter.WithLogger(log))

	pool, err := connectPostgres(ctx, log)
	if err != nil {
		return nil, err
	}
	a.close = append(a.close, func(context.Context) error { pool.Close(); return nil })
	a.checks = append(a.checks, httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)})

	var mongoCfg mongo.Config
	if err := config.Load(&mongoCfg); err != nil {
		return nil, err
	}
	mongoClient, coll, err := mongo.ContentCollection(ctx, mongoCfg)
	if err != nil {
		return nil, err
	}
	a.close = append(a.close, mongoClient.Disconnect)
	a.checks = append(a.checks, httpserver.Check{Name: "mongodb", Fn: mongo.Healthcheck(mongoClient)})

	if a.cfg.DistributedLocks() {
		rdb, prefix, err := connectRedis(ctx)
		if err != nil {
			return nil, err
		}
		a.close = append(a.close, func(context.Context) error { return rdb.Close() })
		a.checks = append(a.checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(rdb)})
		opts = append(opts,
			meter.WithLocker(lock.NewRedis(rdb, lock.WithTTL(a.cfg.LockTTL), lock.WithKeyPrefix(redis.Key(prefix, "lock")))),
			meter.WithMarker(notify.NewRedisMarker(rdb, redis.Key(prefix, "notified"))),
		)
	}

	var emailCfg email.Config
	if err := config.Load(&emailCfg); err != nil {
		return nil, err
	}
	sender, err := email.NewSender(emailCfg)
	if err != nil {
		return nil, err
	}
	dispatcher, err := newDispatcher(sender)
	if err != nil {
		return nil, err
	}
	opts = append(opts, meter.WithDispatcher(dispatcher))

	billingOpts, err := billingOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts, billingOpts...)

	archiver, err := newArchiver(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	if archiver != nil {
		opts = append(opts, meter.WithArchiver(archiver))
	}

	a.engine = meter.New(usage.NewMongoSource(coll), pgstore.New(pool), opts...)
	return a, nil
}

func connectRedis(ctx context.Context) (*goredis.Client, string, error) {
	var cfg redis.Config
	if err := config.Load(&cfg); err != nil {
		return nil, "", err
	}
	rdb, err := redis.Connect(ctx, cfg)
	if err != nil {
		return nil, "", err
	}
	return rdb, cfg.KeyPrefix, nil
}

var errBothProcessors = errors.New("set either STRIPE_SECRET_KEY or PADDLE_API_KEY, not both")

func billingOptions() ([]meter.Option, error) {
	var stripeCfg billing.StripeConfig
	if err := config.Load(&stripeCfg); err != nil {
		return nil, err
	}
	var paddleCfg billing.PaddleConfig
	if err := config.Load(&paddleCfg); err != nil {
		return nil, err
	}

	var opts []meter.Option
	switch {
	case stripeCfg.Enabled() && paddleCfg.ProcessorEnabled():
		return nil, errBothProcessors
	case stripeCfg.Enabled():
		p, err := billing.NewStripeProcessor(stripeCfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, meter.WithProcessor(p))
	case paddleCfg.ProcessorEnabled():
		p, err := billing.NewPaddleProcessor(paddleCfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, meter.WithProcessor(p))
	}
	if stripeCfg.WebhookSecret != "" {
		opts = append(opts, meter.WithWebhookParsers(billing.NewStripeWebhookParser(stripeCfg.WebhookSecret)))
	}
	if paddleCfg.Enabled() {
		opts = append(opts, meter.WithWebhookParsers(billing.NewPaddleWebhookParser(paddleCfg.WebhookSecret)))
	}
	return opts, nil
}

func newArchiver(ctx context.Context, cfg meter.Config) (report.Archiver, error) {
	var s3Cfg report.S3Config
	if err := config.Load(&s3Cfg); err != nil {
		return nil, err
	}
	switch {
	case s3Cfg.Enabled():
		a, err := report.NewS3Archiver(ctx, s3Cfg)
		if err != nil {
			return nil, err
		}
		return a, nil
	case cfg.ReportDir != "":
		a, err := report.NewLocalArchiver(cfg.ReportDir)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	return nil, nil
}

// newDispatcher sends usage notifications by e-mail and, when configured,
// to the usage webhook.
func newDispatcher(sender email.Sender) (notify.Dispatcher, error) {
	var cfg notify.WebhookConfig
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	emailDispatcher := notify.NewEmailDispatcher(sender)
	if !cfg.Enabled() {
		return emailDispatcher, nil
	}
	hook, err := notify.NewWebhookDispatcher(cfg)
	if err != nil {
		return nil, err
	}
	return notify.MultiDispatcher{emailDispatcher, hook}, nil
}
