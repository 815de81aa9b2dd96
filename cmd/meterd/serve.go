package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/meterkit/pkg/api"
	"github.com/dmitrymomot/meterkit/pkg/config"
	"github.com/dmitrymomot/meterkit/pkg/httpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run reconciliation on schedule",
	Args:  cobra.NoArgs,
	RunE:  cmdServe,
}

var serveNoTrigger bool

func init() {
	serveCmd.Flags().BoolVar(&serveNoTrigger, "no-trigger", false, "serve the API without the periodic reconciliation")
}

func cmdServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	var httpCfg httpserver.Config
	if err := config.Load(&httpCfg); err != nil {
		return err
	}
	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(a.log))
	router := api.Router(api.RouterOptions{
		Engine: a.engine,
		Logger: a.log,
		Checks: a.checks,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx, router) })

	if !serveNoTrigger {
		schedule, err := a.cfg.Schedule()
		if err != nil {
			return err
		}
		runner, err := a.engine.Schedule(schedule)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := runner.Start(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}
