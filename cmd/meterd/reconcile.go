package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/meterkit/pkg/reconcile"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [tenant-id]",
	Short: "Reconcile every tenant, or one tenant, and print the result as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE:  cmdReconcile,
}

func cmdReconcile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var tenantID uuid.UUID
	if len(args) == 1 {
		id, err := parseTenantID(args[0])
		if err != nil {
			return err
		}
		tenantID = id
	}

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	w := cmd.OutOrStdout()
	if tenantID != uuid.Nil {
		res, _ := a.engine.ReconcileOne(ctx, tenantID)
		if err := encodeJSON(w, res); err != nil {
			return err
		}
		if !res.OK() {
			return errTenantsFailed
		}
		return nil
	}

	summary, err := a.engine.ReconcileAll(ctx)
	if err != nil {
		return err
	}
	if err := encodeJSON(w, summary); err != nil {
		return err
	}
	return exitStatus(summary)
}

func exitStatus(s reconcile.Summary) error {
	if s.Failed > 0 {
		return errTenantsFailed
	}
	return nil
}
