package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/meterkit/pkg/billing"
	"github.com/dmitrymomot/meterkit/pkg/meter"
	"github.com/dmitrymomot/meterkit/pkg/tenant"
	"github.com/dmitrymomot/meterkit/pkg/tier"
)

// billingService is the part of the engine the billing commands drive.
type billingService interface {
	EnsureCustomer(ctx context.Context, tenantID uuid.UUID) (string, error)
	CreateSubscription(ctx context.Context, tenantID uuid.UUID, priceRef string) (billing.SubscriptionResult, error)
	ChangeTier(ctx context.Context, tenantID uuid.UUID, newTier tier.Tier) (tenant.SubscriptionStatus, error)
	CancelSubscription(ctx context.Context, tenantID uuid.UUID, immediate bool) error
	Resync(ctx context.Context, tenantID uuid.UUID) (tenant.BillingRef, error)
}

var _ billingService = (*meter.Engine)(nil)

var cancelImmediate bool

var billingCmd = &cobra.Command{
	Use:   "billing",
	Short: "Manage a tenant's subscription with the billing processor",
}

var billingResyncCmd = &cobra.Command{
	Use:   "resync <tenant-id>",
	Short: "Overwrite the tenant's billing state with the processor's subscription",
	Args:  cobra.ExactArgs(1),
	RunE: withBilling(func(ctx context.Context, svc billingService, w io.Writer, id uuid.UUID, _ []string) error {
		return billingResync(ctx, svc, w, id)
	}),
}

var billingCustomerCmd = &cobra.Command{
	Use:   "customer <tenant-id>",
	Short: "Create the processor customer if the tenant has none",
	Args:  cobra.ExactArgs(1),
	RunE: withBilling(func(ctx context.Context, svc billingService, w io.Writer, id uuid.UUID, _ []string) error {
		return billingCustomer(ctx, svc, w, id)
	}),
}

var billingSubscribeCmd = &cobra.Command{
	Use:   "subscribe <tenant-id> <price-ref>",
	Short: "Create a subscription for the tier sold under price-ref",
	Args:  cobra.ExactArgs(2),
	RunE: withBilling(func(ctx context.Context, svc billingService, w io.Writer, id uuid.UUID, args []string) error {
		return billingSubscribe(ctx, svc, w, id, args[0])
	}),
}

var billingChangeTierCmd = &cobra.Command{
	Use:   "change-tier <tenant-id> <tier>",
	Short: "Move the active subscription to another tier with proration",
	Args:  cobra.ExactArgs(2),
	RunE: withBilling(func(ctx context.Context, svc billingService, w io.Writer, id uuid.UUID, args []string) error {
		return billingChangeTier(ctx, svc, w, id, args[0])
	}),
}

var billingCancelCmd = &cobra.Command{
	Use:   "cancel <tenant-id>",
	Short: "Cancel the subscription at period end, or at once with --immediate",
	Args:  cobra.ExactArgs(1),
	RunE: withBilling(func(ctx context.Context, svc billingService, w io.Writer, id uuid.UUID, _ []string) error {
		return billingCancel(ctx, svc, w, id, cancelImmediate)
	}),
}

func init() {
	billingCancelCmd.Flags().BoolVar(&cancelImmediate, "immediate", false, "cancel now instead of at period end")
	billingCmd.AddCommand(billingResyncCmd, billingCustomerCmd, billingSubscribeCmd, billingChangeTierCmd, billingCancelCmd)
}

// withBilling parses the tenant id argument, bootstraps the engine and hands
// the remaining arguments to run.
func withBilling(run func(ctx context.Context, svc billingService, w io.Writer, id uuid.UUID, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := parseTenantID(args[0])
		if err != nil {
			return err
		}

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close(context.WithoutCancel(ctx))

		return run(ctx, a.engine, cmd.OutOrStdout(), id, args[1:])
	}
}

func parseTenantID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid tenant id %q: %w", s, err)
	}
	return id, nil
}

func billingResync(ctx context.Context, svc billingService, w io.Writer, id uuid.UUID) error {
	ref, err := svc.Resync(ctx, id)
	if err != nil {
		return err
	}
	return encodeJSON(w, ref)
}

func billingCustomer(ctx context.Context, svc billingService, w io.Writer, id uuid.UUID) error {
	customerID, err := svc.EnsureCustomer(ctx, id)
	if err != nil {
		return err
	}
	return encodeJSON(w, map[string]string{"customer_id": customerID})
}

func billingSubscribe(ctx context.Context, svc billingService, w io.Writer, id uuid.UUID, priceRef string) error {
	res, err := svc.CreateSubscription(ctx, id, priceRef)
	if err != nil {
		return err
	}
	return encodeJSON(w, res)
}

func billingChangeTier(ctx context.Context, svc billingService, w io.Writer, id uuid.UUID, name string) error {
	status, err := svc.ChangeTier(ctx, id, tier.Parse(name))
	if err != nil {
		return err
	}
	return encodeJSON(w, map[string]string{"status": string(status)})
}

func billingCancel(ctx context.Context, svc billingService, w io.Writer, id uuid.UUID, immediate bool) error {
	if err := svc.CancelSubscription(ctx, id, immediate); err != nil {
		return err
	}
	return encodeJSON(w, map[string]bool{"immediate": immediate})
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
