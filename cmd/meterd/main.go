// Command meterd runs the usage metering and billing reconciliation service.
//
//	meterd serve              HTTP API plus the periodic reconciliation trigger
//	meterd reconcile [tenant] one-shot reconciliation; exits 1 if any tenant failed
//	meterd migrate            apply the database migrations and exit
//	meterd billing <cmd>      resync, customer, subscribe, change-tier or cancel one tenant
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// errTenantsFailed makes the process exit non-zero without printing usage.
var errTenantsFailed = errors.New("one or more tenants failed to reconcile")

var rootCmd = &cobra.Command{
	Use:           "meterd",
	Short:         "Usage metering and billing reconciliation",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(serveCmd, reconcileCmd, migrateCmd, billingCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errTenantsFailed) {
			fmt.Fprintln(os.Stderr, "meterd:", err)
		}
		os.Exit(1)
	}
}
