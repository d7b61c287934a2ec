// Command ordersctl is the operator CLI for the order service.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/imrishuroy/go-storefront-orders/internal/app"
	"github.com/imrishuroy/go-storefront-orders/internal/config"
	"github.com/imrishuroy/go-storefront-orders/internal/logging"
	"github.com/imrishuroy/go-storefront-orders/internal/metrics"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ordersctl",
		Short:         "Operate the storefront order service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Auth
	root.AddCommand(newTokenCmd())

	// Infrastructure
	root.AddCommand(newTablesCmd())

	// Orders
	root.AddCommand(newAnalyticsCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newReconcileCmd())
	return root
}

// bootApp loads config and wires the services against the configured store.
func bootApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.AppEnv)
	return app.New(ctx, cfg, app.Static(metrics.Nop{}))
}
