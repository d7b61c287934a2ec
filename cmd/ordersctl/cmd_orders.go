package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imrishuroy/go-storefront-orders/internal/orders"
)

// ordersctl analytics
func newAnalyticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Print the analytics summary as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(cmd.Context()) }()

			summary, err := a.Analytics.Compute(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
}

// ordersctl status <order-id> <status>
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <order-id> <status>",
		Short: "Move an order forward in the fulfilment workflow",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			next := orders.Status(args[1])
			if !next.Valid() {
				return fmt.Errorf("%w: %q (one of %v)", orders.ErrUnknownStatus, args[1], orders.Statuses)
			}
			a, err := bootApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(cmd.Context()) }()

			o, err := a.Workflow.UpdateStatus(cmd.Context(), args[0], next)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (paid=%t)\n", o.OrderID, o.Status, o.Payment)
			return nil
		},
	}
}

// ordersctl reconcile <gateway-order-id>
func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <gateway-order-id>",
		Short: "Verify a gateway payment and mark its order paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(cmd.Context()) }()

			v, err := a.Checkout.VerifyPayment(cmd.Context(), "", args[0])
			if err != nil {
				return err
			}
			if v.AlreadyPaid {
				fmt.Fprintf(cmd.OutOrStdout(), "%s was already paid\n", v.OrderID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s marked paid\n", v.OrderID)
			return nil
		},
	}
}
