package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/railzwaylabs/orderetl/internal/pipeline"
	reportservice "github.com/railzwaylabs/orderetl/internal/report/service"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	var opts pipeline.Options
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest customers, then orders, reconcile and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			var runner *pipeline.Runner
			app := fx.New(pipelineOptions(flags.configFile, fx.Populate(&runner))...)
			if err := startApp(app); err != nil {
				return fmt.Errorf("run failed: %w", err)
			}
			defer stopApp(app)

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			summary, err := runner.Run(ctx, opts)
			if err != nil {
				return fmt.Errorf("run failed: %w", err)
			}
			return printSummary(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVar(&opts.CustomersPath, "customers", "", "customer roster CSV (overrides sources.customers)")
	cmd.Flags().StringVar(&opts.OrdersPath, "orders", "", "order feed XML (overrides sources.orders)")
	cmd.Flags().BoolVar(&opts.SkipReport, "skip-report", false, "do not compute the report after reconciliation")
	return cmd
}

func newReconcileCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Link orders without a customer to customers by mobile number",
		RunE: func(cmd *cobra.Command, args []string) error {
			var runner *pipeline.Runner
			app := fx.New(pipelineOptions(flags.configFile, fx.Populate(&runner))...)
			if err := startApp(app); err != nil {
				return fmt.Errorf("reconcile failed: %w", err)
			}
			defer stopApp(app)

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			resolved, err := runner.Reconcile(ctx)
			if err != nil {
				return fmt.Errorf("reconcile failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "orders linked to a customer: %d\n", resolved)
			return nil
		},
	}
}

func printSummary(w io.Writer, s pipeline.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tREAD\tOK\tDEAD_LETTERED")
	fmt.Fprintf(tw, "customers\t%d\t%d\t%d\n", s.Customers.Read, s.Customers.Upserted, s.Customers.DeadLettered)
	fmt.Fprintf(tw, "order lines\t%d\t%d\t%d\n", s.Orders.Lines, s.Orders.ItemsInserted, s.Orders.LinesDeadLettered)
	fmt.Fprintf(tw, "orders\t%d\t%d\t%d\n", s.Orders.Orders, s.Orders.OrdersUpserted, s.Orders.OrdersDeadLettered)
	fmt.Fprintf(tw, "reconciled\t-\t%d\t-\n", s.Reconciled)
	if err := tw.Flush(); err != nil {
		return err
	}

	if s.Report == nil {
		return nil
	}
	fmt.Fprintln(w)
	return reportservice.Render(w, s.Report)
}
