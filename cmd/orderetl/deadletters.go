package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/railzwaylabs/orderetl/internal/audit/domain"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newDeadLettersCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deadletters",
		Short: "Inspect the dead-letter audit trail",
	}
	cmd.AddCommand(newDeadLettersExportCmd(flags))
	return cmd
}

func newDeadLettersExportCmd(flags *rootFlags) *cobra.Command {
	var (
		format string
		out    string
		tag    string
		runID  string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export dead letters as CSV or JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := auditdomain.ExportRequest{
				Source: tag,
				Format: auditdomain.ExportFormat(format),
			}
			if runID != "" {
				id, err := strconv.ParseInt(runID, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid --run-id %q: %w", runID, err)
				}
				sid := snowflake.ID(id)
				req.RunID = &sid
			}

			var exporter auditdomain.ExportService
			app := fx.New(pipelineOptions(flags.configFile, fx.Populate(&exporter))...)
			if err := startApp(app); err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			defer stopApp(app)

			result, err := exporter.Export(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			if out == "" {
				if _, err := cmd.OutOrStdout().Write(result.Data); err != nil {
					return err
				}
			} else if err := os.WriteFile(out, result.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d dead letters (%s, sha256 %s)\n", result.Count, result.Format, result.Checksum)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", string(auditdomain.ExportFormatCSV), "output format: csv or json")
	cmd.Flags().StringVar(&out, "out", "", "write to this file instead of stdout")
	cmd.Flags().StringVar(&tag, "source", "", "only this source tag (customers, orders, order_items, orders_upsert)")
	cmd.Flags().StringVar(&runID, "run-id", "", "only dead letters written by this ingest run")
	return cmd
}
