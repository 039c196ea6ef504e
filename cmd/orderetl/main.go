package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/orderetl/internal/audit"
	"github.com/railzwaylabs/orderetl/internal/bootstrap"
	"github.com/railzwaylabs/orderetl/internal/clock"
	"github.com/railzwaylabs/orderetl/internal/config"
	"github.com/railzwaylabs/orderetl/internal/customer"
	"github.com/railzwaylabs/orderetl/internal/identity"
	"github.com/railzwaylabs/orderetl/internal/ingest"
	"github.com/railzwaylabs/orderetl/internal/migration"
	"github.com/railzwaylabs/orderetl/internal/observability"
	"github.com/railzwaylabs/orderetl/internal/order"
	"github.com/railzwaylabs/orderetl/internal/pipeline"
	"github.com/railzwaylabs/orderetl/internal/reconcile"
	"github.com/railzwaylabs/orderetl/internal/report"
	"github.com/railzwaylabs/orderetl/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	startTimeout = 2 * time.Minute
	stopTimeout  = 15 * time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootFlags struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "orderetl",
		Short:         "Customer roster and order feed ingestion",
		Version:       readVersionFromEnv(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "path to a YAML config file")
	root.AddCommand(
		newMigrateCmd(flags),
		newRunCmd(flags),
		newReconcileCmd(flags),
		newDeadLettersCmd(flags),
	)
	return root
}

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "migrate",
		Aliases: []string{"init-db"},
		Short:   "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(migrateOptions(flags.configFile)...)
			if err := startApp(app); err != nil {
				return fmt.Errorf("migrate failed: %w", err)
			}
			stopApp(app)
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

// baseOptions wires config, logging, metrics, ids, clock and the store connection.
func baseOptions(configFile string) []fx.Option {
	return []fx.Option{
		fx.Supply(config.File(configFile)),
		config.Module,
		observability.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: log.Named("fx")}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
		fx.Provide(registerSnowflake),
		clock.Module,
		db.Module,
	}
}

func migrateOptions(configFile string) []fx.Option {
	return append(baseOptions(configFile), migration.Module)
}

// pipelineOptions wires everything a run needs and refuses to start on a missing or stale schema.
func pipelineOptions(configFile string, extra ...fx.Option) []fx.Option {
	opts := append(baseOptions(configFile),
		customer.Module,
		order.Module,
		audit.Module,
		identity.Module,
		ingest.Module,
		reconcile.Module,
		report.Module,
		pipeline.Module,
		bootstrap.Module,
		fx.Invoke(bootstrap.EnforceSchemaGate),
	)
	return append(opts, extra...)
}

func registerSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.Snowflake.Node)
}

func startApp(app *fx.App) error {
	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	return app.Start(ctx)
}

func stopApp(app *fx.App) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	_ = app.Stop(ctx)
}

// signalContext is cancelled on SIGINT or SIGTERM so a long batch stops between rows.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
