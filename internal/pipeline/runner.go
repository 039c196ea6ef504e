// Package pipeline drives one batch run: customer roster, order feed, reconciliation, report.
package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/railzwaylabs/orderetl/internal/audit/domain"
	"github.com/railzwaylabs/orderetl/internal/clock"
	"github.com/railzwaylabs/orderetl/internal/config"
	"github.com/railzwaylabs/orderetl/internal/ingest"
	"github.com/railzwaylabs/orderetl/internal/observability"
	"github.com/railzwaylabs/orderetl/internal/reconcile"
	reportdomain "github.com/railzwaylabs/orderetl/internal/report/domain"
	"github.com/railzwaylabs/orderetl/internal/source"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const stageReconcile = "reconcile"

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Config  config.Config
	GenID   *snowflake.Node
	Clock   clock.Clock
	Metrics *observability.Metrics
	Audit   auditdomain.Repository
	Engine  *ingest.Engine
	Pass    *reconcile.Pass
	Report  reportdomain.Service
}

type Runner struct {
	db      *gorm.DB
	log     *zap.Logger
	cfg     config.Config
	genID   *snowflake.Node
	clock   clock.Clock
	metrics *observability.Metrics
	audit   auditdomain.Repository
	engine  *ingest.Engine
	pass    *reconcile.Pass
	report  reportdomain.Service
}

func New(p Params) *Runner {
	return &Runner{
		db:      p.DB,
		log:     p.Log.Named("pipeline.runner"),
		cfg:     p.Config,
		genID:   p.GenID,
		clock:   p.Clock,
		metrics: p.Metrics,
		audit:   p.Audit,
		engine:  p.Engine,
		pass:    p.Pass,
		report:  p.Report,
	}
}

// Options override the configured source paths for a single run. Empty fields fall back to config.
type Options struct {
	CustomersPath string
	OrdersPath    string
	SkipReport    bool
}

type Summary struct {
	CustomersRunID *snowflake.ID
	Customers      ingest.CustomerSummary
	OrdersRunID    *snowflake.ID
	Orders         ingest.OrderSummary
	Reconciled     int64
	Report         *reportdomain.Report
}

// Run executes customer ingestion, order ingestion, reconciliation and the report, in that order.
// A missing source file is skipped with a warning. Only a store failure stops the run.
func (r *Runner) Run(ctx context.Context, opts Options) (summary Summary, err error) {
	defer r.writeMetrics()

	customersPath := firstNonEmpty(opts.CustomersPath, r.cfg.Sources.Customers)
	ordersPath := firstNonEmpty(opts.OrdersPath, r.cfg.Sources.Orders)

	err = r.stage(ctx, ingest.StageCustomers, auditdomain.SourceCustomers, customersPath, func(runID snowflake.ID, f io.Reader) (int, int, int, error) {
		batch, err := source.ReadCustomers(f)
		if err != nil {
			return 0, 0, 0, err
		}
		summary.CustomersRunID = &runID
		summary.Customers, err = r.engine.IngestCustomers(ctx, runID, batch)
		return summary.Customers.Read, summary.Customers.Upserted, summary.Customers.DeadLettered, err
	})
	if err != nil {
		return summary, err
	}

	err = r.stage(ctx, ingest.StageOrders, auditdomain.SourceOrders, ordersPath, func(runID snowflake.ID, f io.Reader) (int, int, int, error) {
		batch, err := source.ReadOrders(f)
		if err != nil {
			return 0, 0, 0, err
		}
		summary.OrdersRunID = &runID
		summary.Orders, err = r.engine.IngestOrders(ctx, runID, batch)
		return summary.Orders.Lines, summary.Orders.ItemsInserted, summary.Orders.LinesDeadLettered, err
	})
	if err != nil {
		return summary, err
	}

	if summary.Reconciled, err = r.Reconcile(ctx); err != nil {
		return summary, err
	}

	if r.cfg.Report.Enabled && !opts.SkipReport {
		if summary.Report, err = r.report.Generate(ctx); err != nil {
			return summary, fmt.Errorf("generate report: %w", err)
		}
	}

	r.metrics.LastSuccess.Set(float64(r.clock.Now(ctx).Unix()))
	r.log.Info("run complete",
		zap.Int("customers_upserted", summary.Customers.Upserted),
		zap.Int("order_lines", summary.Orders.Lines),
		zap.Int("orders_upserted", summary.Orders.OrdersUpserted),
		zap.Int64("reconciled", summary.Reconciled),
		zap.Int("dead_lettered", summary.Customers.DeadLettered+summary.Orders.DeadLettered),
	)
	return summary, nil
}

// Reconcile runs the reconciliation pass on its own.
func (r *Runner) Reconcile(ctx context.Context) (int64, error) {
	started := time.Now()
	defer r.observe(stageReconcile, started)

	return r.pass.Run(ctx)
}

type ingestFunc func(runID snowflake.ID, f io.Reader) (read, ok, failed int, err error)

// stage reads one source file through fn and keeps its ingest_runs row.
func (r *Runner) stage(ctx context.Context, stage, tag, path string, fn ingestFunc) error {
	started := time.Now()
	defer r.observe(stage, started)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.log.Warn("source file not found, skipping", zap.String("stage", stage), zap.String("path", path))
			return nil
		}
		return fmt.Errorf("read %s source: %w", stage, err)
	}

	sum := sha256.Sum256(data)
	run := &auditdomain.IngestRun{
		ID:        r.genID.Generate(),
		Source:    tag,
		Path:      path,
		Checksum:  hex.EncodeToString(sum[:]),
		Status:    auditdomain.RunStatusRunning,
		StartedAt: r.clock.Now(ctx),
	}

	if err := r.audit.InsertRun(ctx, r.db, run); err != nil {
		return fmt.Errorf("%w: open ingest run: %w", ingest.ErrStoreUnavailable, err)
	}
	r.log.Info("ingesting source",
		zap.String("stage", stage),
		zap.String("path", path),
		zap.String("run_id", run.ID.String()),
		zap.String("checksum", run.Checksum),
	)

	read, ok, failed, err := fn(run.ID, bytes.NewReader(data))
	run.RowsRead, run.RowsOK, run.RowsFailed = read, ok, failed
	run.Status = auditdomain.RunStatusCompleted
	if err != nil {
		run.Status = auditdomain.RunStatusAborted
	}
	finished := r.clock.Now(ctx)
	run.FinishedAt = &finished

	if ferr := r.audit.FinishRun(context.WithoutCancel(ctx), r.db, run); ferr != nil {
		r.log.Error("failed to close ingest run", zap.String("run_id", run.ID.String()), zap.Error(ferr))
		if err == nil {
			err = fmt.Errorf("%w: close ingest run: %w", ingest.ErrStoreUnavailable, ferr)
		}
	}
	return err
}

func (r *Runner) observe(stage string, started time.Time) {
	r.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

func (r *Runner) writeMetrics() {
	path := r.cfg.Metrics.Textfile
	if path == "" {
		return
	}
	if err := r.metrics.WriteTextfile(path); err != nil {
		r.log.Warn("failed to write metrics textfile", zap.String("path", path), zap.Error(err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
