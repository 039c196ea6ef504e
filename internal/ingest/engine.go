// Package ingest persists decoded source records. Every row is its own unit of work: a row the store
// refuses is written to the dead-letter trail and the batch moves on; a store that cannot be reached
// stops the batch.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/railzwaylabs/orderetl/internal/audit/domain"
	"github.com/railzwaylabs/orderetl/internal/clock"
	customerdomain "github.com/railzwaylabs/orderetl/internal/customer/domain"
	"github.com/railzwaylabs/orderetl/internal/identity"
	"github.com/railzwaylabs/orderetl/internal/normalize"
	"github.com/railzwaylabs/orderetl/internal/observability"
	orderdomain "github.com/railzwaylabs/orderetl/internal/order/domain"
	"github.com/railzwaylabs/orderetl/internal/source"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Stage labels used in metrics and logs.
const (
	StageCustomers  = "customers"
	StageOrderItems = "order_items"
	StageOrders     = "orders"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Metrics   *observability.Metrics
	Customers customerdomain.Repository
	Orders    orderdomain.Repository
	Audit     auditdomain.Repository
	Resolver  identity.Resolver
}

type Engine struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	metrics   *observability.Metrics
	customers customerdomain.Repository
	orders    orderdomain.Repository
	audit     auditdomain.Repository
	resolver  identity.Resolver
}

func NewEngine(p Params) *Engine {
	return &Engine{
		db:        p.DB,
		log:       p.Log.Named("ingest.engine"),
		genID:     p.GenID,
		clock:     p.Clock,
		metrics:   p.Metrics,
		customers: p.Customers,
		orders:    p.Orders,
		audit:     p.Audit,
		resolver:  p.Resolver,
	}
}

type CustomerSummary struct {
	Read         int
	Upserted     int
	DeadLettered int
}

// OrderSummary counts per line and per order group. DeadLettered is the sum of both dead-letter counts.
type OrderSummary struct {
	Lines              int
	ItemsInserted      int
	LinesDeadLettered  int
	Orders             int
	OrdersUpserted     int
	OrdersDeadLettered int
	Resolved           int
	DeadLettered       int
}

type linePayload struct {
	Line   int `json:"line"`
	Record any `json:"record"`
}

type orderPayload struct {
	OrderID       string          `json:"order_id"`
	MobileNumber  *string         `json:"mobile_number"`
	CustomerID    *string         `json:"customer_id"`
	OrderDateTime *time.Time      `json:"order_date_time"`
	OrderTotal    decimal.Decimal `json:"order_total"`
	Lines         []int           `json:"lines"`
}

// IngestCustomers upserts every roster record by customer_id and returns how many landed.
func (e *Engine) IngestCustomers(ctx context.Context, runID snowflake.ID, batch source.Batch[source.CustomerRecord]) (CustomerSummary, error) {
	summary := CustomerSummary{Read: batch.Len()}

	for _, f := range batch.Failures {
		res := invalid(f.Err, linePayload{Line: f.Line, Record: f.Raw})
		if err := e.handle(ctx, runID, StageCustomers, auditdomain.SourceCustomers, res); err != nil {
			return summary, err
		}
		summary.DeadLettered++
	}

	for _, rec := range batch.Records {
		res := e.upsertCustomer(ctx, rec)
		if err := e.handle(ctx, runID, StageCustomers, auditdomain.SourceCustomers, res); err != nil {
			return summary, err
		}
		if res.Kind == KindOK {
			summary.Upserted++
		} else {
			summary.DeadLettered++
		}
	}

	e.log.Info("customers ingested",
		zap.String("run_id", runID.String()),
		zap.Int("read", summary.Read),
		zap.Int("upserted", summary.Upserted),
		zap.Int("dead_lettered", summary.DeadLettered),
	)
	return summary, nil
}

func (e *Engine) upsertCustomer(ctx context.Context, rec source.CustomerRecord) Result {
	payload := linePayload{Line: rec.Line, Record: rec.Raw}

	id := normalize.Text(rec.CustomerID)
	if id == "" {
		return invalid(customerdomain.ErrInvalidCustomerID, payload)
	}
	region := normalize.Text(rec.Region)
	if region == "" {
		region = customerdomain.DefaultRegion
	}

	now := e.clock.Now(ctx)
	customer := &customerdomain.Customer{
		CustomerID:   id,
		CustomerName: normalize.Text(rec.CustomerName),
		MobileNumber: normalize.Mobile(rec.MobileNumber),
		Region:       region,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return classify(e.customers.Upsert(ctx, e.db, customer), payload)
}

// IngestOrders appends every decoded line as an order item, then upserts one order per order_id.
// Lines of a group share mobile number and timestamp, taken from the first line; every line repeats
// the full order total, so the order total is the largest one seen.
func (e *Engine) IngestOrders(ctx context.Context, runID snowflake.ID, batch source.Batch[source.OrderLine]) (OrderSummary, error) {
	summary := OrderSummary{Lines: batch.Len()}

	for _, f := range batch.Failures {
		res := invalid(f.Err, linePayload{Line: f.Line, Record: f.Raw})
		if err := e.handle(ctx, runID, StageOrderItems, auditdomain.SourceOrders, res); err != nil {
			return summary, err
		}
		summary.LinesDeadLettered++
		summary.DeadLettered++
	}

	for _, line := range batch.Records {
		if line.AmountInvalid {
			e.log.Warn("unparseable total_amount read as zero",
				zap.String("order_id", line.OrderID),
				zap.Int("line", line.Line),
				zap.String("total_amount", line.Raw.TotalAmount),
			)
		}

		res := e.insertItem(ctx, runID, line)
		if err := e.handle(ctx, runID, StageOrderItems, auditdomain.SourceOrderItems, res); err != nil {
			return summary, err
		}
		if res.Kind == KindOK {
			summary.ItemsInserted++
		} else {
			summary.LinesDeadLettered++
			summary.DeadLettered++
		}
	}

	groups := groupLines(batch.Records)
	summary.Orders = len(groups)
	for _, g := range groups {
		res, resolved := e.upsertOrder(ctx, g)
		if err := e.handle(ctx, runID, StageOrders, auditdomain.SourceOrdersUpsert, res); err != nil {
			return summary, err
		}
		if res.Kind == KindOK {
			summary.OrdersUpserted++
			if resolved {
				summary.Resolved++
			}
		} else {
			summary.OrdersDeadLettered++
			summary.DeadLettered++
		}
	}

	e.log.Info("orders ingested",
		zap.String("run_id", runID.String()),
		zap.Int("lines", summary.Lines),
		zap.Int("items_inserted", summary.ItemsInserted),
		zap.Int("lines_dead_lettered", summary.LinesDeadLettered),
		zap.Int("orders", summary.Orders),
		zap.Int("orders_upserted", summary.OrdersUpserted),
		zap.Int("orders_dead_lettered", summary.OrdersDeadLettered),
		zap.Int("resolved_at_ingest", summary.Resolved),
	)
	return summary, nil
}

func (e *Engine) insertItem(ctx context.Context, runID snowflake.ID, line source.OrderLine) Result {
	item := &orderdomain.OrderItem{
		RunID:      runID,
		OrderID:    line.OrderID,
		SkuID:      line.SkuID,
		SkuCount:   line.SkuCount,
		LineAmount: line.TotalAmount,
		CreatedAt:  e.clock.Now(ctx),
	}
	return classify(e.orders.InsertItem(ctx, e.db, item), linePayload{Line: line.Line, Record: line.Raw})
}

type orderGroup struct {
	first source.OrderLine
	total decimal.Decimal
	lines []int
}

// groupLines keeps groups in order of first appearance.
func groupLines(lines []source.OrderLine) []*orderGroup {
	index := make(map[string]*orderGroup, len(lines))
	groups := make([]*orderGroup, 0, len(lines))
	for _, line := range lines {
		g, ok := index[line.OrderID]
		if !ok {
			g = &orderGroup{first: line, total: line.TotalAmount}
			index[line.OrderID] = g
			groups = append(groups, g)
		} else if line.TotalAmount.GreaterThan(g.total) {
			g.total = line.TotalAmount
		}
		g.lines = append(g.lines, line.Line)
	}
	return groups
}

func (e *Engine) upsertOrder(ctx context.Context, g *orderGroup) (Result, bool) {
	customerID, err := e.resolver.Resolve(ctx, g.first.MobileNumber)
	if err != nil {
		e.log.Warn("customer lookup failed, order left unresolved",
			zap.String("order_id", g.first.OrderID),
			zap.Error(err),
		)
		customerID = nil
	}

	order := &orderdomain.Order{
		OrderID:       g.first.OrderID,
		MobileNumber:  g.first.MobileNumber,
		CustomerID:    customerID,
		OrderDateTime: g.first.OrderDateTime,
		OrderTotal:    g.total,
		UpdatedAt:     e.clock.Now(ctx),
	}
	payload := orderPayload{
		OrderID:       order.OrderID,
		MobileNumber:  order.MobileNumber,
		CustomerID:    order.CustomerID,
		OrderDateTime: order.OrderDateTime,
		OrderTotal:    order.OrderTotal,
		Lines:         g.lines,
	}
	return classify(e.orders.Upsert(ctx, e.db, order), payload), customerID != nil
}

// handle records the outcome of one row. It returns an error only when the batch must stop.
func (e *Engine) handle(ctx context.Context, runID snowflake.ID, stage, tag string, res Result) error {
	switch res.Kind {
	case KindOK:
		e.metrics.RowsProcessed.WithLabelValues(stage, observability.OutcomeOK).Inc()
		return nil
	case KindUnavailable:
		e.log.Error("store unavailable, stopping batch",
			zap.String("stage", stage),
			zap.Error(res.Err),
		)
		return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, stage, res.Err)
	case KindInvalid, KindRejected:
		e.log.Warn("row diverted to dead letter",
			zap.String("source", tag),
			zap.String("kind", res.Kind.String()),
			zap.Error(res.Err),
		)
		if err := e.writeDeadLetter(ctx, runID, tag, res); err != nil {
			e.log.Error("dead letter write failed, stopping batch",
				zap.String("source", tag),
				zap.Error(err),
			)
			return fmt.Errorf("%w: write dead letter: %w", ErrStoreUnavailable, err)
		}
		e.metrics.RowsProcessed.WithLabelValues(stage, observability.OutcomeDeadLetter).Inc()
		e.metrics.DeadLetters.WithLabelValues(tag).Inc()
		return nil
	default:
		return fmt.Errorf("unexpected result kind %d", res.Kind)
	}
}

func (e *Engine) writeDeadLetter(ctx context.Context, runID snowflake.ID, tag string, res Result) error {
	raw, err := json.Marshal(res.Payload)
	if err != nil {
		raw, _ = json.Marshal(fmt.Sprintf("%+v", res.Payload))
	}

	message := "unknown error"
	if res.Err != nil {
		message = res.Err.Error()
	}

	return e.audit.InsertDeadLetter(ctx, e.db, &auditdomain.DeadLetter{
		ID:           e.genID.Generate(),
		RunID:        runID,
		Source:       tag,
		RawData:      datatypes.JSON(raw),
		ErrorMessage: message,
		CreatedAt:    e.clock.Now(ctx),
	})
}
