package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus/testutil"
	auditdomain "github.com/railzwaylabs/orderetl/internal/audit/domain"
	auditrepo "github.com/railzwaylabs/orderetl/internal/audit/repository"
	"github.com/railzwaylabs/orderetl/internal/clock"
	customerdomain "github.com/railzwaylabs/orderetl/internal/customer/domain"
	customerrepo "github.com/railzwaylabs/orderetl/internal/customer/repository"
	"github.com/railzwaylabs/orderetl/internal/identity"
	"github.com/railzwaylabs/orderetl/internal/observability"
	orderdomain "github.com/railzwaylabs/orderetl/internal/order/domain"
	orderrepo "github.com/railzwaylabs/orderetl/internal/order/repository"
	"github.com/railzwaylabs/orderetl/internal/source"
	"github.com/railzwaylabs/orderetl/pkg/db/dbtest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	engine    *Engine
	metrics   *observability.Metrics
	node      *snowflake.Node
	customers customerdomain.Repository
	orders    orderdomain.Repository
	audit     auditdomain.Repository
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	conn := dbtest.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	f := fixture{
		db:        conn,
		metrics:   observability.NewMetrics(),
		node:      node,
		customers: customerrepo.Provide(),
		orders:    orderrepo.Provide(),
		audit:     auditrepo.Provide(),
	}
	f.engine = NewEngine(Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clock.Fixed{At: time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)},
		Metrics:   f.metrics,
		Customers: f.customers,
		Orders:    f.orders,
		Audit:     f.audit,
		Resolver:  identity.NewResolver(identity.Params{DB: conn, Repo: f.customers}),
	})
	return f
}

func readCustomers(t *testing.T, csv string) source.Batch[source.CustomerRecord] {
	t.Helper()
	batch, err := source.ReadCustomers(strings.NewReader(csv))
	require.NoError(t, err)
	return batch
}

func readOrders(t *testing.T, xml string) source.Batch[source.OrderLine] {
	t.Helper()
	batch, err := source.ReadOrders(strings.NewReader(xml))
	require.NoError(t, err)
	return batch
}

func (f fixture) deadLetters(t *testing.T, tag string) int64 {
	t.Helper()
	n, err := f.audit.CountDeadLetters(context.Background(), f.db, tag)
	require.NoError(t, err)
	return n
}

const roster = `customer_id,customer_name,mobile_number,region
C1,Asha Rao,+91 98765-43210,South
C2,Ravi Kumar,09123456780,
`

func TestIngestCustomersIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	summary, err := f.engine.IngestCustomers(ctx, f.node.Generate(), readCustomers(t, roster))
	require.NoError(t, err)
	assert.Equal(t, CustomerSummary{Read: 2, Upserted: 2}, summary)

	summary, err = f.engine.IngestCustomers(ctx, f.node.Generate(), readCustomers(t, roster))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Upserted)

	count, err := f.customers.Count(ctx, f.db)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	c2, err := f.customers.FindByID(ctx, f.db, "C2")
	require.NoError(t, err)
	require.NotNil(t, c2)
	assert.Equal(t, customerdomain.DefaultRegion, c2.Region)
	require.NotNil(t, c2.MobileNumber)
	assert.Equal(t, "9123456780", *c2.MobileNumber)
}

func TestIngestCustomersOverwritesOnConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.IngestCustomers(ctx, f.node.Generate(), readCustomers(t, roster))
	require.NoError(t, err)

	updated := "customer_id,customer_name,mobile_number,region\nC1,Asha R.,,North\n"
	_, err = f.engine.IngestCustomers(ctx, f.node.Generate(), readCustomers(t, updated))
	require.NoError(t, err)

	c1, err := f.customers.FindByID(ctx, f.db, "C1")
	require.NoError(t, err)
	require.NotNil(t, c1)
	assert.Equal(t, "Asha R.", c1.CustomerName)
	assert.Equal(t, "North", c1.Region)
	assert.Nil(t, c1.MobileNumber)
}

func TestIngestCustomersDeadLettersRejectedRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.db.Exec("CREATE UNIQUE INDEX ux_customers_mobile ON customers (mobile_number)").Error)

	input := `customer_id,customer_name,mobile_number,region
C1,Asha Rao,9876543210,South
C2,Duplicate,+91 98765-43210,South
C3,Meera,9000000001,West
`
	runID := f.node.Generate()
	summary, err := f.engine.IngestCustomers(ctx, runID, readCustomers(t, input))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Upserted)
	assert.Equal(t, 1, summary.DeadLettered)

	assert.Equal(t, int64(1), f.deadLetters(t, auditdomain.SourceCustomers))
	assert.Equal(t, int64(1), f.deadLetters(t, ""))

	c3, err := f.customers.FindByID(ctx, f.db, "C3")
	require.NoError(t, err)
	assert.NotNil(t, c3)

	records, err := f.audit.ListDeadLetters(ctx, f.db, auditdomain.DeadLetterFilter{RunID: &runID})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, string(records[0].RawData), "Duplicate")
	assert.NotEmpty(t, records[0].ErrorMessage)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.DeadLetters.WithLabelValues(auditdomain.SourceCustomers)))
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.RowsProcessed.WithLabelValues(StageCustomers, observability.OutcomeOK)))
}

func TestIngestCustomersDeadLettersMissingID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	input := "customer_id,customer_name,mobile_number,region\n,No Id,9876543210,South\nC1,Asha,,\n"
	summary, err := f.engine.IngestCustomers(ctx, f.node.Generate(), readCustomers(t, input))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Upserted)
	assert.Equal(t, int64(1), f.deadLetters(t, auditdomain.SourceCustomers))
}

func TestIngestCustomersStopsWhenStoreUnavailable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := newFixture(t)

	_, err := f.engine.IngestCustomers(ctx, f.node.Generate(), readCustomers(t, roster))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIngestOrdersTakesMaxTotal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	feed := `<orders>
  <order><order_id>O1</order_id><mobile_number>9876543210</mobile_number><order_date_time>2024-03-15T10:30:00Z</order_date_time><sku_id>A</sku_id><sku_count>1</sku_count><total_amount>100</total_amount></order>
  <order><order_id>O1</order_id><mobile_number>9876543210</mobile_number><order_date_time>2024-03-15T10:30:00Z</order_date_time><sku_id>B</sku_id><sku_count>2</sku_count><total_amount>100</total_amount></order>
</orders>`

	summary, err := f.engine.IngestOrders(ctx, f.node.Generate(), readOrders(t, feed))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ItemsInserted)
	assert.Equal(t, 1, summary.Orders)
	assert.Equal(t, 1, summary.OrdersUpserted)

	count, err := f.orders.Count(ctx, f.db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	items, err := f.orders.CountItems(ctx, f.db, "O1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), items)

	o1, err := f.orders.FindByID(ctx, f.db, "O1")
	require.NoError(t, err)
	require.NotNil(t, o1)
	assert.True(t, decimal.NewFromInt(100).Equal(o1.OrderTotal), "got %s", o1.OrderTotal)
	assert.Nil(t, o1.CustomerID)
}

func TestGroupLinesKeepsFirstLineAndMaxTotal(t *testing.T) {
	m1, m2 := "1111111111", "2222222222"
	lines := []source.OrderLine{
		{Line: 1, OrderID: "O2", MobileNumber: &m1, TotalAmount: decimal.NewFromInt(40)},
		{Line: 2, OrderID: "O1", MobileNumber: &m2, TotalAmount: decimal.NewFromInt(10)},
		{Line: 3, OrderID: "O2", MobileNumber: &m2, TotalAmount: decimal.NewFromInt(55)},
		{Line: 4, OrderID: "O2", MobileNumber: &m2, TotalAmount: decimal.NewFromInt(20)},
	}

	groups := groupLines(lines)
	require.Len(t, groups, 2)
	assert.Equal(t, "O2", groups[0].first.OrderID)
	assert.Equal(t, m1, *groups[0].first.MobileNumber)
	assert.True(t, decimal.NewFromInt(55).Equal(groups[0].total))
	assert.Equal(t, []int{1, 3, 4}, groups[0].lines)
	assert.Equal(t, "O1", groups[1].first.OrderID)
}

func TestIngestOrdersBadTimestampIsNotDeadLettered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	feed := `<orders>
  <order><order_id>O9</order_id><mobile_number>9876543210</mobile_number><order_date_time>15/03/2024 25:99</order_date_time><sku_id>A</sku_id><sku_count>1</sku_count><total_amount>49.99</total_amount></order>
</orders>`

	summary, err := f.engine.IngestOrders(ctx, f.node.Generate(), readOrders(t, feed))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.DeadLettered)
	assert.Equal(t, int64(0), f.deadLetters(t, ""))

	o9, err := f.orders.FindByID(ctx, f.db, "O9")
	require.NoError(t, err)
	require.NotNil(t, o9)
	assert.Nil(t, o9.OrderDateTime)

	items, err := f.orders.CountItems(ctx, f.db, "O9")
	require.NoError(t, err)
	assert.Equal(t, int64(1), items)
}

func TestIngestOrdersDeadLettersUndecodableLines(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	feed := `<orders>
  <order><order_id>O1</order_id><sku_count>lots</sku_count></order>
  <order><order_id>O2</order_id><sku_id>A</sku_id><sku_count>1</sku_count><total_amount>5</total_amount></order>
</orders>`

	summary, err := f.engine.IngestOrders(ctx, f.node.Generate(), readOrders(t, feed))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Lines)
	assert.Equal(t, 1, summary.ItemsInserted)
	assert.Equal(t, 1, summary.LinesDeadLettered)
	assert.Equal(t, 0, summary.OrdersDeadLettered)
	assert.Equal(t, 1, summary.DeadLettered)
	assert.Equal(t, int64(1), f.deadLetters(t, auditdomain.SourceOrders))
}

func TestIngestOrdersCountsGroupDeadLettersApart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.db.Exec(
		`CREATE TRIGGER reject_order_o2 BEFORE INSERT ON orders
		 WHEN NEW.order_id = 'O2'
		 BEGIN SELECT RAISE(ABORT, 'order rejected'); END`,
	).Error)

	feed := `<orders>
  <order><order_id>O1</order_id><sku_id>A</sku_id><sku_count>1</sku_count><total_amount>5</total_amount></order>
  <order><order_id>O2</order_id><sku_id>A</sku_id><sku_count>1</sku_count><total_amount>7</total_amount></order>
  <order><order_id>O2</order_id><sku_id>B</sku_id><sku_count>x</sku_count><total_amount>7</total_amount></order>
</orders>`

	summary, err := f.engine.IngestOrders(ctx, f.node.Generate(), readOrders(t, feed))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Lines)
	assert.Equal(t, 2, summary.ItemsInserted)
	assert.Equal(t, 1, summary.LinesDeadLettered)
	assert.Equal(t, 2, summary.Orders)
	assert.Equal(t, 1, summary.OrdersUpserted)
	assert.Equal(t, 1, summary.OrdersDeadLettered)
	assert.Equal(t, 2, summary.DeadLettered)
	assert.Equal(t, int64(1), f.deadLetters(t, auditdomain.SourceOrders))
	assert.Equal(t, int64(1), f.deadLetters(t, auditdomain.SourceOrdersUpsert))
}

func TestIngestOrdersResolvesKnownCustomer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.IngestCustomers(ctx, f.node.Generate(), readCustomers(t, roster))
	require.NoError(t, err)

	feed := `<orders><order><order_id>O1</order_id><mobile_number>+91-9876543210</mobile_number><sku_id>A</sku_id><sku_count>1</sku_count><total_amount>10</total_amount></order></orders>`
	summary, err := f.engine.IngestOrders(ctx, f.node.Generate(), readOrders(t, feed))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Resolved)

	o1, err := f.orders.FindByID(ctx, f.db, "O1")
	require.NoError(t, err)
	require.NotNil(t, o1)
	require.NotNil(t, o1.CustomerID)
	assert.Equal(t, "C1", *o1.CustomerID)

	// A rerun with a number nobody holds keeps the resolved customer.
	rerun := `<orders><order><order_id>O1</order_id><mobile_number>5555555555</mobile_number><sku_id>A</sku_id><sku_count>1</sku_count><total_amount>12</total_amount></order></orders>`
	_, err = f.engine.IngestOrders(ctx, f.node.Generate(), readOrders(t, rerun))
	require.NoError(t, err)

	o1, err = f.orders.FindByID(ctx, f.db, "O1")
	require.NoError(t, err)
	require.NotNil(t, o1.CustomerID)
	assert.Equal(t, "C1", *o1.CustomerID)
	require.NotNil(t, o1.MobileNumber)
	assert.Equal(t, "5555555555", *o1.MobileNumber)
	assert.True(t, decimal.NewFromInt(12).Equal(o1.OrderTotal))

	items, err := f.orders.CountItems(ctx, f.db, "O1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), items)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindOK, classify(nil, nil).Kind)
	assert.Equal(t, KindRejected, classify(gorm.ErrDuplicatedKey, nil).Kind)
	assert.Equal(t, KindUnavailable, classify(context.DeadlineExceeded, nil).Kind)
}
