package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/railzwaylabs/orderetl/internal/clock"
	"github.com/railzwaylabs/orderetl/internal/config"
	orderdomain "github.com/railzwaylabs/orderetl/internal/order/domain"
	reportdomain "github.com/railzwaylabs/orderetl/internal/report/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Config config.Config
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	days  int
	limit int
}

func New(p Params) reportdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("report.service"),
		clock: p.Clock,
		days:  p.Config.Report.TopSpendersDays,
		limit: p.Config.Report.TopSpendersLimit,
	}
}

func (s *Service) Generate(ctx context.Context) (*reportdomain.Report, error) {
	now := s.clock.Now(ctx)
	report := &reportdomain.Report{
		GeneratedAt:      now,
		TopSpendersSince: now.AddDate(0, 0, -s.days),
	}

	var err error
	if report.RepeatCustomers, err = s.repeatCustomers(ctx); err != nil {
		return nil, fmt.Errorf("repeat customers: %w", err)
	}
	if report.MonthlyTrends, err = s.monthlyTrends(ctx); err != nil {
		return nil, fmt.Errorf("monthly trends: %w", err)
	}
	if report.RegionalRevenue, err = s.regionalRevenue(ctx); err != nil {
		return nil, fmt.Errorf("regional revenue: %w", err)
	}
	if report.TopSpenders, err = s.topSpenders(ctx, report.TopSpendersSince); err != nil {
		return nil, fmt.Errorf("top spenders: %w", err)
	}

	s.log.Info("report generated",
		zap.Int("repeat_customers", len(report.RepeatCustomers)),
		zap.Int("months", len(report.MonthlyTrends)),
		zap.Int("regions", len(report.RegionalRevenue)),
		zap.Int("top_spenders", len(report.TopSpenders)),
	)
	return report, nil
}

func (s *Service) repeatCustomers(ctx context.Context) ([]reportdomain.RepeatCustomer, error) {
	var rows []reportdomain.RepeatCustomer
	err := s.db.WithContext(ctx).Raw(
		`SELECT c.customer_id, c.customer_name, COUNT(DISTINCT o.order_id) AS orders_count
		 FROM customers c
		 JOIN orders o ON o.customer_id = c.customer_id
		 GROUP BY c.customer_id, c.customer_name
		 HAVING COUNT(DISTINCT o.order_id) > 1
		 ORDER BY orders_count DESC, c.customer_id ASC`,
	).Scan(&rows).Error
	return rows, err
}

// monthlyTrends buckets in Go; month extraction differs on every dialect.
func (s *Service) monthlyTrends(ctx context.Context) ([]reportdomain.MonthlyTrend, error) {
	var orders []orderdomain.Order
	err := s.db.WithContext(ctx).
		Select("order_id", "order_date_time").
		Where("order_date_time IS NOT NULL").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	for _, o := range orders {
		if o.OrderDateTime == nil {
			continue
		}
		counts[o.OrderDateTime.UTC().Format(reportdomain.MonthLayout)]++
	}

	trends := make([]reportdomain.MonthlyTrend, 0, len(counts))
	for month, n := range counts {
		trends = append(trends, reportdomain.MonthlyTrend{Month: month, Orders: n})
	}
	sort.Slice(trends, func(i, j int) bool { return trends[i].Month < trends[j].Month })
	return trends, nil
}

func (s *Service) regionalRevenue(ctx context.Context) ([]reportdomain.RegionRevenue, error) {
	var rows []reportdomain.RegionRevenue
	err := s.db.WithContext(ctx).Raw(
		`SELECT c.region, SUM(o.order_total) AS revenue
		 FROM customers c
		 JOIN orders o ON o.customer_id = c.customer_id
		 GROUP BY c.region
		 ORDER BY revenue DESC, c.region ASC`,
	).Scan(&rows).Error
	return rows, err
}

func (s *Service) topSpenders(ctx context.Context, since time.Time) ([]reportdomain.Spender, error) {
	var rows []reportdomain.Spender
	err := s.db.WithContext(ctx).Raw(
		`SELECT c.customer_id, c.customer_name, SUM(o.order_total) AS total_spent
		 FROM customers c
		 JOIN orders o ON o.customer_id = c.customer_id
		 WHERE o.order_date_time >= ?
		 GROUP BY c.customer_id, c.customer_name
		 ORDER BY total_spent DESC, c.customer_id ASC
		 LIMIT ?`,
		since,
		s.limit,
	).Scan(&rows).Error
	return rows, err
}
