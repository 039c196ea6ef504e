// Package reconcile repairs orders that were ingested before their customer was known.
package reconcile

import (
	"context"
	"fmt"

	"github.com/railzwaylabs/orderetl/internal/observability"
	orderdomain "github.com/railzwaylabs/orderetl/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Metrics *observability.Metrics
	Orders  orderdomain.Repository
}

// Pass links every order without a customer to the customer holding its mobile number. It runs as
// one set-based statement and is a no-op when nothing is left to resolve.
type Pass struct {
	db      *gorm.DB
	log     *zap.Logger
	metrics *observability.Metrics
	orders  orderdomain.Repository
}

func NewPass(p Params) *Pass {
	return &Pass{
		db:      p.DB,
		log:     p.Log.Named("reconcile.pass"),
		metrics: p.Metrics,
		orders:  p.Orders,
	}
}

// Run returns the number of orders that received a customer_id.
func (p *Pass) Run(ctx context.Context) (int64, error) {
	resolved, err := p.orders.ResolveMissingCustomers(ctx, p.db)
	if err != nil {
		return 0, fmt.Errorf("reconcile orders: %w", err)
	}
	p.metrics.OrdersReconciled.Add(float64(resolved))

	remaining, err := p.orders.CountUnresolved(ctx, p.db)
	if err != nil {
		return resolved, fmt.Errorf("count unresolved orders: %w", err)
	}

	p.log.Info("reconciliation complete",
		zap.Int64("resolved", resolved),
		zap.Int64("unresolved", remaining),
	)
	return resolved, nil
}
