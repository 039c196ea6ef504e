package repository

import (
	"context"
	"errors"

	orderdomain "github.com/railzwaylabs/orderetl/internal/order/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() orderdomain.Repository {
	return &repo{}
}

func (r *repo) InsertItem(ctx context.Context, db *gorm.DB, item *orderdomain.OrderItem) error {
	return db.WithContext(ctx).Create(item).Error
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, o *orderdomain.Order) error {
	updates := clause.AssignmentColumns([]string{"mobile_number", "order_date_time", "order_total", "updated_at"})
	updates = append(updates, clause.Assignment{
		Column: clause.Column{Name: "customer_id"},
		Value:  gorm.Expr(keepResolvedCustomer(db)),
	})

	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		DoUpdates: updates,
	}).Create(o).Error
}

// keepResolvedCustomer prefers the incoming customer_id and falls back to the stored one.
func keepResolvedCustomer(db *gorm.DB) string {
	if db.Dialector.Name() == "mysql" {
		return "COALESCE(VALUES(customer_id), customer_id)"
	}
	return "COALESCE(excluded.customer_id, orders.customer_id)"
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*orderdomain.Order, error) {
	var o orderdomain.Order
	err := db.WithContext(ctx).Where("order_id = ?", id).First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (r *repo) ResolveMissingCustomers(ctx context.Context, db *gorm.DB) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET customer_id = (
			SELECT MIN(c.customer_id) FROM customers c
			WHERE c.mobile_number = orders.mobile_number
		 )
		 WHERE customer_id IS NULL
		 AND mobile_number IS NOT NULL
		 AND EXISTS (
			SELECT 1 FROM customers c
			WHERE c.mobile_number = orders.mobile_number
		 )`,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) CountUnresolved(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&orderdomain.Order{}).Where("customer_id IS NULL").Count(&count).Error
	return count, err
}

func (r *repo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&orderdomain.Order{}).Count(&count).Error
	return count, err
}

func (r *repo) CountItems(ctx context.Context, db *gorm.DB, orderID string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&orderdomain.OrderItem{}).Where("order_id = ?", orderID).Count(&count).Error
	return count, err
}
