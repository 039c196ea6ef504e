package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	InsertItem(ctx context.Context, db *gorm.DB, item *OrderItem) error
	// Upsert writes the order keyed by order_id. On conflict mobile number, timestamp and total are
	// overwritten; a resolved customer_id is never replaced by nil.
	Upsert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Order, error)
	// ResolveMissingCustomers fills customer_id for every order that has none and whose mobile number
	// matches a customer. It returns the number of orders repaired.
	ResolveMissingCustomers(ctx context.Context, db *gorm.DB) (int64, error)
	CountUnresolved(ctx context.Context, db *gorm.DB) (int64, error)
	Count(ctx context.Context, db *gorm.DB) (int64, error)
	CountItems(ctx context.Context, db *gorm.DB, orderID string) (int64, error)
}
