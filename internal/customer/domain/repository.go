package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	// Upsert inserts the customer or overwrites name, mobile number and region of an existing customer_id.
	Upsert(ctx context.Context, db *gorm.DB, customer *Customer) error
	// FindIDByMobile returns the lowest customer_id holding the canonical mobile number, or nil.
	FindIDByMobile(ctx context.Context, db *gorm.DB, mobile string) (*string, error)
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Customer, error)
	Count(ctx context.Context, db *gorm.DB) (int64, error)
}
