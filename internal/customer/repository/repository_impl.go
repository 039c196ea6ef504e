package repository

import (
	"context"
	"errors"

	customerdomain "github.com/railzwaylabs/orderetl/internal/customer/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() customerdomain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, c *customerdomain.Customer) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "customer_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"customer_name", "mobile_number", "region", "updated_at"}),
	}).Create(c).Error
}

func (r *repo) FindIDByMobile(ctx context.Context, db *gorm.DB, mobile string) (*string, error) {
	var ids []string
	err := db.WithContext(ctx).Raw(
		`SELECT customer_id FROM customers
		 WHERE mobile_number = ?
		 ORDER BY customer_id ASC
		 LIMIT 1`,
		mobile,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return &ids[0], nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*customerdomain.Customer, error) {
	var c customerdomain.Customer
	err := db.WithContext(ctx).Where("customer_id = ?", id).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&customerdomain.Customer{}).Count(&count).Error
	return count, err
}
