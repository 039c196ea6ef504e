// Package domain contains the customer roster persistence model.
package domain

import (
	"errors"
	"time"
)

// DefaultRegion is stored when the roster leaves region blank.
const DefaultRegion = "Unknown"

// Customer is keyed by the roster's external customer_id. MobileNumber holds the canonical form.
type Customer struct {
	CustomerID   string    `gorm:"column:customer_id;primaryKey;type:varchar(64)"`
	CustomerName string    `gorm:"column:customer_name;type:varchar(255);not null"`
	MobileNumber *string   `gorm:"column:mobile_number;type:varchar(32);index"`
	Region       string    `gorm:"column:region;type:varchar(128);not null"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null"`
}

// TableName sets the database table name.
func (Customer) TableName() string { return "customers" }

var (
	ErrInvalidCustomerID = errors.New("invalid_customer_id")
)
