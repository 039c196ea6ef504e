// Package domain contains the order feed persistence models.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Order is one logical order, aggregated from its line records. CustomerID stays nil until resolved.
type Order struct {
	OrderID       string          `gorm:"column:order_id;primaryKey;type:varchar(64)"`
	MobileNumber  *string         `gorm:"column:mobile_number;type:varchar(32);index"`
	CustomerID    *string         `gorm:"column:customer_id;type:varchar(64);index"`
	OrderDateTime *time.Time      `gorm:"column:order_date_time"`
	OrderTotal    decimal.Decimal `gorm:"column:order_total;type:decimal(14,2);not null"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;not null"`
}

// TableName sets the database table name.
func (Order) TableName() string { return "orders" }

// OrderItem is an append-only line record. Rows are never updated or deduplicated;
// RunID tells which ingest run wrote the row.
type OrderItem struct {
	ID         uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	RunID      snowflake.ID    `gorm:"column:run_id;not null;index"`
	OrderID    string          `gorm:"column:order_id;type:varchar(64);not null;index"`
	SkuID      string          `gorm:"column:sku_id;type:varchar(64);not null"`
	SkuCount   int             `gorm:"column:sku_count;not null"`
	LineAmount decimal.Decimal `gorm:"column:line_amount;type:decimal(14,2);not null"`
	CreatedAt  time.Time       `gorm:"column:created_at;not null"`
}

// TableName sets the database table name.
func (OrderItem) TableName() string { return "order_items" }

var (
	ErrInvalidOrderID  = errors.New("invalid_order_id")
	ErrInvalidSkuCount = errors.New("invalid_sku_count")
)
