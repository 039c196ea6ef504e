// Package domain describes the post-run sales summary.
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// MonthLayout formats the month key of MonthlyTrend.
const MonthLayout = "2006-01"

// RepeatCustomer is a customer with more than one distinct order.
type RepeatCustomer struct {
	CustomerID   string
	CustomerName string
	OrdersCount  int64
}

// MonthlyTrend counts distinct orders per calendar month (UTC). Orders without a timestamp are left out.
type MonthlyTrend struct {
	Month  string
	Orders int64
}

type RegionRevenue struct {
	Region  string
	Revenue decimal.Decimal
}

type Spender struct {
	CustomerID   string
	CustomerName string
	TotalSpent   decimal.Decimal
}

type Report struct {
	GeneratedAt      time.Time
	RepeatCustomers  []RepeatCustomer
	MonthlyTrends    []MonthlyTrend
	RegionalRevenue  []RegionRevenue
	TopSpenders      []Spender
	// TopSpendersSince is the start of the top spenders window.
	TopSpendersSince time.Time
}

type Service interface {
	Generate(ctx context.Context) (*Report, error)
}
