// Package domain contains the audit trail written by ingestion: dead letters and run records.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Dead-letter source tags, one per stage that can fail.
const (
	SourceCustomers    = "customers"
	SourceOrders       = "orders"
	SourceOrderItems   = "order_items"
	SourceOrdersUpsert = "orders_upsert"
)

// DeadLetter captures an input that failed processing. It is append-only and never read back by ingestion.
type DeadLetter struct {
	ID           snowflake.ID   `gorm:"column:id;primaryKey;autoIncrement:false"`
	RunID        snowflake.ID   `gorm:"column:run_id;not null;index"`
	Source       string         `gorm:"column:source;type:varchar(32);not null;index"`
	RawData      datatypes.JSON `gorm:"column:raw_data"`
	ErrorMessage string         `gorm:"column:error_message;type:text;not null"`
	CreatedAt    time.Time      `gorm:"column:created_at;not null"`
}

// TableName sets the database table name.
func (DeadLetter) TableName() string { return "dead_letter" }

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusAborted   RunStatus = "aborted"
)

// IngestRun records one pass of a source file through ingestion.
type IngestRun struct {
	ID         snowflake.ID `gorm:"column:id;primaryKey;autoIncrement:false"`
	Source     string       `gorm:"column:source;type:varchar(32);not null"`
	Path       string       `gorm:"column:path;type:text;not null"`
	Checksum   string       `gorm:"column:checksum;type:varchar(64);not null"`
	Status     RunStatus    `gorm:"column:status;type:varchar(16);not null"`
	RowsRead   int          `gorm:"column:rows_read;not null"`
	RowsOK     int          `gorm:"column:rows_ok;not null"`
	RowsFailed int          `gorm:"column:rows_failed;not null"`
	StartedAt  time.Time    `gorm:"column:started_at;not null"`
	FinishedAt *time.Time   `gorm:"column:finished_at"`
}

// TableName sets the database table name.
func (IngestRun) TableName() string { return "ingest_runs" }
