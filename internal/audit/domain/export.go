package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// ExportFormat represents the output format for dead-letter exports.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatJSON ExportFormat = "json"
)

var ErrUnsupportedFormat = errors.New("unsupported_export_format")

// ExportRequest selects dead letters for export. Empty fields do not filter.
type ExportRequest struct {
	Source string
	RunID  *snowflake.ID
	Format ExportFormat
}

// ExportResult contains the exported data and metadata.
type ExportResult struct {
	Data     []byte
	Checksum string
	Format   ExportFormat
	Count    int
}

// ExportService is an operator tool; ingestion itself never reads dead letters back.
type ExportService interface {
	Export(ctx context.Context, req ExportRequest) (*ExportResult, error)
}
