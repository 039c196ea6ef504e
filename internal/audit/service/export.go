package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	auditdomain "github.com/railzwaylabs/orderetl/internal/audit/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type ExportParams struct {
	fx.In

	DB   *gorm.DB
	Repo auditdomain.Repository
}

type ExportService struct {
	db   *gorm.DB
	repo auditdomain.Repository
}

func NewExportService(p ExportParams) auditdomain.ExportService {
	return &ExportService{db: p.DB, repo: p.Repo}
}

func (s *ExportService) Export(ctx context.Context, req auditdomain.ExportRequest) (*auditdomain.ExportResult, error) {
	records, err := s.repo.ListDeadLetters(ctx, s.db, auditdomain.DeadLetterFilter{
		Source: req.Source,
		RunID:  req.RunID,
	})
	if err != nil {
		return nil, err
	}

	var data []byte
	switch req.Format {
	case auditdomain.ExportFormatCSV:
		data, err = formatCSV(records)
	case auditdomain.ExportFormatJSON:
		data, err = formatJSON(records)
	default:
		return nil, fmt.Errorf("%w: %s", auditdomain.ErrUnsupportedFormat, req.Format)
	}
	if err != nil {
		return nil, err
	}

	return &auditdomain.ExportResult{
		Data:     data,
		Checksum: calculateChecksum(data),
		Format:   req.Format,
		Count:    len(records),
	}, nil
}

func formatCSV(records []auditdomain.DeadLetter) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"id", "run_id", "source", "created_at", "error_message", "raw_data"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, r := range records {
		row := []string{
			r.ID.String(),
			r.RunID.String(),
			r.Source,
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.ErrorMessage,
			string(r.RawData),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatJSON(records []auditdomain.DeadLetter) ([]byte, error) {
	type exportRecord struct {
		ID           string          `json:"id"`
		RunID        string          `json:"run_id"`
		Source       string          `json:"source"`
		CreatedAt    string          `json:"created_at"`
		ErrorMessage string          `json:"error_message"`
		RawData      json.RawMessage `json:"raw_data,omitempty"`
	}

	out := make([]exportRecord, 0, len(records))
	for _, r := range records {
		rec := exportRecord{
			ID:           r.ID.String(),
			RunID:        r.RunID.String(),
			Source:       r.Source,
			CreatedAt:    r.CreatedAt.UTC().Format(time.RFC3339),
			ErrorMessage: r.ErrorMessage,
		}
		if len(r.RawData) > 0 && json.Valid(r.RawData) {
			rec.RawData = json.RawMessage(r.RawData)
		}
		out = append(out, rec)
	}

	return json.MarshalIndent(out, "", "  ")
}

func calculateChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
