package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/railzwaylabs/orderetl/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() auditdomain.Repository {
	return &repo{}
}

func (r *repo) InsertDeadLetter(ctx context.Context, db *gorm.DB, record *auditdomain.DeadLetter) error {
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) ListDeadLetters(ctx context.Context, db *gorm.DB, filter auditdomain.DeadLetterFilter) ([]auditdomain.DeadLetter, error) {
	query := db.WithContext(ctx).Model(&auditdomain.DeadLetter{})
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	if filter.RunID != nil {
		query = query.Where("run_id = ?", *filter.RunID)
	}

	var records []auditdomain.DeadLetter
	err := query.Order("created_at ASC, id ASC").Find(&records).Error
	return records, err
}

func (r *repo) CountDeadLetters(ctx context.Context, db *gorm.DB, source string) (int64, error) {
	query := db.WithContext(ctx).Model(&auditdomain.DeadLetter{})
	if source != "" {
		query = query.Where("source = ?", source)
	}
	var count int64
	err := query.Count(&count).Error
	return count, err
}

func (r *repo) InsertRun(ctx context.Context, db *gorm.DB, run *auditdomain.IngestRun) error {
	return db.WithContext(ctx).Create(run).Error
}

func (r *repo) FinishRun(ctx context.Context, db *gorm.DB, run *auditdomain.IngestRun) error {
	return db.WithContext(ctx).Model(&auditdomain.IngestRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]any{
			"status":      run.Status,
			"rows_read":   run.RowsRead,
			"rows_ok":     run.RowsOK,
			"rows_failed": run.RowsFailed,
			"finished_at": run.FinishedAt,
		}).Error
}

func (r *repo) FindRun(ctx context.Context, db *gorm.DB, id snowflake.ID) (*auditdomain.IngestRun, error) {
	var run auditdomain.IngestRun
	err := db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}
