package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertDeadLetter(ctx context.Context, db *gorm.DB, record *DeadLetter) error
	ListDeadLetters(ctx context.Context, db *gorm.DB, filter DeadLetterFilter) ([]DeadLetter, error)
	CountDeadLetters(ctx context.Context, db *gorm.DB, source string) (int64, error)

	InsertRun(ctx context.Context, db *gorm.DB, run *IngestRun) error
	FinishRun(ctx context.Context, db *gorm.DB, run *IngestRun) error
	FindRun(ctx context.Context, db *gorm.DB, id snowflake.ID) (*IngestRun, error)
}

type DeadLetterFilter struct {
	Source string
	RunID  *snowflake.ID
}
