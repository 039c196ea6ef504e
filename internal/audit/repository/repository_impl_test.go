package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/railzwaylabs/orderetl/internal/audit/domain"
	"github.com/railzwaylabs/orderetl/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestDeadLetterFilters(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	repo := Provide()
	base := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	records := []auditdomain.DeadLetter{
		{ID: 10, RunID: 1, Source: auditdomain.SourceCustomers, RawData: datatypes.JSON(`{"a":1}`), ErrorMessage: "bad", CreatedAt: base},
		{ID: 11, RunID: 2, Source: auditdomain.SourceOrders, RawData: datatypes.JSON(`{"b":2}`), ErrorMessage: "bad", CreatedAt: base.Add(time.Minute)},
		{ID: 12, RunID: 2, Source: auditdomain.SourceOrderItems, RawData: datatypes.JSON(`{"c":3}`), ErrorMessage: "bad", CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range records {
		require.NoError(t, repo.InsertDeadLetter(ctx, conn, &records[i]))
	}

	all, err := repo.ListDeadLetters(ctx, conn, auditdomain.DeadLetterFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, snowflake.ID(10), all[0].ID)

	runID := snowflake.ID(2)
	byRun, err := repo.ListDeadLetters(ctx, conn, auditdomain.DeadLetterFilter{RunID: &runID})
	require.NoError(t, err)
	assert.Len(t, byRun, 2)

	bySource, err := repo.ListDeadLetters(ctx, conn, auditdomain.DeadLetterFilter{Source: auditdomain.SourceOrders, RunID: &runID})
	require.NoError(t, err)
	require.Len(t, bySource, 1)
	assert.Equal(t, snowflake.ID(11), bySource[0].ID)

	n, err := repo.CountDeadLetters(ctx, conn, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = repo.CountDeadLetters(ctx, conn, auditdomain.SourceCustomers)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	repo := Provide()
	started := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	run := &auditdomain.IngestRun{
		ID:        42,
		Source:    auditdomain.SourceCustomers,
		Path:      "customers.csv",
		Checksum:  "abc",
		Status:    auditdomain.RunStatusRunning,
		StartedAt: started,
	}
	require.NoError(t, repo.InsertRun(ctx, conn, run))

	finished := started.Add(time.Second)
	run.Status = auditdomain.RunStatusCompleted
	run.RowsRead, run.RowsOK, run.RowsFailed = 3, 2, 1
	run.FinishedAt = &finished
	require.NoError(t, repo.FinishRun(ctx, conn, run))

	got, err := repo.FindRun(ctx, conn, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, auditdomain.RunStatusCompleted, got.Status)
	assert.Equal(t, 3, got.RowsRead)
	assert.Equal(t, 2, got.RowsOK)
	assert.Equal(t, 1, got.RowsFailed)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, finished.Equal(*got.FinishedAt))

	missing, err := repo.FindRun(ctx, conn, 7)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
