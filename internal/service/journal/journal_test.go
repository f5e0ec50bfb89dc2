package journal

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfbot/internal/config"
	"pdfbot/internal/models"
	"pdfbot/internal/storage"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestService(t *testing.T) *Service {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewService(openTestDB(t), logger)
}

func op(chatID int64, kind models.OperationKind, status models.OperationStatus, finished time.Time) *models.Operation {
	return &models.Operation{
		ID:         uuid.NewString(),
		ChatID:     chatID,
		Kind:       kind,
		Inputs:     1,
		Outputs:    2,
		Status:     status,
		StartedAt:  finished.Add(-time.Second),
		FinishedAt: finished,
	}
}

func TestRecordAndList(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	older := op(1, models.OperationSplit, models.OperationSucceeded, now.Add(-time.Minute))
	newer := op(1, models.OperationCombine, models.OperationFailed, now)
	newer.Error = "open \"a.pdf\": broken"
	require.NoError(t, svc.Record(ctx, older))
	require.NoError(t, svc.Record(ctx, newer))
	require.NoError(t, svc.Record(ctx, op(2, models.OperationAssemble, models.OperationSucceeded, now)))

	ops, err := svc.ListByChat(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, newer.ID, ops[0].ID)
	assert.Equal(t, models.OperationCombine, ops[0].Kind)
	assert.Equal(t, models.OperationFailed, ops[0].Status)
	assert.Equal(t, newer.Error, ops[0].Error)
	assert.Equal(t, older.ID, ops[1].ID)
	assert.WithinDuration(t, older.FinishedAt, ops[1].FinishedAt, time.Millisecond)

	limited, err := svc.ListByChat(ctx, 1, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecordRequiresID(t *testing.T) {
	svc := newTestService(t)
	assert.Error(t, svc.Record(context.Background(), &models.Operation{}))
	assert.Error(t, svc.Record(context.Background(), nil))
}

func TestStats(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	now := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Record(ctx, op(1, models.OperationSplit, models.OperationSucceeded, now)))
	}
	require.NoError(t, svc.Record(ctx, op(1, models.OperationSplit, models.OperationFailed, now)))
	require.NoError(t, svc.Record(ctx, op(3, models.OperationRasterize, models.OperationSucceeded, now)))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.OperationStats{
		{Kind: models.OperationRasterize, Status: models.OperationSucceeded, Count: 1},
		{Kind: models.OperationSplit, Status: models.OperationFailed, Count: 1},
		{Kind: models.OperationSplit, Status: models.OperationSucceeded, Count: 3},
	}, stats)
}

func TestPruneAndCleanup(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, svc.Record(ctx, op(1, models.OperationSplit, models.OperationSucceeded, now.Add(-48*time.Hour))))
	require.NoError(t, svc.Record(ctx, op(1, models.OperationSplit, models.OperationSucceeded, now)))

	svc.cleanup(ctx, 24*time.Hour)
	ops, err := svc.ListByChat(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, ops, 1)

	n, err := svc.Prune(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRunCleanerStopsWithContext(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.RunCleaner(ctx, 10*time.Millisecond, time.Hour) }()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("cleaner did not stop")
	}
}
