// Package journal persists the outcome of every executed document operation.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"pdfbot/internal/models"
)

const defaultListLimit = 50

// Service reads and writes the operations table.
type Service struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

// NewService builds a new journal service.
func NewService(db *sql.DB, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{db: db, logger: logger}
}

// Record inserts one finished operation.
func (s *Service) Record(ctx context.Context, op *models.Operation) error {
	if op == nil || op.ID == "" {
		return errors.New("operation id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO operations (id, chat_id, kind, inputs, outputs, status, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID, op.ChatID, string(op.Kind), op.Inputs, op.Outputs, string(op.Status), op.Error,
		op.StartedAt.UTC(), op.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record operation: %w", err)
	}
	return nil
}

// ListByChat returns the chat's most recent operations, newest first.
func (s *Service) ListByChat(ctx context.Context, chatID int64, limit int) ([]models.Operation, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, kind, inputs, outputs, status, error, started_at, finished_at
		FROM operations WHERE chat_id = ? ORDER BY started_at DESC LIMIT ?`,
		chatID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	var ops []models.Operation
	for rows.Next() {
		var (
			op           models.Operation
			kind, status string
		)
		if err := rows.Scan(&op.ID, &op.ChatID, &kind, &op.Inputs, &op.Outputs, &status, &op.Error, &op.StartedAt, &op.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		op.Kind = models.OperationKind(kind)
		op.Status = models.OperationStatus(status)
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// Stats counts operations per kind and status.
func (s *Service) Stats(ctx context.Context) ([]models.OperationStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, status, COUNT(*) FROM operations GROUP BY kind, status ORDER BY kind, status`)
	if err != nil {
		return nil, fmt.Errorf("operation stats: %w", err)
	}
	defer rows.Close()

	var stats []models.OperationStats
	for rows.Next() {
		var (
			st           models.OperationStats
			kind, status string
		)
		if err := rows.Scan(&kind, &status, &st.Count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		st.Kind = models.OperationKind(kind)
		st.Status = models.OperationStatus(status)
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// Prune deletes operations finished before the cutoff.
func (s *Service) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM operations WHERE finished_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune operations: %w", err)
	}
	return res.RowsAffected()
}
