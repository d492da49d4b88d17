package storage

import (
	"context"
	"fmt"

	"github.com/lintmender/lintmender/internal/model"
)

// SaveFixAttempt records one backend invocation.
func (s *SQLiteStorage) SaveFixAttempt(ctx context.Context, attempt *model.FixAttempt) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateFixAttempt(attempt); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fix_attempts (id, batch_id, started_at, completed_at, outcome, errors_resolved, actual_cost)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		attempt.ID, attempt.BatchID, attempt.StartedAt, attempt.CompletedAt,
		string(attempt.Outcome), attempt.ErrorsResolved, attempt.ActualCost)
	if err != nil {
		return fmt.Errorf("failed to save fix attempt: %w", err)
	}
	return nil
}

// GetRecentFixAttempts returns the most recent attempts across batches.
func (s *SQLiteStorage) GetRecentFixAttempts(ctx context.Context, limit int) ([]model.FixAttempt, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, batch_id, started_at, completed_at, outcome, errors_resolved, actual_cost
		 FROM fix_attempts
		 ORDER BY started_at DESC
		 LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fix attempts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var attempts []model.FixAttempt
	for rows.Next() {
		var attempt model.FixAttempt
		var outcome string
		if err := rows.Scan(&attempt.ID, &attempt.BatchID, &attempt.StartedAt,
			&attempt.CompletedAt, &outcome, &attempt.ErrorsResolved, &attempt.ActualCost); err != nil {
			return nil, fmt.Errorf("failed to scan fix attempt: %w", err)
		}
		attempt.Outcome = model.AttemptOutcome(outcome)
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read fix attempts: %w", err)
	}

	return attempts, nil
}
