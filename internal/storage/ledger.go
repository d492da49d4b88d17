package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/lintmender/lintmender/internal/service"
)

// SaveLedgerEntry records one settled backend charge.
func (s *SQLiteStorage) SaveLedgerEntry(ctx context.Context, entry *service.LedgerEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("ledger entry is required")
	}
	if entry.BatchID == "" {
		return fmt.Errorf("ledger entry batch id is required")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cost_ledger (batch_id, estimated, actual, created_at)
		 VALUES (?, ?, ?, ?)`,
		entry.BatchID, entry.Estimated, entry.Actual, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save ledger entry: %w", err)
	}
	return nil
}

// GetTotalSpend sums settled charges since the given time.
func (s *SQLiteStorage) GetTotalSpend(ctx context.Context, since time.Time) (float64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var total float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(actual), 0) FROM cost_ledger WHERE created_at >= ?`,
		since).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to query total spend: %w", err)
	}
	return total, nil
}
