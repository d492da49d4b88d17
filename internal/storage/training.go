package storage

import (
	"context"
	"fmt"

	"github.com/lintmender/lintmender/internal/model"
)

// AppendTrainingExample appends one outcome to the learning log. The log
// is append-only: rows are never updated or deleted.
func (s *SQLiteStorage) AppendTrainingExample(ctx context.Context, example *model.TrainingExample) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTrainingExample(example); err != nil {
		return err
	}

	fixed := 0
	if example.Fixed {
		fixed = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO training_examples (signature, language, fixed, confidence, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		example.Signature, example.Language, fixed, example.Confidence, example.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append training example: %w", err)
	}
	return nil
}

// GetSignatureStats aggregates recorded outcomes per signature for one
// language. Used as the classifier's point-in-time snapshot.
func (s *SQLiteStorage) GetSignatureStats(ctx context.Context, language string) (map[string]model.SignatureStats, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(language, "language"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT signature, COUNT(*), COALESCE(SUM(fixed), 0)
		 FROM training_examples
		 WHERE language = ?
		 GROUP BY signature`,
		language)
	if err != nil {
		return nil, fmt.Errorf("failed to query signature stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := make(map[string]model.SignatureStats)
	for rows.Next() {
		var st model.SignatureStats
		if err := rows.Scan(&st.Signature, &st.Attempts, &st.Successes); err != nil {
			return nil, fmt.Errorf("failed to scan signature stats: %w", err)
		}
		stats[st.Signature] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read signature stats: %w", err)
	}

	return stats, nil
}

// GetTrainingExamples returns the most recent examples for a language.
func (s *SQLiteStorage) GetTrainingExamples(ctx context.Context, language string, limit int) ([]model.TrainingExample, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(language, "language"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT signature, language, fixed, confidence, created_at
		 FROM training_examples
		 WHERE language = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		language, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query training examples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var examples []model.TrainingExample
	for rows.Next() {
		var example model.TrainingExample
		var fixed int
		if err := rows.Scan(&example.Signature, &example.Language, &fixed, &example.Confidence, &example.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan training example: %w", err)
		}
		example.Fixed = fixed != 0
		examples = append(examples, example)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read training examples: %w", err)
	}

	return examples, nil
}
