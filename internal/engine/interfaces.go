package engine

import (
	"context"

	"github.com/lintmender/lintmender/internal/model"
)

// Classifier defines the contract for lint-error classification.
type Classifier interface {
	Classify(ctx context.Context, e model.LintError) model.ErrorClassification
	Record(ctx context.Context, e model.LintError, fixed bool, confidence float64) error
	Pin(signature string)
}
