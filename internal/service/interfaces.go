// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/lintmender/lintmender/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Training example operations (append-only learning log)
	AppendTrainingExample(ctx context.Context, example *model.TrainingExample) error
	GetSignatureStats(ctx context.Context, language string) (map[string]model.SignatureStats, error)
	GetTrainingExamples(ctx context.Context, language string, limit int) ([]model.TrainingExample, error)

	// Fix attempt history
	SaveFixAttempt(ctx context.Context, attempt *model.FixAttempt) error
	GetRecentFixAttempts(ctx context.Context, limit int) ([]model.FixAttempt, error)

	// Cost ledger
	SaveLedgerEntry(ctx context.Context, entry *LedgerEntry) error
	GetTotalSpend(ctx context.Context, since time.Time) (float64, error)

	// Rule metadata cache
	SaveRuleCache(ctx context.Context, linter string, payload []byte) error
	GetRuleCache(ctx context.Context, linter string, maxAge time.Duration) ([]byte, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// LedgerEntry records one settled backend charge.
type LedgerEntry struct {
	CreatedAt time.Time
	BatchID   string
	Estimated float64
	Actual    float64
}

// Linter is the linter-adapter collaborator at its boundary: it produces
// a normalized error list for a file set.
type Linter interface {
	Lint(ctx context.Context, paths []string) ([]model.LintError, error)
}

// FixRequest carries one batch to the fixing backend.
type FixRequest struct {
	BatchID  string
	Language string
	Files    []string
	Errors   []model.ErrorClassification
}

// FixResult is the fixing backend's report for one request.
type FixResult struct {
	ModifiedFiles []string
	ResolvedIDs   []string // location keys the backend believes it resolved
	Cost          float64
}

// FixBackend is the external collaborator that performs code modification.
// It is a black box with nonzero latency and nonzero monetary cost per call.
type FixBackend interface {
	FixBatch(ctx context.Context, req FixRequest) (FixResult, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// RunStats summarizes a completed repair run.
type RunStats struct {
	Duration       time.Duration
	HaltReason     string
	Passes         int
	TotalErrors    int
	Resolved       int
	Introduced     int
	ManualOnly     int
	Deferred       int
	Spend          float64
	BatchesPlanned int
	BatchesFailed  int
}
