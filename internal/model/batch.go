package model

import (
	"sort"
	"time"
)

// BatchState tracks a batch through the scheduler's state machine.
type BatchState string

// Batch state constants. Transitions: PENDING → SCHEDULED → RUNNING →
// {DONE, FAILED}; FAILED → RETRY_SCHEDULED → RUNNING (at most one retry).
// DEFERRED is terminal for the current run only: the batch did not fit
// the remaining budget or was paused, and is reported, not discarded.
// Batches blocked by a failed ancestor simply remain PENDING.
const (
	BatchPending        BatchState = "PENDING"
	BatchScheduled      BatchState = "SCHEDULED"
	BatchRunning        BatchState = "RUNNING"
	BatchDone           BatchState = "DONE"
	BatchFailed         BatchState = "FAILED"
	BatchRetryScheduled BatchState = "RETRY_SCHEDULED"
	BatchDeferred       BatchState = "DEFERRED"
)

// Batch is a scheduling unit grouping classified errors to be attempted
// together against the fixing backend.
type Batch struct {
	ID            string
	Language      string
	AfterBatch    string // planning lineage: must wait for that batch's re-lint
	Errors        []ErrorClassification
	EstimatedCost float64
	State         BatchState
}

// Files returns the sorted set of distinct files this batch touches.
// Two batches runnable concurrently must have disjoint file sets.
func (b *Batch) Files() []string {
	seen := make(map[string]struct{}, len(b.Errors))
	for _, ec := range b.Errors {
		seen[ec.Error.File] = struct{}{}
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// SharesFile reports whether two batches touch any common file.
func (b *Batch) SharesFile(other *Batch) bool {
	mine := make(map[string]struct{}, len(b.Errors))
	for _, ec := range b.Errors {
		mine[ec.Error.File] = struct{}{}
	}
	for _, ec := range other.Errors {
		if _, ok := mine[ec.Error.File]; ok {
			return true
		}
	}
	return false
}

// AttemptOutcome is the terminal result of one backend invocation.
type AttemptOutcome string

// Attempt outcome constants.
const (
	OutcomeSuccess AttemptOutcome = "SUCCESS"
	OutcomePartial AttemptOutcome = "PARTIAL"
	OutcomeFailed  AttemptOutcome = "FAILED"
	OutcomeTimeout AttemptOutcome = "TIMEOUT"
)

// FixAttempt records one invocation of the fixing backend for a batch.
type FixAttempt struct {
	StartedAt      time.Time
	CompletedAt    time.Time
	ID             string
	BatchID        string
	Outcome        AttemptOutcome
	ErrorsResolved int
	ActualCost     float64
}
