// Package budget implements the cost monitor: a single-writer ledger of
// predicted, reserved and settled backend spend, consulted before every
// dispatch.
package budget

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lintmender/lintmender/internal/common"
	"github.com/lintmender/lintmender/internal/model"
	"github.com/lintmender/lintmender/internal/service"
)

// Price configures the cost predictor for one language.
type Price struct {
	PerBatch    float64
	PerError    float64
	PerKilobyte float64
}

// DefaultPrice is used for languages without a configured price.
var DefaultPrice = Price{
	PerBatch:    0.01,
	PerError:    0.005,
	PerKilobyte: 0.002,
}

// Monitor owns the budget for one run. All mutations are funneled
// through its mutex; readers take point-in-time snapshots.
type Monitor struct {
	storage      service.Storage
	prices       map[string]Price
	reservations map[string]float64
	budget       model.Budget
	mu           sync.Mutex
}

// NewMonitor creates a cost monitor. Storage may be nil; settled charges
// are then not persisted to the ledger.
func NewMonitor(budget model.Budget, prices map[string]Price, storage service.Storage) *Monitor {
	if prices == nil {
		prices = make(map[string]Price)
	}
	return &Monitor{
		budget:       budget,
		prices:       prices,
		storage:      storage,
		reservations: make(map[string]float64),
	}
}

// Predict estimates the cost of dispatching a batch from its message
// volume and the configured price table.
func (m *Monitor) Predict(batch *model.Batch) float64 {
	price, ok := m.prices[batch.Language]
	if !ok {
		price = DefaultPrice
	}

	var messageBytes int
	for _, ec := range batch.Errors {
		messageBytes += len(ec.Error.Message)
	}

	return price.PerBatch +
		price.PerError*float64(len(batch.Errors)) +
		price.PerKilobyte*float64(messageBytes)/1024
}

// Reserve optimistically decrements remaining budget before dispatch.
// Returns ErrBudgetExhausted when the predicted cost does not fit; such
// batches are deferred by the scheduler, not discarded.
func (m *Monitor) Reserve(batch *model.Batch) error {
	estimated := m.Predict(batch)

	m.mu.Lock()
	defer m.mu.Unlock()

	if estimated > m.budget.IterationRemaining() {
		return fmt.Errorf("%w: batch %s needs %.4f, %.4f remaining",
			common.ErrBudgetExhausted, batch.ID, estimated, m.budget.IterationRemaining())
	}

	m.reservations[batch.ID] = estimated
	m.budget.Reserved += estimated
	batch.EstimatedCost = estimated

	return nil
}

// Settle reconciles a reservation against the backend's reported actual
// cost after completion.
func (m *Monitor) Settle(ctx context.Context, batchID string, actual float64) error {
	m.mu.Lock()
	estimated, ok := m.reservations[batchID]
	if ok {
		delete(m.reservations, batchID)
		m.budget.Reserved -= estimated
	}
	m.budget.Spent += actual
	m.budget.IterationSpent += actual
	m.mu.Unlock()

	if !ok {
		slog.Warn("Settling batch with no reservation", "batch_id", batchID)
	}

	if m.storage != nil {
		entry := &service.LedgerEntry{
			BatchID:   batchID,
			Estimated: estimated,
			Actual:    actual,
			CreatedAt: time.Now(),
		}
		if err := m.storage.SaveLedgerEntry(ctx, entry); err != nil {
			return fmt.Errorf("failed to persist ledger entry: %w", err)
		}
	}

	return nil
}

// Release returns a reservation without spending it, for batches that
// never reached the backend.
func (m *Monitor) Release(batchID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if estimated, ok := m.reservations[batchID]; ok {
		delete(m.reservations, batchID)
		m.budget.Reserved -= estimated
	}
}

// ResetIteration clears the per-iteration spend counter at the start of
// a new pass.
func (m *Monitor) ResetIteration() {
	m.mu.Lock()
	m.budget.IterationSpent = 0
	m.mu.Unlock()
}

// Exhausted reports whether no budget remains for further dispatch.
func (m *Monitor) Exhausted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.budget.Remaining() <= 0
}

// Snapshot returns a point-in-time copy of the budget.
func (m *Monitor) Snapshot() model.Budget {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.budget
}
