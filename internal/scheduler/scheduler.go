package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/lintmender/lintmender/internal/budget"
	"github.com/lintmender/lintmender/internal/common"
	"github.com/lintmender/lintmender/internal/model"
	"github.com/lintmender/lintmender/internal/service"
)

// Options configures one scheduler run.
type Options struct {
	Deadline    time.Time
	Concurrency int
	Timeout     time.Duration
}

// DefaultOptions returns the default scheduling knobs.
func DefaultOptions() Options {
	return Options{
		Concurrency: 4,
		Timeout:     2 * time.Minute,
	}
}

// Hooks are the cross-cutting halt signals consulted before each dispatch.
// Nil members are treated as always-proceed.
type Hooks struct {
	// Stop reports that the convergence tracker has signalled stop.
	Stop func() bool
	// PausedFiles returns files paused pending external review; batches
	// touching them are deferred.
	PausedFiles func() map[string]struct{}
}

// Result reports the terminal state of every batch in the graph.
type Result struct {
	States       map[string]model.BatchState
	ResolvedKeys map[string]struct{}
	Attempted    map[string]model.ErrorClassification
	Attempts     []model.FixAttempt
	Deferred     []string
	Blocked      []string
	HaltReason   string
}

// Scheduler executes a batch dependency graph with a bounded worker pool.
// Ordering guarantee: batches sharing a file never run concurrently,
// enforced structurally by the graph rather than by runtime locking.
type Scheduler struct {
	backend service.FixBackend
	monitor *budget.Monitor
	storage service.Storage
	opts    Options
}

// New creates a scheduler. Storage may be nil; fix attempts are then not
// persisted.
func New(backend service.FixBackend, monitor *budget.Monitor, storage service.Storage, opts Options) *Scheduler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultOptions().Concurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	return &Scheduler{
		backend: backend,
		monitor: monitor,
		storage: storage,
		opts:    opts,
	}
}

// Run drives the graph to completion: ready batches (no unresolved
// in-edges) execute concurrently up to the configured limit, and each
// dispatch first passes the global halt checks. Run never deadlocks:
// when no batch can make progress the remaining ones are reported as
// blocked and the run terminates.
func (s *Scheduler) Run(ctx context.Context, g *Graph, hooks Hooks) (*Result, error) {
	result := &Result{
		States:       make(map[string]model.BatchState, g.Size()),
		ResolvedKeys: make(map[string]struct{}),
		Attempted:    make(map[string]model.ErrorClassification),
	}

	var mu sync.Mutex
	sem := semaphore.NewWeighted(int64(s.opts.Concurrency))

	for {
		ready := s.readyBatches(g)
		if len(ready) == 0 {
			break
		}

		var wg sync.WaitGroup
		for _, batch := range ready {
			if err := sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				s.deferBatch(batch, result, "run cancelled")
				mu.Unlock()
				continue
			}

			wg.Add(1)
			go func(b *model.Batch) {
				defer wg.Done()
				defer sem.Release(1)
				s.runBatch(ctx, b, hooks, result, &mu)
			}(batch)
		}
		wg.Wait()

		if ctx.Err() != nil {
			break
		}
	}

	// Whatever could not be scheduled is blocked by a failed ancestor.
	for _, b := range g.Batches() {
		if b.State == model.BatchPending {
			result.Blocked = append(result.Blocked, b.ID)
		}
		result.States[b.ID] = b.State
	}
	sort.Strings(result.Blocked)
	sort.Strings(result.Deferred)

	if ctx.Err() != nil && result.HaltReason == "" {
		result.HaltReason = "context cancelled"
	}

	return result, ctx.Err()
}

// readyBatches returns pending batches whose dependencies have all
// completed successfully, in deterministic plan order.
func (s *Scheduler) readyBatches(g *Graph) []*model.Batch {
	var ready []*model.Batch
	for _, b := range g.Batches() {
		if b.State != model.BatchPending {
			continue
		}

		runnable := true
		for _, dep := range g.Dependencies(b.ID) {
			if g.Batch(dep).State != model.BatchDone {
				runnable = false
				break
			}
		}
		if runnable {
			ready = append(ready, b)
		}
	}
	return ready
}

// runBatch takes one batch through the state machine, including the
// single reduced-scope retry.
func (s *Scheduler) runBatch(ctx context.Context, b *model.Batch, hooks Hooks, result *Result, mu *sync.Mutex) {
	// Global halt conditions, checked before every dispatch.
	if reason := s.haltReason(ctx, b, hooks); reason != "" {
		mu.Lock()
		s.deferBatch(b, result, reason)
		if result.HaltReason == "" {
			result.HaltReason = reason
		}
		mu.Unlock()
		return
	}

	if err := s.monitor.Reserve(b); err != nil {
		if errors.Is(err, common.ErrBudgetExhausted) {
			mu.Lock()
			s.deferBatch(b, result, "budget exhausted")
			mu.Unlock()
			return
		}
		mu.Lock()
		b.State = model.BatchFailed
		mu.Unlock()
		slog.Error("Failed to reserve batch cost", "batch_id", b.ID, "error", err)
		return
	}

	b.State = model.BatchScheduled

	scope := b.Errors
	totalCost := 0.0
	var finalOutcome model.AttemptOutcome

	for attemptNo := 1; attemptNo <= 2; attemptNo++ {
		b.State = model.BatchRunning

		mu.Lock()
		for _, ec := range scope {
			result.Attempted[ec.Error.LocationKey()] = ec
		}
		mu.Unlock()

		started := time.Now()
		fixResult, outcome := s.dispatch(ctx, b, scope)
		totalCost += fixResult.Cost
		finalOutcome = outcome

		// Each dispatch settles its own reservation; the retry takes out
		// a fresh one below, so spend can never run ahead of the budget
		// by more than one in-flight reservation.
		if err := s.monitor.Settle(ctx, b.ID, fixResult.Cost); err != nil {
			slog.Warn("Failed to settle batch cost", "batch_id", b.ID, "error", err)
		}

		attempt := model.FixAttempt{
			ID:          uuid.NewString(),
			BatchID:     b.ID,
			StartedAt:   started,
			CompletedAt: time.Now(),
			Outcome:     outcome,
			ActualCost:  fixResult.Cost,
		}

		mu.Lock()
		for _, key := range fixResult.ResolvedIDs {
			result.ResolvedKeys[key] = struct{}{}
			attempt.ErrorsResolved++
		}
		result.Attempts = append(result.Attempts, attempt)
		mu.Unlock()

		if s.storage != nil {
			if err := s.storage.SaveFixAttempt(ctx, &attempt); err != nil {
				slog.Warn("Failed to persist fix attempt", "batch_id", b.ID, "error", err)
			}
		}

		if outcome == model.OutcomeSuccess {
			b.State = model.BatchDone
			break
		}

		if attemptNo == 2 {
			b.State = model.BatchFailed
			break
		}

		// One retry with reduced scope: drop what the first attempt
		// already resolved, then the lowest-confidence stragglers.
		scope = reduceScope(scope, fixResult.ResolvedIDs)
		b.State = model.BatchRetryScheduled

		// The retry is a dispatch in its own right: it passes the global
		// halt checks and reserves the reduced scope's cost first.
		if reason := s.haltReason(ctx, b, hooks); reason != "" {
			mu.Lock()
			s.deferBatch(b, result, reason)
			if result.HaltReason == "" {
				result.HaltReason = reason
			}
			mu.Unlock()
			return
		}
		retry := &model.Batch{ID: b.ID, Language: b.Language, Errors: scope}
		if err := s.monitor.Reserve(retry); err != nil {
			if errors.Is(err, common.ErrBudgetExhausted) {
				mu.Lock()
				s.deferBatch(b, result, "budget exhausted")
				mu.Unlock()
				return
			}
			b.State = model.BatchFailed
			slog.Error("Failed to reserve retry cost", "batch_id", b.ID, "error", err)
			return
		}

		slog.Info("Retrying batch with reduced scope",
			"batch_id", b.ID,
			"outcome", outcome,
			"retry_errors", len(scope))
	}

	slog.Info("Batch finished",
		"batch_id", b.ID,
		"state", b.State,
		"outcome", finalOutcome,
		"cost", totalCost)
}

// dispatch performs one backend call under the per-batch timeout.
// A timeout cancels the in-flight call and is treated as FAILED.
func (s *Scheduler) dispatch(ctx context.Context, b *model.Batch, scope []model.ErrorClassification) (service.FixResult, model.AttemptOutcome) {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	req := service.FixRequest{
		BatchID:  b.ID,
		Language: b.Language,
		Files:    b.Files(),
		Errors:   scope,
	}

	fixResult, err := s.backend.FixBatch(callCtx, req)
	if err != nil {
		var backendErr *common.BackendError
		switch {
		case errors.Is(err, context.DeadlineExceeded),
			errors.As(err, &backendErr) && backendErr.Kind == common.BackendTimeout:
			slog.Warn("Backend call timed out", "batch_id", b.ID, "timeout", s.opts.Timeout)
			return fixResult, model.OutcomeTimeout
		default:
			slog.Warn("Backend call failed", "batch_id", b.ID, "error", err)
			return fixResult, model.OutcomeFailed
		}
	}

	resolved := 0
	inScope := make(map[string]struct{}, len(scope))
	for _, ec := range scope {
		inScope[ec.Error.LocationKey()] = struct{}{}
	}
	kept := fixResult.ResolvedIDs[:0]
	for _, key := range fixResult.ResolvedIDs {
		if _, ok := inScope[key]; ok {
			kept = append(kept, key)
			resolved++
		}
	}
	fixResult.ResolvedIDs = kept

	switch {
	case resolved == len(scope):
		return fixResult, model.OutcomeSuccess
	case resolved > 0:
		return fixResult, model.OutcomePartial
	default:
		return fixResult, model.OutcomeFailed
	}
}

func (s *Scheduler) haltReason(ctx context.Context, b *model.Batch, hooks Hooks) string {
	if ctx.Err() != nil {
		return "context cancelled"
	}
	if !s.opts.Deadline.IsZero() && time.Now().After(s.opts.Deadline) {
		return "wall-clock deadline exceeded"
	}
	if s.monitor.Exhausted() {
		return "budget exhausted"
	}
	if hooks.Stop != nil && hooks.Stop() {
		return "convergence tracker signalled stop"
	}
	if hooks.PausedFiles != nil {
		paused := hooks.PausedFiles()
		for _, f := range b.Files() {
			if _, ok := paused[f]; ok {
				return fmt.Sprintf("file %s paused pending review", f)
			}
		}
	}
	return ""
}

func (s *Scheduler) deferBatch(b *model.Batch, result *Result, reason string) {
	b.State = model.BatchDeferred
	result.Deferred = append(result.Deferred, b.ID)
	slog.Info("Deferred batch", "batch_id", b.ID, "reason", reason)
}

// reduceScope builds the retry scope: errors the first attempt already
// resolved are dropped outright, then the lowest-confidence third of the
// remainder, always keeping at least one.
func reduceScope(scope []model.ErrorClassification, resolved []string) []model.ErrorClassification {
	done := make(map[string]struct{}, len(resolved))
	for _, key := range resolved {
		done[key] = struct{}{}
	}

	remaining := make([]model.ErrorClassification, 0, len(scope))
	for _, ec := range scope {
		if _, ok := done[ec.Error.LocationKey()]; !ok {
			remaining = append(remaining, ec)
		}
	}
	if len(remaining) <= 1 {
		return remaining
	}

	sort.SliceStable(remaining, func(i, j int) bool {
		return remaining[i].Confidence > remaining[j].Confidence
	})

	keep := len(remaining) - (len(remaining)+2)/3
	if keep < 1 {
		keep = 1
	}
	return remaining[:keep]
}
