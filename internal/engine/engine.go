// Package engine implements the repair loop: lint, classify, plan,
// schedule fixes against the backend, re-lint, and decide whether to
// continue or halt. The loop never runs forever and never overspends
// the configured budget.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lintmender/lintmender/internal/budget"
	"github.com/lintmender/lintmender/internal/converge"
	"github.com/lintmender/lintmender/internal/model"
	"github.com/lintmender/lintmender/internal/planner"
	"github.com/lintmender/lintmender/internal/scheduler"
	"github.com/lintmender/lintmender/internal/service"
)

// Config holds the caller-configured knobs for one run.
type Config struct {
	Deadline        time.Time
	OnPass          func(pass int, delta converge.PassDelta)
	RevertFunc      func(ctx context.Context, files []string) error
	Language        string
	MaxPasses       int
	MaxBatchSize    int
	Concurrency     int
	Timeout         time.Duration
	MinConfidence   float64
	MaxCostPerBatch float64
	// RevertOnRegression reverts files that picked up new errors during a
	// pass, via RevertFunc. Off by default: regressions are surfaced for
	// review, not auto-reverted.
	RevertOnRegression bool
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		MaxPasses:       10,
		MaxBatchSize:    10,
		Concurrency:     4,
		Timeout:         2 * time.Minute,
		MinConfidence:   0.7,
		MaxCostPerBatch: 1.0,
	}
}

// FixEngine orchestrates one repair run.
type FixEngine struct {
	linter     service.Linter
	backend    service.FixBackend
	classifier Classifier
	planner    *planner.Planner
	monitor    *budget.Monitor
	tracker    *converge.Tracker
	storage    service.Storage
	config     Config
}

// New creates a fix engine with the given collaborators.
func New(lint service.Linter, backend service.FixBackend, cls Classifier, plan *planner.Planner, monitor *budget.Monitor, tracker *converge.Tracker, storage service.Storage, config Config) *FixEngine {
	if config.MaxPasses <= 0 {
		config.MaxPasses = DefaultConfig().MaxPasses
	}
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = DefaultConfig().MaxBatchSize
	}
	return &FixEngine{
		linter:     lint,
		backend:    backend,
		classifier: cls,
		planner:    plan,
		monitor:    monitor,
		tracker:    tracker,
		storage:    storage,
		config:     config,
	}
}

// Run drives the repair loop until the error set converges or a limit is
// hit, and returns run statistics with an explicit halt reason.
func (e *FixEngine) Run(ctx context.Context, paths []string) (*service.RunStats, error) {
	start := time.Now()
	stats := &service.RunStats{}

	slog.Info("Starting repair run",
		"paths", paths,
		"max_passes", e.config.MaxPasses,
		"concurrency", e.config.Concurrency)

	current, err := e.linter.Lint(ctx, paths)
	if err != nil {
		return stats, fmt.Errorf("initial lint failed: %w", err)
	}
	stats.TotalErrors = len(current)

	for pass := 1; pass <= e.config.MaxPasses; pass++ {
		if len(current) == 0 {
			return e.finish(ctx, stats, current, start, "clean")
		}
		if err := ctx.Err(); err != nil {
			e.finish(ctx, stats, current, start, "context cancelled")
			return stats, err
		}
		if !e.config.Deadline.IsZero() && time.Now().After(e.config.Deadline) {
			return e.finish(ctx, stats, current, start, "deadline exceeded")
		}
		if e.monitor.Exhausted() {
			return e.finish(ctx, stats, current, start, "budget exhausted")
		}

		stats.Passes = pass
		e.monitor.ResetIteration()

		classified := make([]model.ErrorClassification, 0, len(current))
		for _, lintErr := range current {
			classified = append(classified, e.classifier.Classify(ctx, lintErr))
		}

		plan, err := e.planner.Plan(classified, planner.Options{
			Language:        e.config.Language,
			MaxBatchSize:    e.config.MaxBatchSize,
			MaxCostPerBatch: e.config.MaxCostPerBatch,
			MinConfidence:   e.config.MinConfidence,
		})
		if err != nil {
			return stats, fmt.Errorf("batch planning failed: %w", err)
		}
		stats.BatchesPlanned += len(plan.Batches)

		if len(plan.Batches) == 0 {
			return e.finish(ctx, stats, current, start, "no auto-fixable errors remain")
		}

		graph, err := scheduler.BuildGraph(plan.Batches)
		if err != nil {
			// SchedulingError is fatal: surfaced before any dispatch.
			return stats, err
		}

		sched := scheduler.New(e.backend, e.monitor, e.storage, scheduler.Options{
			Concurrency: e.config.Concurrency,
			Timeout:     e.config.Timeout,
			Deadline:    e.config.Deadline,
		})

		result, err := sched.Run(ctx, graph, scheduler.Hooks{
			Stop:        e.tracker.Converged,
			PausedFiles: e.tracker.PausedFiles,
		})
		if err != nil {
			e.finish(ctx, stats, current, start, "context cancelled")
			return stats, err
		}

		stats.Deferred = len(result.Deferred)
		for _, state := range result.States {
			if state == model.BatchFailed {
				stats.BatchesFailed++
			}
		}

		next, err := e.linter.Lint(ctx, paths)
		if err != nil {
			return stats, fmt.Errorf("re-lint failed: %w", err)
		}

		delta := e.tracker.RecordPass(current, next)
		stats.Resolved += delta.Resolved
		stats.Introduced += len(delta.Introduced)

		e.recordOutcomes(ctx, result, next)

		if len(delta.Introduced) > 0 {
			e.handleRegression(ctx, delta)
		}

		if e.config.OnPass != nil {
			e.config.OnPass(pass, delta)
		}

		current = next

		if e.tracker.Converged() {
			// Pin remaining signatures MANUAL_ONLY so later passes (and
			// callers inspecting classifications) cannot oscillate.
			for _, lintErr := range current {
				e.classifier.Pin(lintErr.SignatureHash())
			}
			return e.finish(ctx, stats, current, start, "converged")
		}
	}

	return e.finish(ctx, stats, current, start, "max passes reached")
}

// recordOutcomes compares the attempted error set with the fresh lint
// results and appends one training example per attempted error.
func (e *FixEngine) recordOutcomes(ctx context.Context, result *scheduler.Result, next []model.LintError) {
	remaining := make(map[string]struct{}, len(next))
	for _, lintErr := range next {
		remaining[lintErr.LocationKey()] = struct{}{}
	}

	for key, ec := range result.Attempted {
		_, stillThere := remaining[key]
		if err := e.classifier.Record(ctx, ec.Error, !stillThere, ec.Confidence); err != nil {
			slog.Warn("Failed to record training outcome",
				"error", err,
				"signature", ec.Error.SignatureHash())
		}
	}
}

// handleRegression surfaces newly introduced errors and, when the caller
// enabled the policy, reverts the affected files.
func (e *FixEngine) handleRegression(ctx context.Context, delta converge.PassDelta) {
	files := make(map[string]struct{})
	for _, lintErr := range delta.Introduced {
		files[lintErr.File] = struct{}{}
		slog.Warn("Fix introduced a new error",
			"file", lintErr.File,
			"line", lintErr.Line,
			"rule", lintErr.Rule,
			"message", lintErr.Message)
	}

	if !e.config.RevertOnRegression || e.config.RevertFunc == nil {
		return
	}

	fileList := make([]string, 0, len(files))
	for f := range files {
		fileList = append(fileList, f)
	}

	if err := e.config.RevertFunc(ctx, fileList); err != nil {
		slog.Error("Revert-on-regression failed", "files", fileList, "error", err)
		return
	}

	for _, f := range fileList {
		e.tracker.ResumeFile(f)
	}
	slog.Info("Reverted files after regression", "files", fileList)
}

// finish freezes the run statistics. The remaining manual-only count is
// computed from the final error set's classifications.
func (e *FixEngine) finish(ctx context.Context, stats *service.RunStats, remaining []model.LintError, start time.Time, reason string) (*service.RunStats, error) {
	for _, lintErr := range remaining {
		if e.classifier.Classify(ctx, lintErr).Tier == model.TierManualOnly {
			stats.ManualOnly++
		}
	}

	stats.Spend = e.monitor.Snapshot().Spent
	stats.Duration = time.Since(start)
	stats.HaltReason = reason

	slog.Info("Repair run finished",
		"reason", reason,
		"passes", stats.Passes,
		"resolved", stats.Resolved,
		"introduced", stats.Introduced,
		"manual_only", stats.ManualOnly,
		"spend", stats.Spend,
		"duration", stats.Duration)

	return stats, nil
}
