// Package planner groups classified lint errors into ordered, size- and
// cost-bounded batches for the fix scheduler.
package planner

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/lintmender/lintmender/internal/budget"
	"github.com/lintmender/lintmender/internal/model"
)

// Options bounds the shape of planned batches.
type Options struct {
	Language        string
	MaxBatchSize    int
	MaxCostPerBatch float64
	MinConfidence   float64
}

// DefaultOptions returns the default planning bounds.
func DefaultOptions() Options {
	return Options{
		MaxBatchSize:    10,
		MaxCostPerBatch: 1.0,
		MinConfidence:   0.7,
	}
}

// Plan is the planner's output: runnable batches plus the errors that
// were held back, reported rather than silently dropped.
type Plan struct {
	Batches []*model.Batch
	Skipped []model.ErrorClassification
}

// Planner builds batches and prices them through the cost monitor.
type Planner struct {
	monitor *budget.Monitor
}

// New creates a planner.
func New(monitor *budget.Monitor) *Planner {
	return &Planner{monitor: monitor}
}

// Plan sorts classified errors by (file, fixability tier ascending, line)
// so cheap high-confidence fixes are attempted before fixes that depend
// on a cleaner baseline, then splits them into batches bounded by count
// and estimated cost.
func (p *Planner) Plan(classified []model.ErrorClassification, opts Options) (*Plan, error) {
	if opts.MaxBatchSize <= 0 {
		return nil, fmt.Errorf("max batch size must be positive, got %d", opts.MaxBatchSize)
	}

	plan := &Plan{}

	eligible := make([]model.ErrorClassification, 0, len(classified))
	for _, ec := range classified {
		if ec.Tier >= model.TierManualOnly || ec.Confidence < opts.MinConfidence {
			plan.Skipped = append(plan.Skipped, ec)
			continue
		}
		eligible = append(eligible, ec)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.Error.File != b.Error.File {
			return a.Error.File < b.Error.File
		}
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		return a.Error.Line < b.Error.Line
	})

	var current *model.Batch
	for _, ec := range eligible {
		if current != nil {
			candidate := *current
			candidate.Errors = append(append([]model.ErrorClassification{}, current.Errors...), ec)

			if len(candidate.Errors) > opts.MaxBatchSize ||
				(opts.MaxCostPerBatch > 0 && p.monitor.Predict(&candidate) > opts.MaxCostPerBatch) {
				p.seal(plan, current)
				current = nil
			}
		}

		if current == nil {
			current = &model.Batch{
				ID:       uuid.NewString(),
				Language: opts.Language,
				State:    model.BatchPending,
			}
		}
		current.Errors = append(current.Errors, ec)
	}
	if current != nil {
		p.seal(plan, current)
	}

	slog.Info("Planned batches",
		"errors", len(classified),
		"eligible", len(eligible),
		"skipped", len(plan.Skipped),
		"batches", len(plan.Batches))

	return plan, nil
}

func (p *Planner) seal(plan *Plan, batch *model.Batch) {
	batch.EstimatedCost = p.monitor.Predict(batch)
	plan.Batches = append(plan.Batches, batch)
}
