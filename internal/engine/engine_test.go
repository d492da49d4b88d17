package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/lintmender/lintmender/internal/budget"
	"github.com/lintmender/lintmender/internal/classifier"
	"github.com/lintmender/lintmender/internal/converge"
	"github.com/lintmender/lintmender/internal/model"
	"github.com/lintmender/lintmender/internal/pattern"
	"github.com/lintmender/lintmender/internal/planner"
	"github.com/lintmender/lintmender/internal/ruledb"
	"github.com/lintmender/lintmender/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClassifier(t *testing.T) *classifier.Classifier {
	t.Helper()
	ctx := context.Background()

	kb := ruledb.New(nil, ruledb.DefaultConfig())
	_, err := kb.Load(ctx, "flake8")
	require.NoError(t, err)

	matcher, err := pattern.NewMatcher(pattern.DefaultPatterns())
	require.NoError(t, err)

	cls, err := classifier.New(ctx, kb, matcher, nil, classifier.Config{Language: "python"})
	require.NoError(t, err)
	return cls
}

func newTestEngine(t *testing.T, lint service.Linter, backend service.FixBackend, monitor *budget.Monitor, cfg Config) (*FixEngine, *classifier.Classifier) {
	t.Helper()
	if monitor == nil {
		monitor = budget.NewMonitor(model.Budget{MaxTotal: 100}, nil, nil)
	}
	cls := newTestClassifier(t)
	eng := New(lint, backend, cls, planner.New(monitor), monitor, converge.NewTracker(converge.DefaultConfig()), nil, cfg)
	return eng, cls
}

func styleError(file string, line int) model.LintError {
	return model.LintError{
		Linter:   "flake8",
		Rule:     "E501",
		File:     file,
		Line:     line,
		Column:   80,
		Message:  fmt.Sprintf("line too long (%d > 79 characters)", 80+line),
		Severity: model.SeverityWarning,
	}
}

func TestFixEngine_CleanProject(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t, NewMockLinter(nil), NewMockBackend(), nil, DefaultConfig())

	stats, err := eng.Run(ctx, []string{"."})
	require.NoError(t, err)

	assert.Equal(t, "clean", stats.HaltReason)
	assert.Equal(t, 0, stats.TotalErrors)
	assert.Equal(t, 0, stats.BatchesPlanned)
}

func TestFixEngine_ResolvesEverythingInOnePass(t *testing.T) {
	ctx := context.Background()

	// Ten trivial style errors across three files.
	initial := make([]model.LintError, 0, 10)
	for i := 0; i < 4; i++ {
		initial = append(initial, styleError("a.py", i+1))
	}
	for i := 0; i < 4; i++ {
		initial = append(initial, styleError("b.py", i+1))
	}
	for i := 0; i < 2; i++ {
		initial = append(initial, styleError("c.py", i+1))
	}

	lint := NewMockLinter(initial, nil)
	backend := NewMockBackend()

	cfg := DefaultConfig()
	cfg.Language = "python"
	cfg.MaxBatchSize = 4

	var passNumbers []int
	var mu sync.Mutex
	cfg.OnPass = func(pass int, _ converge.PassDelta) {
		mu.Lock()
		passNumbers = append(passNumbers, pass)
		mu.Unlock()
	}

	eng, _ := newTestEngine(t, lint, backend, nil, cfg)
	stats, err := eng.Run(ctx, []string{"."})
	require.NoError(t, err)

	assert.Equal(t, "clean", stats.HaltReason)
	assert.Equal(t, 10, stats.TotalErrors)
	assert.Equal(t, 10, stats.Resolved)
	assert.Equal(t, 0, stats.Introduced)
	assert.Equal(t, 3, stats.BatchesPlanned, "4 + 4 + 2")
	assert.Equal(t, 0, stats.BatchesFailed)
	assert.Equal(t, 3, backend.CallCount())
	assert.Greater(t, stats.Spend, 0.0)
	assert.Equal(t, []int{1}, passNumbers)

	// Batch plan respected the size bound.
	for _, call := range backend.Calls() {
		assert.LessOrEqual(t, len(call.Errors), 4)
	}
}

func TestFixEngine_ConvergesWhenNothingImproves(t *testing.T) {
	ctx := context.Background()

	stuck := []model.LintError{styleError("a.py", 1), styleError("a.py", 2)}
	lint := NewMockLinter(stuck) // every pass sees the same set
	backend := NewMockBackend().FailOn("a.py")

	cfg := DefaultConfig()
	cfg.Language = "python"

	eng, cls := newTestEngine(t, lint, backend, nil, cfg)
	stats, err := eng.Run(ctx, []string{"."})
	require.NoError(t, err)

	assert.Equal(t, "converged", stats.HaltReason)
	assert.Equal(t, 2, stats.Passes)
	assert.Equal(t, 0, stats.Resolved)

	// Remaining signatures are pinned so later passes cannot oscillate.
	assert.True(t, cls.Pinned(stuck[0].SignatureHash()))
}

func TestFixEngine_ManualOnlyErrorsHaltImmediately(t *testing.T) {
	ctx := context.Background()

	hopeless := []model.LintError{
		{Linter: "flake8", Rule: "C901", File: "a.py", Line: 1, Message: "'f' is too complex (19)"},
		{Linter: "flake8", Rule: "Z000", File: "b.py", Line: 2, Message: "wording no table or pattern knows"},
	}
	lint := NewMockLinter(hopeless)
	backend := NewMockBackend()

	cfg := DefaultConfig()
	cfg.Language = "python"

	eng, _ := newTestEngine(t, lint, backend, nil, cfg)
	stats, err := eng.Run(ctx, []string{"."})
	require.NoError(t, err)

	assert.Equal(t, "no auto-fixable errors remain", stats.HaltReason)
	assert.Equal(t, 0, backend.CallCount())
	assert.Equal(t, 2, stats.ManualOnly)
}

func TestFixEngine_BudgetExhaustionHalts(t *testing.T) {
	ctx := context.Background()

	stuck := []model.LintError{styleError("a.py", 1)}
	lint := NewMockLinter(stuck)
	backend := NewMockBackend()
	backend.CostPerCall = 0.06

	prices := map[string]budget.Price{"python": {PerBatch: 0.03}}
	monitor := budget.NewMonitor(model.Budget{MaxTotal: 0.05}, prices, nil)

	cfg := DefaultConfig()
	cfg.Language = "python"

	eng, _ := newTestEngine(t, lint, backend, monitor, cfg)
	stats, err := eng.Run(ctx, []string{"."})
	require.NoError(t, err)

	assert.Equal(t, "budget exhausted", stats.HaltReason)
	assert.Equal(t, 1, stats.Passes)
	assert.InDelta(t, 0.06, stats.Spend, 1e-9)
}

func TestFixEngine_RegressionRevertsAndResumes(t *testing.T) {
	ctx := context.Background()

	lint := NewMockLinter(
		[]model.LintError{styleError("a.py", 1)}, // initial
		[]model.LintError{styleError("b.py", 7)}, // fix landed, but b.py regressed
		nil, // clean after revert and second pass
	)
	backend := NewMockBackend()

	var reverted [][]string
	var mu sync.Mutex

	cfg := DefaultConfig()
	cfg.Language = "python"
	cfg.RevertOnRegression = true
	cfg.RevertFunc = func(_ context.Context, files []string) error {
		mu.Lock()
		reverted = append(reverted, files)
		mu.Unlock()
		return nil
	}

	eng, _ := newTestEngine(t, lint, backend, nil, cfg)
	stats, err := eng.Run(ctx, []string{"."})
	require.NoError(t, err)

	assert.Equal(t, "clean", stats.HaltReason)
	assert.Equal(t, 1, stats.Introduced)
	require.Len(t, reverted, 1)
	assert.Equal(t, []string{"b.py"}, reverted[0])
}

func TestFixEngine_RegressionWithoutRevertPausesFile(t *testing.T) {
	ctx := context.Background()

	lint := NewMockLinter(
		[]model.LintError{styleError("a.py", 1)},
		[]model.LintError{styleError("b.py", 7)}, // regression, stays forever
	)
	backend := NewMockBackend()

	cfg := DefaultConfig()
	cfg.Language = "python"

	eng, _ := newTestEngine(t, lint, backend, nil, cfg)
	stats, err := eng.Run(ctx, []string{"."})
	require.NoError(t, err)

	// b.py is paused, so its batch is deferred every subsequent pass and
	// the run converges instead of spinning.
	assert.Equal(t, "converged", stats.HaltReason)
	assert.Equal(t, 1, stats.Introduced)
}

func TestFixEngine_MaxPassesHalts(t *testing.T) {
	ctx := context.Background()

	// One error disappears per pass; progress never stalls.
	passes := make([][]model.LintError, 0, 4)
	for drop := 0; drop < 4; drop++ {
		var set []model.LintError
		for i := drop; i < 10; i++ {
			set = append(set, styleError("a.py", i+1))
		}
		passes = append(passes, set)
	}

	lint := NewMockLinter(passes...)
	backend := NewMockBackend()

	cfg := DefaultConfig()
	cfg.Language = "python"
	cfg.MaxPasses = 3
	// Keep demoted-but-still-fixable errors eligible as the learned
	// failure history accumulates.
	cfg.MinConfidence = 0.2

	eng, _ := newTestEngine(t, lint, backend, nil, cfg)
	stats, err := eng.Run(ctx, []string{"."})
	require.NoError(t, err)

	assert.Equal(t, "max passes reached", stats.HaltReason)
	assert.Equal(t, 3, stats.Passes)
	assert.Equal(t, 3, stats.Resolved)
}

func TestFixEngine_TrainingOutcomesFeedBack(t *testing.T) {
	ctx := context.Background()

	stuck := []model.LintError{styleError("a.py", 1)}
	lint := NewMockLinter(stuck)
	backend := NewMockBackend().FailOn("a.py")

	cfg := DefaultConfig()
	cfg.Language = "python"

	eng, cls := newTestEngine(t, lint, backend, nil, cfg)
	_, err := eng.Run(ctx, []string{"."})
	require.NoError(t, err)

	// The converged run pinned the signature, so the same mistake at a
	// brand-new site is no longer attempted.
	assert.True(t, cls.Pinned(stuck[0].SignatureHash()))
	got := cls.Classify(ctx, model.LintError{
		Linter: "flake8", Rule: "E501", File: "z.py", Line: 3,
		Message: "line too long (90 > 79 characters)",
	})
	assert.Equal(t, model.TierManualOnly, got.Tier)
	assert.Equal(t, model.SourceLearned, got.Source)
}
