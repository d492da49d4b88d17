package classifier

import (
	"context"
	"testing"

	"github.com/lintmender/lintmender/internal/model"
	"github.com/lintmender/lintmender/internal/pattern"
	"github.com/lintmender/lintmender/internal/ruledb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	ctx := context.Background()

	kb := ruledb.New(nil, ruledb.DefaultConfig())
	_, err := kb.Load(ctx, "flake8")
	require.NoError(t, err)

	matcher, err := pattern.NewMatcher(pattern.DefaultPatterns())
	require.NoError(t, err)

	cls, err := New(ctx, kb, matcher, nil, Config{Language: "python"})
	require.NoError(t, err)
	return cls
}

func flakeError(rule, message string) model.LintError {
	return model.LintError{
		Linter:   "flake8",
		Rule:     rule,
		File:     "app.py",
		Line:     10,
		Column:   1,
		Message:  message,
		Severity: model.SeverityWarning,
	}
}

func TestClassifier_Deterministic(t *testing.T) {
	ctx := context.Background()
	cls := newTestClassifier(t)
	e := flakeError("E501", "line too long (88 > 79 characters)")

	first := cls.Classify(ctx, e)
	second := cls.Classify(ctx, e)

	assert.Equal(t, first.Category, second.Category)
	assert.Equal(t, first.Tier, second.Tier)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.Source, second.Source)
}

func TestClassifier_BlendSignals(t *testing.T) {
	ctx := context.Background()
	cls := newTestClassifier(t)

	tests := []struct {
		name         string
		err          model.LintError
		wantCategory model.Category
		wantTier     model.FixabilityTier
		wantSource   model.ClassificationSource
	}{
		{
			name:         "agreeing signals take pattern category",
			err:          flakeError("E501", "line too long (88 > 79 characters)"),
			wantCategory: model.CategoryStyle,
			wantTier:     model.TierTrivial,
			wantSource:   model.SourcePattern,
		},
		{
			name:         "pattern more conservative than rule table",
			err:          flakeError("F401", "undefined name 'frobnicate'"),
			wantCategory: model.CategoryLogic,
			wantTier:     model.TierComplex,
			wantSource:   model.SourcePattern,
		},
		{
			name:         "rule table more conservative than pattern",
			err:          flakeError("C901", "line too long (88 > 79 characters)"),
			wantCategory: model.CategoryStructural,
			wantTier:     model.TierManualOnly,
			wantSource:   model.SourceRuleKB,
		},
		{
			name:         "rule table only",
			err:          flakeError("E231", "sparkly new wording the patterns miss"),
			wantCategory: model.CategoryStyle,
			wantTier:     model.TierTrivial,
			wantSource:   model.SourceRuleKB,
		},
		{
			name:         "pattern only",
			err:          flakeError("X999", "trailing whitespace"),
			wantCategory: model.CategoryStyle,
			wantTier:     model.TierTrivial,
			wantSource:   model.SourcePattern,
		},
		{
			name:         "neither signal defaults to manual",
			err:          flakeError("X999", "completely unrecognized wording"),
			wantCategory: model.CategoryUnknown,
			wantTier:     model.TierManualOnly,
			wantSource:   model.SourceRuleKB,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cls.Classify(ctx, tt.err)
			assert.Equal(t, tt.wantCategory, got.Category)
			assert.Equal(t, tt.wantTier, got.Tier)
			assert.Equal(t, tt.wantSource, got.Source)
		})
	}
}

func TestClassifier_UnknownErrorNotAutoFixable(t *testing.T) {
	ctx := context.Background()
	cls := newTestClassifier(t)

	got := cls.Classify(ctx, flakeError("X999", "completely unrecognized wording"))
	assert.False(t, got.AutoFixable(0.7))
	assert.Equal(t, float64(0), got.Confidence)
}

func TestClassifier_MalformedFinding(t *testing.T) {
	ctx := context.Background()
	cls := newTestClassifier(t)

	got := cls.Classify(ctx, model.LintError{Linter: "flake8", File: "app.py", Line: 3})
	assert.Equal(t, model.TierManualOnly, got.Tier)
	assert.False(t, got.AutoFixable(0.1))
}

func TestClassifier_HistoryDemotesRepeatedFailures(t *testing.T) {
	ctx := context.Background()
	cls := newTestClassifier(t)
	e := flakeError("E501", "line too long (88 > 79 characters)")

	before := cls.Classify(ctx, e)
	require.Equal(t, model.TierTrivial, before.Tier)

	for i := 0; i < 3; i++ {
		require.NoError(t, cls.Record(ctx, e, false, before.Confidence))
	}

	after := cls.Classify(ctx, e)
	assert.Equal(t, model.TierSimple, after.Tier, "three straight failures demote one tier")
	assert.Equal(t, model.SourceLearned, after.Source)
	assert.Less(t, after.Confidence, before.Confidence)
}

func TestClassifier_HistoryKeepsSuccessfulSignatures(t *testing.T) {
	ctx := context.Background()
	cls := newTestClassifier(t)
	e := flakeError("E501", "line too long (88 > 79 characters)")

	before := cls.Classify(ctx, e)
	for i := 0; i < 4; i++ {
		require.NoError(t, cls.Record(ctx, e, true, before.Confidence))
	}

	after := cls.Classify(ctx, e)
	assert.Equal(t, before.Tier, after.Tier)
	assert.Equal(t, before.Confidence, after.Confidence)
}

func TestClassifier_HistorySharedAcrossLocations(t *testing.T) {
	ctx := context.Background()
	cls := newTestClassifier(t)

	here := flakeError("E501", "line too long (88 > 79 characters)")
	there := flakeError("E501", "line too long (123 > 79 characters)")
	there.File = "other.py"
	there.Line = 99
	require.Equal(t, here.SignatureHash(), there.SignatureHash())

	for i := 0; i < 3; i++ {
		require.NoError(t, cls.Record(ctx, here, false, 0.9))
	}

	// Outcomes recorded at one site affect the same mistake elsewhere.
	got := cls.Classify(ctx, there)
	assert.Equal(t, model.SourceLearned, got.Source)
}

func TestClassifier_OverrideIsPerOccurrence(t *testing.T) {
	ctx := context.Background()
	cls := newTestClassifier(t)
	e := flakeError("E501", "line too long (88 > 79 characters)")

	forced := cls.Override(e, model.CategoryLogic, model.TierManualOnly)
	assert.Equal(t, model.SourceOverride, forced.Source)

	got := cls.Classify(ctx, e)
	assert.Equal(t, model.TierManualOnly, got.Tier)
	assert.Equal(t, model.SourceOverride, got.Source)

	// The same mistake elsewhere is untouched.
	other := e
	other.Line = 42
	assert.Equal(t, model.TierTrivial, cls.Classify(ctx, other).Tier)

	// Recording an outcome clears the override.
	require.NoError(t, cls.Record(ctx, e, true, 1.0))
	assert.Equal(t, model.SourcePattern, cls.Classify(ctx, e).Source)
}

func TestClassifier_PinnedSignatureStaysManual(t *testing.T) {
	ctx := context.Background()
	cls := newTestClassifier(t)
	e := flakeError("E501", "line too long (88 > 79 characters)")

	cls.Pin(e.SignatureHash())
	assert.True(t, cls.Pinned(e.SignatureHash()))

	got := cls.Classify(ctx, e)
	assert.Equal(t, model.TierManualOnly, got.Tier)
	assert.Equal(t, model.SourceLearned, got.Source)
	assert.False(t, got.AutoFixable(0.99))
}

func TestClassifier_DegradesToRuleTableOnly(t *testing.T) {
	ctx := context.Background()

	kb := ruledb.New(nil, ruledb.DefaultConfig())
	_, err := kb.Load(ctx, "flake8")
	require.NoError(t, err)

	cls, err := New(ctx, kb, nil, nil, Config{Language: "python"})
	require.NoError(t, err)

	got := cls.Classify(ctx, flakeError("E501", "line too long (88 > 79 characters)"))
	assert.Equal(t, model.TierTrivial, got.Tier)
	assert.Equal(t, model.SourceRuleKB, got.Source)
}
