package pattern

import (
	"testing"

	"github.com/lintmender/lintmender/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_DefaultPatterns(t *testing.T) {
	m, err := NewMatcher(DefaultPatterns())
	require.NoError(t, err)
	require.True(t, m.Available())

	tests := []struct {
		name           string
		message        string
		ruleID         string
		wantMatch      bool
		wantName       string
		wantCategory   model.Category
		wantTier       model.FixabilityTier
		minConfidence  float64
	}{
		{
			name:          "line too long",
			message:       "line too long (88 > 79 characters)",
			ruleID:        "E501",
			wantMatch:     true,
			wantName:      "Line Too Long",
			wantCategory:  model.CategoryStyle,
			wantTier:      model.TierTrivial,
			minConfidence: 0.9,
		},
		{
			name:         "trailing whitespace",
			message:      "trailing whitespace",
			ruleID:       "W291",
			wantMatch:    true,
			wantName:     "Trailing Whitespace",
			wantCategory: model.CategoryStyle,
			wantTier:     model.TierTrivial,
		},
		{
			name:         "unused import",
			message:      "'os' imported but unused",
			ruleID:       "F401",
			wantMatch:    true,
			wantName:     "Unused Import",
			wantCategory: model.CategoryStyle,
			wantTier:     model.TierSimple,
		},
		{
			name:         "undefined name is risky",
			message:      "undefined name 'frobnicate'",
			ruleID:       "F821",
			wantMatch:    true,
			wantName:     "Undefined Name",
			wantCategory: model.CategoryLogic,
			wantTier:     model.TierComplex,
		},
		{
			name:         "complexity stays manual",
			message:      "'process' is too complex (15)",
			ruleID:       "C901",
			wantMatch:    true,
			wantName:     "Too Complex",
			wantCategory: model.CategoryStructural,
			wantTier:     model.TierManualOnly,
		},
		{
			name:         "case insensitive",
			message:      "Line Too Long (120 > 100)",
			ruleID:       "lll",
			wantMatch:    true,
			wantName:     "Line Too Long",
			wantCategory: model.CategoryStyle,
			wantTier:     model.TierTrivial,
		},
		{
			name:      "no match for novel message",
			message:   "something nobody has ever seen before",
			ruleID:    "X999",
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, ok := m.Classify(tt.message, tt.ruleID)
			assert.Equal(t, tt.wantMatch, ok)
			if !tt.wantMatch {
				return
			}
			assert.Equal(t, tt.wantName, match.Name)
			assert.Equal(t, tt.wantCategory, match.Category)
			assert.Equal(t, tt.wantTier, match.Tier)
			if tt.minConfidence > 0 {
				assert.GreaterOrEqual(t, match.Confidence, tt.minConfidence)
			}
		})
	}
}

func TestMatcher_RuleIDBeatsMessage(t *testing.T) {
	patterns := []Pattern{
		{
			Name:       "By Message",
			Regex:      `\bunused\b`,
			Category:   model.CategoryStyle,
			Tier:       model.TierSimple,
			Confidence: 0.8,
			Priority:   50,
		},
		{
			Name:       "By Rule",
			Rule:       "F401",
			Regex:      `\bnever matches anything\b-x`,
			Category:   model.CategoryStyle,
			Tier:       model.TierTrivial,
			Confidence: 0.95,
			Priority:   10,
		},
	}

	m, err := NewMatcher(patterns)
	require.NoError(t, err)

	// The exact rule id wins even though the message also matches and
	// the message pattern carries higher priority.
	match, ok := m.Classify("'os' imported but unused", "f401")
	require.True(t, ok)
	assert.Equal(t, "By Rule", match.Name)
	assert.Equal(t, model.TierTrivial, match.Tier)
}

func TestMatcher_MostSpecificWins(t *testing.T) {
	patterns := []Pattern{
		{
			Name:       "Generic Unused",
			Regex:      `\bunused\b`,
			Category:   model.CategoryStyle,
			Tier:       model.TierModerate,
			Confidence: 0.5,
			Priority:   10,
		},
		{
			Name:       "Unused Import",
			Regex:      `\bunused\s+import\b`,
			Category:   model.CategoryStyle,
			Tier:       model.TierSimple,
			Confidence: 0.9,
			Priority:   90,
		},
	}

	m, err := NewMatcher(patterns)
	require.NoError(t, err)

	match, ok := m.Classify("unused import detected", "")
	require.True(t, ok)
	assert.Equal(t, "Unused Import", match.Name)

	// The generic pattern still catches what the specific one does not.
	match, ok = m.Classify("unused field on struct", "")
	require.True(t, ok)
	assert.Equal(t, "Generic Unused", match.Name)
}

func TestMatcher_EmptySetDegrades(t *testing.T) {
	m, err := NewMatcher(nil)
	require.NoError(t, err)

	assert.False(t, m.Available())
	_, ok := m.Classify("line too long (88 > 79 characters)", "E501")
	assert.False(t, ok)
}

func TestMatcher_RejectsInvalidRegex(t *testing.T) {
	_, err := NewMatcher([]Pattern{
		{Name: "Broken", Regex: `(unclosed`, Category: model.CategoryStyle},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Broken")
}

func TestMatcher_RejectsEmptyPattern(t *testing.T) {
	_, err := NewMatcher([]Pattern{
		{Name: "Empty", Category: model.CategoryStyle},
	})
	require.Error(t, err)
}
