package model

import "time"

// Category is the broad kind of problem a lint error describes.
type Category string

// Category constants.
const (
	CategoryStyle      Category = "STYLE"
	CategoryLogic      Category = "LOGIC"
	CategoryStructural Category = "STRUCTURAL"
	CategoryUnknown    Category = "UNKNOWN"
)

// FixabilityTier is an ordinal risk classification governing whether an
// error is attempted automatically. Lower values are safer to auto-fix.
type FixabilityTier int

// Fixability tiers, ordered from safest to manual-only.
const (
	TierTrivial FixabilityTier = iota
	TierSimple
	TierModerate
	TierComplex
	TierManualOnly
)

// String returns the tier's canonical name.
func (t FixabilityTier) String() string {
	switch t {
	case TierTrivial:
		return "TRIVIAL"
	case TierSimple:
		return "SIMPLE"
	case TierModerate:
		return "MODERATE"
	case TierComplex:
		return "COMPLEX"
	case TierManualOnly:
		return "MANUAL_ONLY"
	default:
		return "UNKNOWN"
	}
}

// ParseTier converts a canonical tier name back to its ordinal value.
func ParseTier(s string) (FixabilityTier, bool) {
	switch s {
	case "TRIVIAL":
		return TierTrivial, true
	case "SIMPLE":
		return TierSimple, true
	case "MODERATE":
		return TierModerate, true
	case "COMPLEX":
		return TierComplex, true
	case "MANUAL_ONLY":
		return TierManualOnly, true
	default:
		return TierManualOnly, false
	}
}

// ClassificationSource records which signal produced a classification.
type ClassificationSource string

// Classification source constants.
const (
	SourceRuleKB   ClassificationSource = "RULE_KB"
	SourcePattern  ClassificationSource = "PATTERN"
	SourceLearned  ClassificationSource = "LEARNED"
	SourceOverride ClassificationSource = "OVERRIDE"
)

// ErrorClassification is the current classification of one lint error.
// Exactly one current classification exists per error at any time; an
// override replaces it without rewriting persisted learning data until
// an outcome is recorded.
type ErrorClassification struct {
	ClassifiedAt time.Time
	Error        LintError
	Category     Category
	Source       ClassificationSource
	Tier         FixabilityTier
	Confidence   float64
}

// AutoFixable reports whether this classification clears the given
// confidence threshold for automatic fixing.
func (c *ErrorClassification) AutoFixable(threshold float64) bool {
	return c.Tier < TierManualOnly && c.Confidence >= threshold
}
