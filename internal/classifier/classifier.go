// Package classifier blends rule knowledge base lookups, pattern matches
// and historical fix outcomes into a final fixability classification per
// lint error, and records outcomes to improve future runs.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lintmender/lintmender/internal/model"
	"github.com/lintmender/lintmender/internal/pattern"
	"github.com/lintmender/lintmender/internal/ruledb"
	"github.com/lintmender/lintmender/internal/service"
)

// Baseline confidences assigned to knowledge-base entries, which carry
// tier but no confidence of their own.
const (
	builtinConfidence   = 0.8
	refreshedConfidence = 0.85
)

// minHistoryAttempts is the number of recorded outcomes a signature needs
// before history influences classification.
const minHistoryAttempts = 3

// Config holds classifier settings.
type Config struct {
	// Language keys the persisted training log.
	Language string
}

// Classifier produces the current classification for each error.
//
// The blend policy is deliberately conservative: when signals disagree on
// fixability, the lower-fixability (higher ordinal) tier wins. An incorrect
// upgrade risks unwanted edits; an incorrect downgrade only costs a missed
// automatic fix.
type Classifier struct {
	kb        *ruledb.KnowledgeBase
	matcher   *pattern.Matcher
	storage   service.Storage
	stats     map[string]model.SignatureStats
	pinned    map[string]struct{}
	overrides map[string]model.ErrorClassification
	language  string
	mu        sync.RWMutex
}

// New creates a classifier and loads the training-data snapshot for the
// given language. The matcher may be nil or empty; classification then
// degrades to knowledge-base-only accuracy.
func New(ctx context.Context, kb *ruledb.KnowledgeBase, matcher *pattern.Matcher, storage service.Storage, config Config) (*Classifier, error) {
	c := &Classifier{
		kb:        kb,
		matcher:   matcher,
		storage:   storage,
		language:  config.Language,
		stats:     make(map[string]model.SignatureStats),
		pinned:    make(map[string]struct{}),
		overrides: make(map[string]model.ErrorClassification),
	}

	if storage != nil {
		stats, err := storage.GetSignatureStats(ctx, config.Language)
		if err != nil {
			return nil, fmt.Errorf("failed to load training snapshot: %w", err)
		}
		c.stats = stats
	}

	if matcher == nil || !matcher.Available() {
		slog.Info("Pattern matcher unavailable, classifying from rule knowledge base only")
	}

	return c, nil
}

// Classify returns the current classification for one error. The result
// is deterministic for a fixed knowledge base and training snapshot.
func (c *Classifier) Classify(_ context.Context, e model.LintError) model.ErrorClassification {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if override, ok := c.overrides[e.LocationKey()]; ok {
		return override
	}

	signature := e.SignatureHash()
	if _, ok := c.pinned[signature]; ok {
		return model.ErrorClassification{
			Error:        e,
			Category:     model.CategoryUnknown,
			Tier:         model.TierManualOnly,
			Confidence:   1.0,
			Source:       model.SourceLearned,
			ClassifiedAt: time.Now(),
		}
	}

	// Malformed finding: nothing to classify on, keep hands off.
	if e.Rule == "" && e.Message == "" {
		return model.ErrorClassification{
			Error:        e,
			Category:     model.CategoryUnknown,
			Tier:         model.TierManualOnly,
			Confidence:   0,
			Source:       model.SourceRuleKB,
			ClassifiedAt: time.Now(),
		}
	}

	tier, category, confidence, source := c.blendSignals(e)

	// Historical outcomes adjust the result: repeated failures demote
	// the tier and damp confidence; consistent success restores it.
	if stats, ok := c.stats[signature]; ok && stats.Attempts >= minHistoryAttempts {
		rate := stats.SuccessRate()
		confidence *= 0.5 + 0.5*rate
		if rate < 0.25 && tier < model.TierComplex {
			tier++
			source = model.SourceLearned
		}
	}

	return model.ErrorClassification{
		Error:        e,
		Category:     category,
		Tier:         tier,
		Confidence:   confidence,
		Source:       source,
		ClassifiedAt: time.Now(),
	}
}

// blendSignals combines the knowledge base and pattern signals. The most
// conservative tier wins; confidence comes from the signal that supplied
// the winning tier (the higher one when both agree).
func (c *Classifier) blendSignals(e model.LintError) (model.FixabilityTier, model.Category, float64, model.ClassificationSource) {
	var (
		haveKB, havePattern bool
		kbEntry             ruledb.Entry
		match               pattern.Match
	)

	if c.kb != nil {
		kbEntry, haveKB = c.kb.Lookup(e.Linter, e.Rule)
	}
	if c.matcher != nil && c.matcher.Available() {
		match, havePattern = c.matcher.Classify(e.Message, e.Rule)
	}

	kbConfidence := builtinConfidence
	if kbEntry.Provenance == ruledb.ProvenanceRefreshed {
		kbConfidence = refreshedConfidence
	}

	switch {
	case haveKB && havePattern:
		if kbEntry.Tier == match.Tier {
			confidence := match.Confidence
			if kbConfidence > confidence {
				confidence = kbConfidence
			}
			return match.Tier, match.Category, confidence, model.SourcePattern
		}
		if kbEntry.Tier > match.Tier {
			return kbEntry.Tier, kbEntry.Category, kbConfidence, model.SourceRuleKB
		}
		return match.Tier, match.Category, match.Confidence, model.SourcePattern
	case haveKB:
		return kbEntry.Tier, kbEntry.Category, kbConfidence, model.SourceRuleKB
	case havePattern:
		return match.Tier, match.Category, match.Confidence, model.SourcePattern
	default:
		return model.TierManualOnly, model.CategoryUnknown, 0, model.SourceRuleKB
	}
}

// Record appends a training example for an attempted error. This is the
// only path that grows the persisted learning state, and clears any
// per-occurrence override for the error.
func (c *Classifier) Record(ctx context.Context, e model.LintError, fixed bool, confidence float64) error {
	signature := e.SignatureHash()

	if c.storage != nil {
		example := &model.TrainingExample{
			Signature:  signature,
			Language:   c.language,
			Fixed:      fixed,
			Confidence: confidence,
			CreatedAt:  time.Now(),
		}
		if err := c.storage.AppendTrainingExample(ctx, example); err != nil {
			return fmt.Errorf("failed to record training example: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats[signature]
	stats.Signature = signature
	stats.Attempts++
	if fixed {
		stats.Successes++
	}
	c.stats[signature] = stats

	delete(c.overrides, e.LocationKey())

	return nil
}

// Override forces a classification for one occurrence. Global state is
// untouched until Record is called with the resulting outcome.
func (c *Classifier) Override(e model.LintError, category model.Category, tier model.FixabilityTier) model.ErrorClassification {
	override := model.ErrorClassification{
		Error:        e,
		Category:     category,
		Tier:         tier,
		Confidence:   1.0,
		Source:       model.SourceOverride,
		ClassifiedAt: time.Now(),
	}

	c.mu.Lock()
	c.overrides[e.LocationKey()] = override
	c.mu.Unlock()

	return override
}

// Pin marks a signature MANUAL_ONLY for the remainder of the run. Used
// after convergence to prevent oscillation; never persisted.
func (c *Classifier) Pin(signature string) {
	c.mu.Lock()
	c.pinned[signature] = struct{}{}
	c.mu.Unlock()
}

// Pinned reports whether a signature has been pinned MANUAL_ONLY.
func (c *Classifier) Pinned(signature string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.pinned[signature]
	return ok
}
