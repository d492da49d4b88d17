// Package converge re-evaluates the error set after each repair pass and
// decides whether to continue, halt on convergence, or surface a
// regression.
package converge

import (
	"log/slog"
	"sync"

	"github.com/lintmender/lintmender/internal/model"
)

// Config holds convergence settings.
type Config struct {
	// StallThreshold is the number of consecutive passes with zero net
	// progress after which the tracker declares convergence.
	StallThreshold int
}

// DefaultConfig returns the default convergence configuration.
func DefaultConfig() Config {
	return Config{StallThreshold: 2}
}

// PassDelta summarizes the change in the outstanding error set across
// one completed pass. Progress is resolved minus introduced.
type PassDelta struct {
	Introduced []model.LintError
	Resolved   int
	Unchanged  int
	Progress   int
}

// Tracker accumulates pass deltas and owns the stop decision.
type Tracker struct {
	pausedFiles   map[string]struct{}
	passes        []PassDelta
	config        Config
	stalledPasses int
	converged     bool
	mu            sync.Mutex
}

// NewTracker creates a convergence tracker.
func NewTracker(config Config) *Tracker {
	if config.StallThreshold <= 0 {
		config.StallThreshold = DefaultConfig().StallThreshold
	}
	return &Tracker{
		config:      config,
		pausedFiles: make(map[string]struct{}),
	}
}

// RecordPass computes the delta between the error sets before and after
// a pass. Newly introduced errors pause their files pending external
// review; zero net progress for the configured number of consecutive
// passes declares convergence.
func (t *Tracker) RecordPass(previous, current []model.LintError) PassDelta {
	before := make(map[string]model.LintError, len(previous))
	for _, e := range previous {
		before[e.LocationKey()] = e
	}
	after := make(map[string]struct{}, len(current))
	for _, e := range current {
		after[e.LocationKey()] = struct{}{}
	}

	delta := PassDelta{}
	for key := range before {
		if _, ok := after[key]; !ok {
			delta.Resolved++
		}
	}
	for _, e := range current {
		if _, ok := before[e.LocationKey()]; ok {
			delta.Unchanged++
		} else {
			delta.Introduced = append(delta.Introduced, e)
		}
	}
	delta.Progress = delta.Resolved - len(delta.Introduced)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.passes = append(t.passes, delta)

	for _, e := range delta.Introduced {
		t.pausedFiles[e.File] = struct{}{}
	}

	if delta.Progress <= 0 {
		t.stalledPasses++
		if t.stalledPasses >= t.config.StallThreshold && !t.converged {
			t.converged = true
			slog.Info("Convergence declared",
				"stalled_passes", t.stalledPasses,
				"outstanding", len(current))
		}
	} else {
		t.stalledPasses = 0
	}

	slog.Info("Pass recorded",
		"resolved", delta.Resolved,
		"introduced", len(delta.Introduced),
		"unchanged", delta.Unchanged,
		"progress", delta.Progress)

	return delta
}

// Converged reports whether further automatic passes are pointless.
func (t *Tracker) Converged() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.converged
}

// PausedFiles returns a snapshot of files paused by regressions.
func (t *Tracker) PausedFiles() map[string]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	paused := make(map[string]struct{}, len(t.pausedFiles))
	for f := range t.pausedFiles {
		paused[f] = struct{}{}
	}
	return paused
}

// ResumeFile lifts the pause on a file after external review.
func (t *Tracker) ResumeFile(file string) {
	t.mu.Lock()
	delete(t.pausedFiles, file)
	t.mu.Unlock()
}

// Passes returns the recorded pass history.
func (t *Tracker) Passes() []PassDelta {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]PassDelta, len(t.passes))
	copy(out, t.passes)
	return out
}
