package converge

import (
	"fmt"
	"testing"

	"github.com/lintmender/lintmender/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func errorsAt(file string, lines ...int) []model.LintError {
	out := make([]model.LintError, 0, len(lines))
	for _, line := range lines {
		out = append(out, model.LintError{
			Linter:  "flake8",
			Rule:    "E501",
			File:    file,
			Line:    line,
			Message: "line too long (88 > 79 characters)",
		})
	}
	return out
}

func TestTracker_DeltaAccounting(t *testing.T) {
	tracker := NewTracker(DefaultConfig())

	previous := errorsAt("app.py", 1, 2, 3)
	current := append(errorsAt("app.py", 3), errorsAt("new.py", 7)...)

	delta := tracker.RecordPass(previous, current)

	assert.Equal(t, 2, delta.Resolved)
	assert.Equal(t, 1, delta.Unchanged)
	require.Len(t, delta.Introduced, 1)
	assert.Equal(t, "new.py", delta.Introduced[0].File)
	assert.Equal(t, 1, delta.Progress)
}

func TestTracker_SlowProgressNeverConverges(t *testing.T) {
	tracker := NewTracker(Config{StallThreshold: 2})

	// Start with 40 errors and resolve exactly one per pass. Progress
	// stays positive, so convergence must never be declared early.
	outstanding := make([]model.LintError, 0, 40)
	for i := 0; i < 40; i++ {
		outstanding = append(outstanding, model.LintError{
			Linter: "flake8", Rule: "E501", File: "app.py", Line: i + 1,
		})
	}

	for len(outstanding) > 0 {
		next := outstanding[1:]
		delta := tracker.RecordPass(outstanding, next)
		assert.Equal(t, 1, delta.Progress)
		assert.False(t, tracker.Converged(), "converged with %d errors left", len(next))
		outstanding = next
	}
}

func TestTracker_StalledPassesConverge(t *testing.T) {
	tracker := NewTracker(Config{StallThreshold: 2})
	stuck := errorsAt("app.py", 1, 2)

	tracker.RecordPass(stuck, stuck)
	assert.False(t, tracker.Converged(), "one flat pass is not yet convergence")

	tracker.RecordPass(stuck, stuck)
	assert.True(t, tracker.Converged())
}

func TestTracker_ProgressResetsStallCount(t *testing.T) {
	tracker := NewTracker(Config{StallThreshold: 2})

	tracker.RecordPass(errorsAt("app.py", 1, 2, 3), errorsAt("app.py", 1, 2, 3))
	tracker.RecordPass(errorsAt("app.py", 1, 2, 3), errorsAt("app.py", 1, 2))
	tracker.RecordPass(errorsAt("app.py", 1, 2), errorsAt("app.py", 1, 2))

	assert.False(t, tracker.Converged(), "a productive pass resets the stall count")

	tracker.RecordPass(errorsAt("app.py", 1, 2), errorsAt("app.py", 1, 2))
	assert.True(t, tracker.Converged())
}

func TestTracker_IntroducedErrorsPauseFiles(t *testing.T) {
	tracker := NewTracker(DefaultConfig())

	tracker.RecordPass(errorsAt("app.py", 1, 2), append(errorsAt("app.py", 2), errorsAt("victim.py", 5)...))

	paused := tracker.PausedFiles()
	_, ok := paused["victim.py"]
	assert.True(t, ok)
	_, ok = paused["app.py"]
	assert.False(t, ok)

	// The snapshot is a copy.
	delete(paused, "victim.py")
	_, ok = tracker.PausedFiles()["victim.py"]
	assert.True(t, ok)

	tracker.ResumeFile("victim.py")
	assert.Empty(t, tracker.PausedFiles())
}

func TestTracker_NetRegressionCountsAsStall(t *testing.T) {
	tracker := NewTracker(Config{StallThreshold: 2})

	// One resolved, two introduced: progress is negative both passes.
	tracker.RecordPass(errorsAt("app.py", 1, 2), append(errorsAt("app.py", 2), errorsAt("app.py", 10, 11)...))
	tracker.RecordPass(errorsAt("app.py", 2, 10, 11), append(errorsAt("app.py", 10, 11), errorsAt("app.py", 20, 21)...))

	assert.True(t, tracker.Converged())
}

func TestTracker_PassHistory(t *testing.T) {
	tracker := NewTracker(DefaultConfig())

	for i := 0; i < 3; i++ {
		before := errorsAt(fmt.Sprintf("f%d.py", i), 1, 2)
		after := errorsAt(fmt.Sprintf("f%d.py", i), 1)
		tracker.RecordPass(before, after)
	}

	passes := tracker.Passes()
	require.Len(t, passes, 3)
	for _, p := range passes {
		assert.Equal(t, 1, p.Resolved)
	}
}
