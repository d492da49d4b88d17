package engine

import (
	"context"
	"sync"

	"github.com/lintmender/lintmender/internal/model"
)

// MockLinter is a test implementation of the linter collaborator. It
// replays a scripted sequence of error sets, one per Lint call, and
// repeats the last set once the script is exhausted.
type MockLinter struct {
	passes [][]model.LintError
	index  int
	mu     sync.Mutex
}

// NewMockLinter creates a mock linter from the scripted pass results.
func NewMockLinter(passes ...[]model.LintError) *MockLinter {
	return &MockLinter{passes: passes}
}

// Lint implements service.Linter.
func (m *MockLinter) Lint(_ context.Context, _ []string) ([]model.LintError, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.passes) == 0 {
		return nil, nil
	}

	i := m.index
	if i >= len(m.passes) {
		i = len(m.passes) - 1
	}
	m.index++

	out := make([]model.LintError, len(m.passes[i]))
	copy(out, m.passes[i])
	return out, nil
}

// LintCalls returns how many times Lint has been invoked.
func (m *MockLinter) LintCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}
