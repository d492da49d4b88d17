package linter

import (
	"context"
	"testing"

	"github.com/lintmender/lintmender/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecAdapter_Parse(t *testing.T) {
	a := NewExecAdapter("flake8", "flake8")

	output := []byte(`app.py:12:80: E501 line too long (88 > 79 characters)
app.py:3:1: F401 'os' imported but unused

lib/util.py:44: W291 trailing whitespace
garbage line with no structure
app.py:notanumber:1: E501 nope
`)

	errs, err := a.Parse(output)
	require.NoError(t, err)
	require.Len(t, errs, 3)

	assert.Equal(t, model.LintError{
		Linter:   "flake8",
		Rule:     "E501",
		File:     "app.py",
		Line:     12,
		Column:   80,
		Message:  "line too long (88 > 79 characters)",
		Severity: model.SeverityWarning,
	}, errs[0])

	assert.Equal(t, "F401", errs[1].Rule)

	// The col-less variant parses with column zero.
	assert.Equal(t, "lib/util.py", errs[2].File)
	assert.Equal(t, 44, errs[2].Line)
	assert.Equal(t, 0, errs[2].Column)
	assert.Equal(t, "W291", errs[2].Rule)
}

func TestExecAdapter_ParseEmptyOutput(t *testing.T) {
	a := NewExecAdapter("flake8", "flake8")

	errs, err := a.Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestExecAdapter_ParseRuleWithoutMessage(t *testing.T) {
	a := NewExecAdapter("eslint", "eslint")

	errs, err := a.Parse([]byte("src/index.js:5:10: no-unused-vars\n"))
	require.NoError(t, err)
	require.Len(t, errs, 1)

	// A bare trailing token is kept as the message; the rule stays empty
	// rather than guessed.
	assert.Equal(t, "", errs[0].Rule)
	assert.Equal(t, "no-unused-vars", errs[0].Message)
}

func TestExecAdapter_RunMissingBinary(t *testing.T) {
	ctx := context.Background()
	a := NewExecAdapter("nope", "definitely-not-a-real-linter-binary")

	assert.False(t, a.Detect(ctx))
	_, err := a.Run(ctx, []string{"."})
	require.Error(t, err)
}

func TestRunner_RequiresAdapters(t *testing.T) {
	r := NewRunner()
	_, err := r.Lint(context.Background(), []string{"."})
	require.Error(t, err)
}

func TestRunner_ErrorsWhenNothingCanRun(t *testing.T) {
	r := NewRunner(NewExecAdapter("nope", "definitely-not-a-real-linter-binary"))
	_, err := r.Lint(context.Background(), []string{"."})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no configured linter could run")
}

func TestDefaultAdapters(t *testing.T) {
	adapters := DefaultAdapters()
	require.Len(t, adapters, 3)

	names := make([]string, 0, len(adapters))
	for _, a := range adapters {
		names = append(names, a.Name())
	}
	assert.ElementsMatch(t, []string{"flake8", "eslint", "golangci-lint"}, names)
}
