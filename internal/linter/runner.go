package linter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lintmender/lintmender/internal/model"
)

// Runner fans a lint request out to every applicable adapter and merges
// the normalized results. It implements service.Linter for the engine's
// re-evaluation path.
type Runner struct {
	adapters []Adapter
}

// NewRunner creates a runner over the given adapters.
func NewRunner(adapters ...Adapter) *Runner {
	return &Runner{adapters: adapters}
}

// DefaultAdapters returns exec adapters for the linters the tool knows
// how to drive out of the box.
func DefaultAdapters() []Adapter {
	return []Adapter{
		NewExecAdapter("flake8", "flake8"),
		NewExecAdapter("eslint", "eslint", "--format", "unix"),
		NewExecAdapter("golangci-lint", "golangci-lint", "run", "--out-format", "line-number"),
	}
}

// Lint runs every detected adapter over the paths and returns the merged
// normalized error list. An adapter that fails to run is skipped with a
// warning; an empty adapter set is an error.
func (r *Runner) Lint(ctx context.Context, paths []string) ([]model.LintError, error) {
	if len(r.adapters) == 0 {
		return nil, fmt.Errorf("no linter adapters configured")
	}

	var all []model.LintError
	ran := 0

	for _, adapter := range r.adapters {
		if !adapter.Detect(ctx) {
			slog.Debug("Linter not available, skipping", "linter", adapter.Name())
			continue
		}

		output, err := adapter.Run(ctx, paths)
		if err != nil {
			slog.Warn("Linter run failed, skipping",
				"linter", adapter.Name(),
				"error", err)
			continue
		}
		ran++

		errs, err := adapter.Parse(output)
		if err != nil {
			slog.Warn("Linter output unparseable, skipping",
				"linter", adapter.Name(),
				"error", err)
			continue
		}
		all = append(all, errs...)
	}

	if ran == 0 {
		return nil, fmt.Errorf("no configured linter could run")
	}

	slog.Info("Lint complete", "linters", ran, "errors", len(all))
	return all, nil
}
