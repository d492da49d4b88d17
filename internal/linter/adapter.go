// Package linter defines the fixed capability interface for linter
// adapters and a generic exec-based implementation. The classification
// and scheduling core depends only on this interface, never on
// linter-specific types.
package linter

import (
	"context"

	"github.com/lintmender/lintmender/internal/model"
)

// Adapter is the per-linter capability interface: detect whether the
// linter applies, run it, and parse its raw output into normalized
// errors.
type Adapter interface {
	Name() string
	Detect(ctx context.Context) bool
	Run(ctx context.Context, paths []string) ([]byte, error)
	Parse(output []byte) ([]model.LintError, error)
}
