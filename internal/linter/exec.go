package linter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/lintmender/lintmender/internal/model"
)

// ExecAdapter runs an external linter command and parses the common
// `file:line:col: rule message` output format shared by flake8, mypy,
// golangci-lint and friends.
type ExecAdapter struct {
	name    string
	command string
	args    []string
}

// NewExecAdapter creates an adapter for one linter command.
func NewExecAdapter(name, command string, args ...string) *ExecAdapter {
	return &ExecAdapter{
		name:    name,
		command: command,
		args:    args,
	}
}

// Name returns the linter identifier.
func (a *ExecAdapter) Name() string {
	return a.name
}

// Detect reports whether the linter binary is on PATH.
func (a *ExecAdapter) Detect(_ context.Context) bool {
	_, err := exec.LookPath(a.command)
	return err == nil
}

// Run invokes the linter. Linters exit nonzero when findings exist, so
// an exit status of 1 with output is a normal result, not a failure.
func (a *ExecAdapter) Run(ctx context.Context, paths []string) ([]byte, error) {
	args := append(append([]string{}, a.args...), paths...)
	cmd := exec.CommandContext(ctx, a.command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 && stdout.Len() > 0 {
			return stdout.Bytes(), nil
		}
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%s failed: %s", a.name, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("failed to run %s: %w", a.name, err)
	}

	return stdout.Bytes(), nil
}

// Parse converts raw linter output into normalized errors. Malformed
// lines are recovered locally: logged and skipped, never fatal.
func (a *ExecAdapter) Parse(output []byte) ([]model.LintError, error) {
	var errs []model.LintError

	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		lintErr, ok := a.parseLine(line)
		if !ok {
			slog.Debug("Skipping unparseable linter line",
				"linter", a.name,
				"line", line)
			continue
		}
		errs = append(errs, lintErr)
	}

	return errs, nil
}

// parseLine handles `file:line:col: rule message` and the col-less
// `file:line: rule message` variant.
func (a *ExecAdapter) parseLine(line string) (model.LintError, bool) {
	parts := strings.SplitN(line, ":", 4)
	if len(parts) < 3 {
		return model.LintError{}, false
	}

	lineNo, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return model.LintError{}, false
	}

	col := 0
	rest := ""
	if len(parts) == 4 {
		if c, colErr := strconv.Atoi(strings.TrimSpace(parts[2])); colErr == nil {
			col = c
			rest = strings.TrimSpace(parts[3])
		} else {
			rest = strings.TrimSpace(parts[2] + ":" + parts[3])
		}
	} else {
		rest = strings.TrimSpace(parts[2])
	}

	rule := ""
	message := rest
	if idx := strings.IndexByte(rest, ' '); idx > 0 {
		rule = rest[:idx]
		message = strings.TrimSpace(rest[idx+1:])
	}

	return model.LintError{
		Linter:   a.name,
		Rule:     rule,
		File:     strings.TrimSpace(parts[0]),
		Line:     lineNo,
		Column:   col,
		Message:  message,
		Severity: model.SeverityWarning,
	}, true
}
