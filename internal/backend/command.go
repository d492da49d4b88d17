package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/lintmender/lintmender/internal/common"
	"github.com/lintmender/lintmender/internal/service"
)

// commandClient implements service.FixBackend by shelling out to an AI
// coding CLI (claude-compatible flags).
type commandClient struct {
	cliPath string
	model   string
}

// newCommandClient creates a command-backed fix client.
func newCommandClient(cfg Config) (service.FixBackend, error) {
	cliPath := cfg.CommandPath
	if cliPath == "" {
		cliPath = "claude"
	}

	if _, err := exec.LookPath(cliPath); err != nil {
		return nil, fmt.Errorf("fix backend CLI not found at %s: %w", cliPath, err)
	}

	model := cfg.Model
	if model == "" {
		model = "sonnet"
	}

	return &commandClient{
		cliPath: cliPath,
		model:   model,
	}, nil
}

// commandResponse is the JSON envelope the CLI emits.
type commandResponse struct {
	Result  string `json:"result"`
	IsError bool   `json:"is_error"`
}

// fixReport is the structured payload the prompt asks the model to emit.
type fixReport struct {
	ModifiedFiles []string `json:"modified_files"`
	ResolvedIDs   []string `json:"resolved_ids"`
	Cost          float64  `json:"cost"`
}

// FixBatch asks the CLI to repair the batch's errors and reports which
// error ids it believes it resolved.
func (c *commandClient) FixBatch(ctx context.Context, req service.FixRequest) (service.FixResult, error) {
	prompt := buildPrompt(req)

	args := []string{
		"-p", prompt,
		"--output-format", "json",
		"--model", c.model,
	}

	cmd := exec.CommandContext(ctx, c.cliPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return service.FixResult{}, &common.BackendError{Kind: common.BackendTimeout, Err: ctx.Err()}
		}
		if stderr.Len() > 0 {
			return service.FixResult{}, &common.BackendError{
				Kind: common.BackendExitFailure,
				Err:  fmt.Errorf("%s", strings.TrimSpace(stderr.String())),
			}
		}
		return service.FixResult{}, &common.BackendError{Kind: common.BackendExitFailure, Err: err}
	}

	var envelope commandResponse
	if err := json.Unmarshal(stdout.Bytes(), &envelope); err != nil {
		return service.FixResult{}, &common.BackendError{
			Kind: common.BackendBadResponse,
			Err:  fmt.Errorf("invalid response envelope: %w", err),
		}
	}
	if envelope.IsError {
		return service.FixResult{}, &common.BackendError{
			Kind: common.BackendExitFailure,
			Err:  errors.New("backend reported an error result"),
		}
	}

	report, err := parseReport(envelope.Result)
	if err != nil {
		return service.FixResult{}, &common.BackendError{Kind: common.BackendBadResponse, Err: err}
	}

	return service.FixResult{
		ModifiedFiles: report.ModifiedFiles,
		ResolvedIDs:   report.ResolvedIDs,
		Cost:          report.Cost,
	}, nil
}

// buildPrompt renders the batch into the repair instruction. Each error
// carries its location key so the model can report resolution per error.
func buildPrompt(req service.FixRequest) string {
	var b strings.Builder

	b.WriteString("You are a code repair tool. Fix ONLY the lint errors listed below, ")
	b.WriteString("editing the referenced files in place. Do not refactor, reformat ")
	b.WriteString("unrelated code, or change behavior beyond what each fix requires.\n\n")

	fmt.Fprintf(&b, "Language: %s\nFiles: %s\n\nErrors:\n", req.Language, strings.Join(req.Files, ", "))
	for _, ec := range req.Errors {
		fmt.Fprintf(&b, "- id=%s %s:%d:%d [%s/%s] %s\n",
			ec.Error.LocationKey(),
			ec.Error.File, ec.Error.Line, ec.Error.Column,
			ec.Error.Linter, ec.Error.Rule,
			ec.Error.Message)
	}

	b.WriteString("\nWhen finished, respond with exactly one JSON object:\n")
	b.WriteString(`{"modified_files": [...], "resolved_ids": [...], "cost": <number>}`)
	b.WriteString("\nlisting the ids of the errors you fixed.")

	return b.String()
}

// parseReport extracts the JSON report, tolerating surrounding prose.
func parseReport(result string) (fixReport, error) {
	var report fixReport

	start := strings.IndexByte(result, '{')
	end := strings.LastIndexByte(result, '}')
	if start < 0 || end <= start {
		return report, errors.New("no JSON report in backend response")
	}

	if err := json.Unmarshal([]byte(result[start:end+1]), &report); err != nil {
		return report, fmt.Errorf("malformed fix report: %w", err)
	}
	return report, nil
}
