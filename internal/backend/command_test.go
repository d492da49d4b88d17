package backend

import (
	"testing"

	"github.com/lintmender/lintmender/internal/model"
	"github.com/lintmender/lintmender/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt(t *testing.T) {
	req := service.FixRequest{
		BatchID:  "b1",
		Language: "python",
		Files:    []string{"app.py"},
		Errors: []model.ErrorClassification{
			{
				Error: model.LintError{
					Linter: "flake8", Rule: "E501", File: "app.py",
					Line: 12, Column: 80,
					Message: "line too long (88 > 79 characters)",
				},
				Tier:       model.TierTrivial,
				Confidence: 0.95,
			},
		},
	}

	prompt := buildPrompt(req)

	assert.Contains(t, prompt, "id=app.py:12:80:flake8:E501")
	assert.Contains(t, prompt, "line too long (88 > 79 characters)")
	assert.Contains(t, prompt, "resolved_ids")
	assert.Contains(t, prompt, "Language: python")
}

func TestParseReport(t *testing.T) {
	tests := []struct {
		name    string
		result  string
		want    fixReport
		wantErr bool
	}{
		{
			name:   "bare json",
			result: `{"modified_files": ["app.py"], "resolved_ids": ["app.py:12:80:flake8:E501"], "cost": 0.04}`,
			want: fixReport{
				ModifiedFiles: []string{"app.py"},
				ResolvedIDs:   []string{"app.py:12:80:flake8:E501"},
				Cost:          0.04,
			},
		},
		{
			name:   "json wrapped in prose",
			result: "I fixed the errors.\n{\"modified_files\": [], \"resolved_ids\": [\"k\"], \"cost\": 0.01}\nAll done!",
			want:   fixReport{ModifiedFiles: []string{}, ResolvedIDs: []string{"k"}, Cost: 0.01},
		},
		{
			name:    "no json at all",
			result:  "I could not do that.",
			wantErr: true,
		},
		{
			name:    "broken json",
			result:  `{"resolved_ids": [`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseReport(tt.result)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewCommandClient_MissingBinary(t *testing.T) {
	_, err := newCommandClient(Config{CommandPath: "definitely-not-a-real-cli"})
	require.Error(t, err)
}
