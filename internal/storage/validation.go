package storage

import (
	"context"
	"fmt"

	"github.com/lintmender/lintmender/internal/model"
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context is required")
	}
	return nil
}

func validateString(value, name string) error {
	if value == "" {
		return fmt.Errorf("%s is required", name)
	}
	return nil
}

func validateTrainingExample(example *model.TrainingExample) error {
	if example == nil {
		return fmt.Errorf("training example is required")
	}
	if example.Signature == "" {
		return fmt.Errorf("training example signature is required")
	}
	if example.Language == "" {
		return fmt.Errorf("training example language is required")
	}
	if example.Confidence < 0 || example.Confidence > 1 {
		return fmt.Errorf("training example confidence must be in [0,1], got %f", example.Confidence)
	}
	return nil
}

func validateFixAttempt(attempt *model.FixAttempt) error {
	if attempt == nil {
		return fmt.Errorf("fix attempt is required")
	}
	if attempt.ID == "" {
		return fmt.Errorf("fix attempt id is required")
	}
	if attempt.BatchID == "" {
		return fmt.Errorf("fix attempt batch id is required")
	}
	switch attempt.Outcome {
	case model.OutcomeSuccess, model.OutcomePartial, model.OutcomeFailed, model.OutcomeTimeout:
	default:
		return fmt.Errorf("fix attempt has unknown outcome %q", attempt.Outcome)
	}
	return nil
}
