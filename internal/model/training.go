package model

import "time"

// TrainingExample is a persisted (signature, outcome) record used to
// adjust future classification confidence. Append-only, per language.
type TrainingExample struct {
	CreatedAt  time.Time
	Signature  string
	Language   string
	Confidence float64
	Fixed      bool
}

// SignatureStats aggregates recorded outcomes for one error signature.
type SignatureStats struct {
	Signature string
	Attempts  int
	Successes int
}

// SuccessRate returns the observed fix rate, or -1 when no outcomes exist.
func (s SignatureStats) SuccessRate() float64 {
	if s.Attempts == 0 {
		return -1
	}
	return float64(s.Successes) / float64(s.Attempts)
}
