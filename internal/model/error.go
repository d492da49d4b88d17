// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Severity is the linter-reported severity of a finding.
type Severity string

// Severity constants.
const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// LintError represents a single normalized finding from any linter.
// Instances are ephemeral: created per linter invocation and discarded
// at process exit, never persisted.
type LintError struct {
	Linter   string
	Rule     string
	File     string
	Message  string
	Severity Severity
	Line     int
	Column   int
}

// SignatureHash creates a stable hash identifying this class of error.
// Location is deliberately excluded so the same mistake at different
// sites shares one learning signature.
func (e *LintError) SignatureHash() string {
	data := fmt.Sprintf("%s:%s:%s",
		e.Linter,
		e.Rule,
		normalizeMessage(e.Message))
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// LocationKey identifies one concrete occurrence for pass-over-pass diffing.
func (e *LintError) LocationKey() string {
	return fmt.Sprintf("%s:%d:%d:%s:%s", e.File, e.Line, e.Column, e.Linter, e.Rule)
}

// normalizeMessage strips volatile detail (numbers, quoted identifiers) so
// messages like `line too long (93 > 80)` and `line too long (101 > 80)`
// hash identically.
func normalizeMessage(msg string) string {
	var b strings.Builder
	b.Grow(len(msg))

	inQuote := byte(0)
	for i := 0; i < len(msg); i++ {
		c := msg[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			inQuote = c
			b.WriteByte('?')
		case c >= '0' && c <= '9':
			// Collapse digit runs to a single placeholder
			if i == 0 || msg[i-1] < '0' || msg[i-1] > '9' {
				b.WriteByte('#')
			}
		default:
			b.WriteByte(c)
		}
	}

	return strings.ToLower(strings.TrimSpace(b.String()))
}
