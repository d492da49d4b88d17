package pattern

import "github.com/lintmender/lintmender/internal/model"

// DefaultPatterns returns the default set of lint error message patterns.
func DefaultPatterns() []Pattern {
	return []Pattern{
		// Formatting problems - highest priority, safest to fix
		{
			Name:       "Line Too Long",
			Rule:       "line too long",
			Regex:      `\bline\s+too\s+long\b`,
			Category:   model.CategoryStyle,
			Tier:       model.TierTrivial,
			Priority:   100,
			Confidence: 0.95,
		},
		{
			Name:       "Trailing Whitespace",
			Regex:      `\b(trailing\s+whitespace|whitespace\s+at\s+end\s+of\s+line)\b`,
			Category:   model.CategoryStyle,
			Tier:       model.TierTrivial,
			Priority:   100,
			Confidence: 0.95,
		},
		{
			Name:       "Blank Line Count",
			Regex:      `\b(expected\s+#?\s*blank\s+lines?|too\s+many\s+blank\s+lines?)\b`,
			Category:   model.CategoryStyle,
			Tier:       model.TierTrivial,
			Priority:   95,
			Confidence: 0.95,
		},
		{
			Name:       "Missing Whitespace",
			Regex:      `\bmissing\s+whitespace\s+(around|after|before)\b`,
			Category:   model.CategoryStyle,
			Tier:       model.TierTrivial,
			Priority:   95,
			Confidence: 0.9,
		},
		{
			Name:       "Indentation",
			Regex:      `\b(indentation\s+is\s+not|unexpected\s+indentation|wrong\s+indentation)\b`,
			Category:   model.CategoryStyle,
			Tier:       model.TierTrivial,
			Priority:   90,
			Confidence: 0.9,
		},
		{
			Name:       "Missing Final Newline",
			Regex:      `\b(no\s+newline\s+at\s+end\s+of\s+file|missing\s+final\s+newline)\b`,
			Category:   model.CategoryStyle,
			Tier:       model.TierTrivial,
			Priority:   90,
			Confidence: 0.95,
		},

		// Dead code - safe, but edits cross statement boundaries
		{
			Name:       "Unused Import",
			Regex:      `\b(imported\s+but\s+unused|unused\s+import)\b`,
			Category:   model.CategoryStyle,
			Tier:       model.TierSimple,
			Priority:   85,
			Confidence: 0.9,
		},
		{
			Name:       "Unused Variable",
			Regex:      `\b(assigned\s+to\s+but\s+never\s+used|unused\s+variable|declared\s+(and|but)\s+not\s+used)\b`,
			Category:   model.CategoryStyle,
			Tier:       model.TierSimple,
			Priority:   85,
			Confidence: 0.85,
		},
		{
			Name:       "Unreachable Code",
			Regex:      `\bunreachable\s+code\b`,
			Category:   model.CategoryLogic,
			Tier:       model.TierModerate,
			Priority:   75,
			Confidence: 0.75,
		},

		// Comparison and expression fixes
		{
			Name:       "Comparison To Literal",
			Regex:      `\bcomparison\s+(to|with)\s+(none|true|false|nil)\b`,
			Category:   model.CategoryLogic,
			Tier:       model.TierSimple,
			Priority:   80,
			Confidence: 0.85,
		},
		{
			Name:       "F-String Placeholder",
			Regex:      `\bf-string\s+(is\s+missing\s+placeholders|without\s+any\s+placeholders)\b`,
			Category:   model.CategoryStyle,
			Tier:       model.TierSimple,
			Priority:   80,
			Confidence: 0.85,
		},
		{
			Name:       "Invalid Escape Sequence",
			Regex:      `\binvalid\s+escape\s+sequence\b`,
			Category:   model.CategoryLogic,
			Tier:       model.TierSimple,
			Priority:   80,
			Confidence: 0.8,
		},

		// Risky territory - needs surrounding context to fix correctly
		{
			Name:       "Undefined Name",
			Regex:      `\b(undefined\s+name|undefined\s+variable|is\s+not\s+defined)\b`,
			Category:   model.CategoryLogic,
			Tier:       model.TierComplex,
			Priority:   70,
			Confidence: 0.6,
		},
		{
			Name:       "Bare Except",
			Regex:      `\b(bare\s+except|do\s+not\s+use\s+bare)\b`,
			Category:   model.CategoryLogic,
			Tier:       model.TierModerate,
			Priority:   70,
			Confidence: 0.7,
		},
		{
			Name:       "Type Mismatch",
			Regex:      `\b(incompatible\s+type|type\s+mismatch|cannot\s+use\s+.*\s+as\s+type)\b`,
			Category:   model.CategoryLogic,
			Tier:       model.TierComplex,
			Priority:   65,
			Confidence: 0.55,
		},
		{
			Name:       "Redefinition",
			Regex:      `\bredefinition\s+of\b`,
			Category:   model.CategoryLogic,
			Tier:       model.TierModerate,
			Priority:   65,
			Confidence: 0.65,
		},

		// Structural findings stay with a human
		{
			Name:       "Too Complex",
			Regex:      `\b(is\s+too\s+complex|cyclomatic\s+complexity|cognitive\s+complexity)\b`,
			Category:   model.CategoryStructural,
			Tier:       model.TierManualOnly,
			Priority:   60,
			Confidence: 0.9,
		},
		{
			Name:       "Too Many Arguments",
			Regex:      `\btoo\s+many\s+(arguments|parameters|locals|branches|statements)\b`,
			Category:   model.CategoryStructural,
			Tier:       model.TierManualOnly,
			Priority:   60,
			Confidence: 0.85,
		},
		{
			Name:       "Circular Import",
			Regex:      `\b(circular\s+import|import\s+cycle)\b`,
			Category:   model.CategoryStructural,
			Tier:       model.TierManualOnly,
			Priority:   60,
			Confidence: 0.9,
		},
	}
}
