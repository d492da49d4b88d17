// Package pattern provides fast multi-pattern classification of lint
// error messages against known fixable and unfixable signatures.
package pattern

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/lintmender/lintmender/internal/model"
)

// Pattern is one known error signature with its classification.
type Pattern struct {
	Name       string
	Rule       string // optional exact rule id this pattern also covers
	Regex      string
	Category   model.Category
	Tier       model.FixabilityTier
	Confidence float64
	Priority   int
}

// Match is the classification produced by a matching pattern.
type Match struct {
	Name       string
	Category   model.Category
	Tier       model.FixabilityTier
	Confidence float64
}

// Matcher classifies messages with a single combined expression compiled
// once per run, so match time is independent of the pattern-table size.
// The zero-pattern matcher reports Available() == false and the caller
// degrades to knowledge-base-only classification.
type Matcher struct {
	combined *regexp.Regexp
	byRule   map[string]Pattern
	patterns []Pattern
	groups   []int
}

// NewMatcher compiles the given patterns into one matcher. Patterns are
// ordered most specific first (priority, then literal length) so that the
// engine's leftmost-first alternation realizes the tie-break policy.
func NewMatcher(patterns []Pattern) (*Matcher, error) {
	m := &Matcher{
		byRule: make(map[string]Pattern),
	}

	ordered := make([]Pattern, len(patterns))
	copy(ordered, patterns)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return len(ordered[i].Regex) > len(ordered[j].Regex)
	})

	alternatives := make([]string, 0, len(ordered))
	for _, p := range ordered {
		if p.Regex == "" && p.Rule == "" {
			return nil, fmt.Errorf("pattern %q has neither regex nor rule", p.Name)
		}
		if p.Rule != "" {
			m.byRule[strings.ToLower(p.Rule)] = p
		}
		if p.Regex == "" {
			continue
		}
		if _, err := regexp.Compile(p.Regex); err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p.Name, err)
		}
		alternatives = append(alternatives, fmt.Sprintf("(?P<g%d>%s)", len(m.patterns), p.Regex))
		m.patterns = append(m.patterns, p)
	}

	if len(alternatives) > 0 {
		combined, err := regexp.Compile("(?i)" + strings.Join(alternatives, "|"))
		if err != nil {
			return nil, fmt.Errorf("failed to compile combined pattern: %w", err)
		}
		m.combined = combined

		m.groups = make([]int, len(m.patterns))
		for i := range m.patterns {
			m.groups[i] = combined.SubexpIndex(fmt.Sprintf("g%d", i))
		}
	}

	return m, nil
}

// Available reports whether any message patterns were compiled.
func (m *Matcher) Available() bool {
	return m.combined != nil || len(m.byRule) > 0
}

// Classify returns the most specific matching pattern for a message and
// rule id, or no match. An exact rule-id pattern beats a message match.
func (m *Matcher) Classify(message, ruleID string) (Match, bool) {
	if p, ok := m.byRule[strings.ToLower(ruleID)]; ok {
		return toMatch(p), true
	}

	if m.combined == nil {
		return Match{}, false
	}

	loc := m.combined.FindStringSubmatchIndex(message)
	if loc == nil {
		return Match{}, false
	}

	for i, p := range m.patterns {
		g := m.groups[i]
		if g > 0 && loc[2*g] >= 0 {
			return toMatch(p), true
		}
	}

	return Match{}, false
}

// Size returns the number of compiled patterns.
func (m *Matcher) Size() int {
	return len(m.patterns) + len(m.byRule)
}

func toMatch(p Pattern) Match {
	return Match{
		Name:       p.Name,
		Category:   p.Category,
		Tier:       p.Tier,
		Confidence: p.Confidence,
	}
}
