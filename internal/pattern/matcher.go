// Package pattern evaluates categorization rules against transaction text.
package pattern

import (
	"regexp"
	"strings"

	"github.com/copperpot/copperpot/internal/model"
)

// Matches evaluates a single rule against transaction text and an optional
// counterparty IBAN. It is a pure function: inactive rules never match, and
// regex compilation or matching failures are treated as no match, never as
// an error.
func Matches(rule model.PatternRule, text string, iban *string) bool {
	if !rule.IsActive {
		return false
	}

	switch rule.Kind {
	case model.PatternExact:
		return strings.EqualFold(text, rule.Pattern)

	case model.PatternContains:
		return strings.Contains(strings.ToLower(text), strings.ToLower(rule.Pattern))

	case model.PatternRegex:
		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			return false
		}
		return re.MatchString(text)

	case model.PatternIBAN:
		if iban == nil || *iban == "" {
			return false
		}
		return model.NormalizeIBAN(*iban) == rule.Pattern
	}

	return false
}

// Matcher evaluates rules with regex patterns pre-compiled per rule ID.
// Behavior is identical to Matches; only the compilation is amortized.
type Matcher struct {
	compiled map[int]*regexp.Regexp
}

// NewMatcher creates a matcher with the given rules' regex patterns
// pre-compiled. Patterns that fail to compile are simply absent from the
// cache and never match.
func NewMatcher(rules []model.PatternRule) *Matcher {
	m := &Matcher{compiled: make(map[int]*regexp.Regexp)}
	for _, rule := range rules {
		if rule.Kind == model.PatternRegex && rule.Pattern != "" {
			if re, err := regexp.Compile("(?i)" + rule.Pattern); err == nil {
				m.compiled[rule.ID] = re
			}
		}
	}
	return m
}

// Matches evaluates a rule using the pre-compiled cache where possible.
func (m *Matcher) Matches(rule model.PatternRule, text string, iban *string) bool {
	if rule.Kind == model.PatternRegex {
		if !rule.IsActive {
			return false
		}
		re, ok := m.compiled[rule.ID]
		if !ok {
			return false
		}
		return re.MatchString(text)
	}
	return Matches(rule, text, iban)
}
