package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/copperpot/copperpot/internal/common"
)

// PatternKind describes how a rule's pattern is evaluated against a transaction.
type PatternKind string

// Pattern kind constants.
const (
	PatternExact    PatternKind = "exact"
	PatternContains PatternKind = "contains"
	PatternRegex    PatternKind = "regex"
	PatternIBAN     PatternKind = "iban"
)

// RuleSource indicates where a pattern rule came from.
type RuleSource string

// Rule source constants.
const (
	RuleSourceUser   RuleSource = "user"
	RuleSourceSystem RuleSource = "system"
	RuleSourceML     RuleSource = "ml"
)

// ibanShape is the structural shape of an IBAN: two-letter country code,
// two check digits, then up to 30 alphanumerics.
var ibanShape = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]{1,30}$`)

// PatternRule represents a categorization rule: a pattern plus a target
// spending category. Rules are never deleted implicitly; deactivation is
// preferred over deletion.
type PatternRule struct {
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	UserID     string      `json:"user_id"`
	Pattern    string      `json:"pattern"`
	Kind       PatternKind `json:"kind"`
	Category   string      `json:"category"`
	Source     RuleSource  `json:"source"`
	ID         int         `json:"id"`
	Priority   int         `json:"priority"`
	Confidence float64     `json:"confidence"`
	IsActive   bool        `json:"is_active"`
}

// NewPatternRule builds a validated pattern rule. IBAN patterns are stored
// upper-cased with internal spaces removed.
func NewPatternRule(userID, pattern string, kind PatternKind, category string, confidence float64, priority int, source RuleSource) (*PatternRule, error) {
	rule := &PatternRule{
		UserID:     userID,
		Pattern:    pattern,
		Kind:       kind,
		Category:   category,
		Confidence: confidence,
		Priority:   priority,
		Source:     source,
		IsActive:   true,
	}
	if kind == PatternIBAN {
		rule.Pattern = NormalizeIBAN(pattern)
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// Validate checks the rule's structural invariants. It is also run by the
// storage layer before any write.
func (r *PatternRule) Validate() error {
	if strings.TrimSpace(r.Pattern) == "" {
		return common.ErrEmptyPattern
	}
	if strings.TrimSpace(r.Category) == "" {
		return fmt.Errorf("%w: category cannot be empty", common.ErrInvalidConfig)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return common.ErrConfidenceOutOfRange
	}

	switch r.Kind {
	case PatternExact, PatternContains:
		// Any non-empty pattern is acceptable.
	case PatternRegex:
		if _, err := regexp.Compile("(?i)" + r.Pattern); err != nil {
			return fmt.Errorf("%w: %v", common.ErrInvalidRegex, err)
		}
	case PatternIBAN:
		if !ibanShape.MatchString(r.Pattern) {
			return fmt.Errorf("%w: %q", common.ErrInvalidIBAN, r.Pattern)
		}
	default:
		return fmt.Errorf("%w: %q", common.ErrInvalidPatternKind, r.Kind)
	}

	switch r.Source {
	case RuleSourceUser, RuleSourceSystem, RuleSourceML:
	default:
		return fmt.Errorf("%w: invalid rule source %q", common.ErrInvalidConfig, r.Source)
	}

	return nil
}

// NormalizeIBAN upper-cases an IBAN and strips spaces, the canonical form
// rules and transactions store.
func NormalizeIBAN(iban string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(iban), " ", ""))
}
