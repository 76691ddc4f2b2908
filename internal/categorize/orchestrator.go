// Package categorize implements the confidence-tiered category suggestion
// engine: pattern rules first, a feedback-frequency heuristic second, and a
// fixed fallback last.
package categorize

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/copperpot/copperpot/internal/common"
	"github.com/copperpot/copperpot/internal/model"
	"github.com/copperpot/copperpot/internal/pattern"
	"github.com/copperpot/copperpot/internal/service"
)

// Confidence thresholds. Callers use these to decide auto-apply vs. prompt
// vs. discard; the policy itself lives outside this package.
const (
	// HighConfidence marks suggestions safe to auto-apply.
	HighConfidence = 0.8
	// MediumConfidence is the bar a tier must clear to short-circuit the
	// tiers below it.
	MediumConfidence = 0.5
	// FallbackConfidence is the fixed confidence of the fallback tier.
	FallbackConfidence = 0.3
)

// Heuristic tier parameters.
const (
	// heuristicLimit caps how much feedback history the heuristic reads.
	heuristicLimit = 100
	// heuristicMinRecords is the minimum history size before the frequency
	// prior is trusted at all.
	heuristicMinRecords = 10
	// heuristicMaxConfidence caps the heuristic's confidence; a naive
	// frequency prior never reaches the auto-apply bar on its own.
	heuristicMaxConfidence = 0.6
)

// fallbackReason is the reason attached to fallback suggestions.
const fallbackReason = "no matching rules or heuristic available"

// Source identifies which tier produced a suggestion.
type Source string

// Suggestion sources.
const (
	SourceRule      Source = "rule"
	SourceHeuristic Source = "heuristic"
	SourceFallback  Source = "fallback"
)

// Suggestion is a category proposal with its confidence and provenance.
type Suggestion struct {
	RuleID     *int
	Category   string
	Reason     string
	Source     Source
	Confidence float64
}

// Orchestrator runs the tiered categorization process over a user's rules
// and feedback history.
type Orchestrator struct {
	rules    service.RuleStore
	feedback service.FeedbackStore
}

// New creates a categorization orchestrator.
func New(rules service.RuleStore, feedback service.FeedbackStore) *Orchestrator {
	return &Orchestrator{
		rules:    rules,
		feedback: feedback,
	}
}

// SuggestCategory produces a category suggestion for the transaction. Each
// tier is consulted only when the previous one stayed below MediumConfidence;
// repository failures propagate, matcher and heuristic evaluation never fail.
func (o *Orchestrator) SuggestCategory(ctx context.Context, userID string, txn model.BankTransaction) (Suggestion, error) {
	ruleSugg, err := o.ruleTier(ctx, userID, txn)
	if err != nil {
		return Suggestion{}, fmt.Errorf("rule tier failed: %w", err)
	}
	if ruleSugg != nil && ruleSugg.Confidence >= MediumConfidence {
		return *ruleSugg, nil
	}

	// An abstention for lack of history is expected, not a failure; the
	// fallback tier covers it.
	heurSugg, err := o.heuristicTier(ctx, userID)
	if err != nil && !errors.Is(err, common.ErrInsufficientFeedback) {
		return Suggestion{}, fmt.Errorf("heuristic tier failed: %w", err)
	}
	if heurSugg != nil && heurSugg.Confidence >= MediumConfidence {
		return *heurSugg, nil
	}

	// Both tiers stayed sub-threshold: take the more confident of the two,
	// with ties going to the rule tier since it was evaluated first.
	switch {
	case ruleSugg != nil && heurSugg != nil:
		if ruleSugg.Confidence >= heurSugg.Confidence {
			return *ruleSugg, nil
		}
		return *heurSugg, nil
	case ruleSugg != nil:
		return *ruleSugg, nil
	case heurSugg != nil:
		return *heurSugg, nil
	}

	return Suggestion{
		Category:   model.FallbackCategory,
		Confidence: FallbackConfidence,
		Reason:     fallbackReason,
		Source:     SourceFallback,
	}, nil
}

// ruleTier evaluates the user's active rules in descending priority order
// and returns the first match. Selection is by priority, not by confidence:
// a higher-priority rule wins even when a lower-priority rule is more
// confident.
func (o *Orchestrator) ruleTier(ctx context.Context, userID string, txn model.BankTransaction) (*Suggestion, error) {
	rules, err := o.rules.GetActiveRulesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	if len(rules) == 0 {
		return nil, nil
	}

	// Stable: rules with equal priority keep their retrieval order.
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})

	matcher := pattern.NewMatcher(rules)
	text := txn.MatchText()

	for i := range rules {
		if matcher.Matches(rules[i], text, txn.CounterpartyIBAN) {
			ruleID := rules[i].ID
			return &Suggestion{
				Category:   rules[i].Category,
				Confidence: rules[i].Confidence,
				Reason:     fmt.Sprintf("matched %s pattern %q", rules[i].Kind, rules[i].Pattern),
				Source:     SourceRule,
				RuleID:     &ruleID,
			}, nil
		}
	}

	return nil, nil
}

// heuristicTier computes a frequency prior over the user's recent feedback.
// Fewer than heuristicMinRecords records means the tier abstains with
// ErrInsufficientFeedback.
func (o *Orchestrator) heuristicTier(ctx context.Context, userID string) (*Suggestion, error) {
	records, err := o.feedback.GetRecentFeedback(ctx, userID, heuristicLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback history: %w", err)
	}
	if len(records) < heuristicMinRecords {
		common.LogDebug("heuristic tier abstaining", common.Fields{
			"user_id":      userID,
			"record_count": len(records),
			"minimum":      heuristicMinRecords,
		})
		return nil, fmt.Errorf("%d of %d required records: %w", len(records), heuristicMinRecords, common.ErrInsufficientFeedback)
	}

	counts := make(map[string]int)
	var best string
	var bestCount int
	for _, rec := range records {
		counts[rec.ActualCategory]++
		if counts[rec.ActualCategory] > bestCount {
			best = rec.ActualCategory
			bestCount = counts[rec.ActualCategory]
		}
	}

	confidence := float64(bestCount) / float64(len(records))
	if confidence > heuristicMaxConfidence {
		confidence = heuristicMaxConfidence
	}

	return &Suggestion{
		Category:   best,
		Confidence: confidence,
		Reason:     fmt.Sprintf("most frequent category across %d recent feedback records", len(records)),
		Source:     SourceHeuristic,
	}, nil
}
