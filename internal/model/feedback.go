package model

import (
	"fmt"
	"time"

	"github.com/copperpot/copperpot/internal/common"
)

// FeedbackKind classifies a user's reaction to a category suggestion.
type FeedbackKind string

// Feedback kind constants.
const (
	FeedbackConfirmed FeedbackKind = "confirmed"
	FeedbackCorrected FeedbackKind = "corrected"
	FeedbackRejected  FeedbackKind = "rejected"
)

// FeedbackRecord is one training datum: the user confirmed, corrected, or
// rejected a suggestion for a transaction. Records are append-only and never
// mutated after creation.
type FeedbackRecord struct {
	CreatedAt         time.Time    `json:"created_at"`
	SuggestedCategory *string      `json:"suggested_category,omitempty"`
	Confidence        *float64     `json:"confidence,omitempty"`
	ID                string       `json:"id"`
	UserID            string       `json:"user_id"`
	TransactionID     string       `json:"transaction_id"`
	ActualCategory    string       `json:"actual_category"`
	Kind              FeedbackKind `json:"kind"`
}

// Validate checks the kind-specific invariants: confirmed requires
// suggested == actual, corrected requires both present and different,
// rejected may omit the suggestion.
func (f *FeedbackRecord) Validate() error {
	if f.Confidence != nil && (*f.Confidence < 0 || *f.Confidence > 1) {
		return common.ErrConfidenceOutOfRange
	}
	if f.ActualCategory == "" {
		return fmt.Errorf("%w: actual category cannot be empty", common.ErrInvalidConfig)
	}

	switch f.Kind {
	case FeedbackConfirmed:
		if f.SuggestedCategory == nil || *f.SuggestedCategory != f.ActualCategory {
			return fmt.Errorf("%w: confirmed feedback requires suggested == actual", common.ErrInvalidConfig)
		}
	case FeedbackCorrected:
		if f.SuggestedCategory == nil || *f.SuggestedCategory == f.ActualCategory {
			return fmt.Errorf("%w: corrected feedback requires a different suggestion", common.ErrInvalidConfig)
		}
	case FeedbackRejected:
		// Suggestion may be absent.
	default:
		return fmt.Errorf("%w: invalid feedback kind %q", common.ErrInvalidConfig, f.Kind)
	}

	return nil
}

// TrainingWeight returns a derived multiplier expressing how valuable this
// record is for future heuristic improvement. Low-confidence correct guesses
// and high-confidence wrong guesses both count extra. Recomputed on read,
// never persisted.
func (f *FeedbackRecord) TrainingWeight() float64 {
	if f.Confidence == nil {
		return 1
	}
	switch f.Kind {
	case FeedbackConfirmed:
		return 1 + (1 - *f.Confidence)
	case FeedbackCorrected:
		return 1 + *f.Confidence
	default:
		return 1
	}
}

// IsHighValue reports whether this record is a confident mistake or an
// uncertain success, the two cases most worth training on.
func (f *FeedbackRecord) IsHighValue() bool {
	if f.Confidence == nil {
		return false
	}
	if *f.Confidence > 0.8 && f.Kind != FeedbackConfirmed {
		return true
	}
	if *f.Confidence < 0.6 && f.Kind == FeedbackConfirmed {
		return true
	}
	return false
}
