// Package feedback records user reactions to category suggestions as
// append-only training data.
package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/copperpot/copperpot/internal/model"
	"github.com/copperpot/copperpot/internal/service"
)

// Recorder classifies and persists feedback records.
type Recorder struct {
	store service.FeedbackStore
}

// NewRecorder creates a feedback recorder.
func NewRecorder(store service.FeedbackStore) *Recorder {
	return &Recorder{store: store}
}

// Record classifies the user's reaction and appends it to the feedback log.
// No prior suggestion means rejected; a matching suggestion means confirmed;
// anything else is a correction.
func (r *Recorder) Record(ctx context.Context, userID, transactionID string, suggested *string, actual string, confidence *float64) (*model.FeedbackRecord, error) {
	record := &model.FeedbackRecord{
		ID:                uuid.NewString(),
		UserID:            userID,
		TransactionID:     transactionID,
		SuggestedCategory: suggested,
		ActualCategory:    actual,
		Confidence:        confidence,
		Kind:              Classify(suggested, actual),
		CreatedAt:         time.Now(),
	}

	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("invalid feedback: %w", err)
	}

	if err := r.store.SaveFeedback(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save feedback: %w", err)
	}

	return record, nil
}

// Classify determines the feedback kind from the suggestion and the user's
// chosen category.
func Classify(suggested *string, actual string) model.FeedbackKind {
	switch {
	case suggested == nil:
		return model.FeedbackRejected
	case *suggested == actual:
		return model.FeedbackConfirmed
	default:
		return model.FeedbackCorrected
	}
}

// HighValue filters a feedback history down to the records most worth
// training on: confident mistakes and uncertain successes.
func HighValue(records []model.FeedbackRecord) []model.FeedbackRecord {
	var out []model.FeedbackRecord
	for _, rec := range records {
		if rec.IsHighValue() {
			out = append(out, rec)
		}
	}
	return out
}
