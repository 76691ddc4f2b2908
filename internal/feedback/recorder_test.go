package feedback

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copperpot/copperpot/internal/model"
)

type fakeFeedbackStore struct {
	saveErr error
	saved   []model.FeedbackRecord
}

func (f *fakeFeedbackStore) GetRecentFeedback(_ context.Context, _ string, _ int) ([]model.FeedbackRecord, error) {
	return f.saved, nil
}

func (f *fakeFeedbackStore) SaveFeedback(_ context.Context, record *model.FeedbackRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, *record)
	return nil
}

func strPtr(s string) *string       { return &s }
func floatPtr(f float64) *float64   { return &f }

func TestClassify(t *testing.T) {
	tests := []struct {
		suggested *string
		name      string
		actual    string
		want      model.FeedbackKind
	}{
		{name: "matching suggestion is confirmed", suggested: strPtr("dining"), actual: "dining", want: model.FeedbackConfirmed},
		{name: "different suggestion is corrected", suggested: strPtr("dining"), actual: "groceries", want: model.FeedbackCorrected},
		{name: "no suggestion is rejected", suggested: nil, actual: "other", want: model.FeedbackRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.suggested, tt.actual))
		})
	}
}

func TestRecord(t *testing.T) {
	store := &fakeFeedbackStore{}
	r := NewRecorder(store)

	record, err := r.Record(context.Background(), "u1", "txn-1", strPtr("dining"), "groceries", floatPtr(0.9))
	require.NoError(t, err)
	assert.Equal(t, model.FeedbackCorrected, record.Kind)
	assert.NotEmpty(t, record.ID)
	assert.False(t, record.CreatedAt.IsZero())
	require.Len(t, store.saved, 1)
	assert.Equal(t, record.ID, store.saved[0].ID)
}

func TestRecord_ValidationBeforeSave(t *testing.T) {
	store := &fakeFeedbackStore{}
	r := NewRecorder(store)

	_, err := r.Record(context.Background(), "u1", "txn-1", strPtr("dining"), "dining", floatPtr(1.5))
	require.Error(t, err)
	assert.Empty(t, store.saved, "invalid records must not reach the store")
}

func TestRecord_SaveErrorPropagates(t *testing.T) {
	storeErr := errors.New("disk full")
	r := NewRecorder(&fakeFeedbackStore{saveErr: storeErr})

	_, err := r.Record(context.Background(), "u1", "txn-1", nil, "other", nil)
	assert.ErrorIs(t, err, storeErr)
}

func TestTrainingWeight(t *testing.T) {
	tests := []struct {
		confidence *float64
		name       string
		kind       model.FeedbackKind
		want       float64
	}{
		{name: "corrected at 0.9 weighs 1.9", kind: model.FeedbackCorrected, confidence: floatPtr(0.9), want: 1.9},
		{name: "confirmed at 0.2 weighs 1.8", kind: model.FeedbackConfirmed, confidence: floatPtr(0.2), want: 1.8},
		{name: "rejected weighs 1", kind: model.FeedbackRejected, confidence: floatPtr(0.9), want: 1},
		{name: "missing confidence weighs 1", kind: model.FeedbackCorrected, confidence: nil, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := model.FeedbackRecord{Kind: tt.kind, Confidence: tt.confidence}
			assert.InDelta(t, tt.want, rec.TrainingWeight(), 1e-9)
		})
	}
}

func TestIsHighValue(t *testing.T) {
	tests := []struct {
		confidence *float64
		name       string
		kind       model.FeedbackKind
		want       bool
	}{
		{name: "confident mistake", kind: model.FeedbackCorrected, confidence: floatPtr(0.85), want: true},
		{name: "confident rejection", kind: model.FeedbackRejected, confidence: floatPtr(0.85), want: true},
		{name: "uncertain success", kind: model.FeedbackConfirmed, confidence: floatPtr(0.55), want: true},
		{name: "confident success", kind: model.FeedbackConfirmed, confidence: floatPtr(0.9), want: false},
		{name: "uncertain mistake", kind: model.FeedbackCorrected, confidence: floatPtr(0.4), want: false},
		{name: "absent confidence", kind: model.FeedbackConfirmed, confidence: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := model.FeedbackRecord{Kind: tt.kind, Confidence: tt.confidence}
			assert.Equal(t, tt.want, rec.IsHighValue())
		})
	}
}

func TestHighValue(t *testing.T) {
	records := []model.FeedbackRecord{
		{ID: "a", Kind: model.FeedbackCorrected, Confidence: floatPtr(0.9)},
		{ID: "b", Kind: model.FeedbackConfirmed, Confidence: floatPtr(0.9)},
		{ID: "c", Kind: model.FeedbackConfirmed, Confidence: floatPtr(0.3)},
	}

	high := HighValue(records)
	require.Len(t, high, 2)
	assert.Equal(t, "a", high[0].ID)
	assert.Equal(t, "c", high[1].ID)
}
