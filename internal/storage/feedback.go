package storage

import (
	"context"
	"fmt"

	"github.com/copperpot/copperpot/internal/model"
)

const feedbackColumns = `id, user_id, transaction_id, suggested_category, actual_category, confidence, kind, created_at`

// SaveFeedback appends a feedback record. The log is append-only; there is
// deliberately no update or delete.
func (s *SQLiteStorage) SaveFeedback(ctx context.Context, record *model.FeedbackRecord) error {
	return saveFeedback(ctx, s.db, record)
}

// GetRecentFeedback returns up to limit of the user's most recent feedback
// records, newest first.
func (s *SQLiteStorage) GetRecentFeedback(ctx context.Context, userID string, limit int) ([]model.FeedbackRecord, error) {
	return getRecentFeedback(ctx, s.db, userID, limit)
}

func (t *sqliteTransaction) SaveFeedback(ctx context.Context, record *model.FeedbackRecord) error {
	return saveFeedback(ctx, t.tx, record)
}

func (t *sqliteTransaction) GetRecentFeedback(ctx context.Context, userID string, limit int) ([]model.FeedbackRecord, error) {
	return getRecentFeedback(ctx, t.tx, userID, limit)
}

func saveFeedback(ctx context.Context, db dbtx, record *model.FeedbackRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if err := record.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO feedback (id, user_id, transaction_id, suggested_category, actual_category, confidence, kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		record.ID, record.UserID, record.TransactionID,
		record.SuggestedCategory, record.ActualCategory, record.Confidence,
		record.Kind, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}

	return nil
}

func getRecentFeedback(ctx context.Context, db dbtx, userID string, limit int) ([]model.FeedbackRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + feedbackColumns + ` FROM feedback WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.FeedbackRecord
	for rows.Next() {
		var record model.FeedbackRecord
		err := rows.Scan(
			&record.ID, &record.UserID, &record.TransactionID,
			&record.SuggestedCategory, &record.ActualCategory, &record.Confidence,
			&record.Kind, &record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feedback records: %w", err)
	}

	return records, nil
}
