package bus

import "time"

// Topic names published by the core engines.
const (
	TopicMatchCreated      = "copperpot.match.created"
	TopicMatchRemoved      = "copperpot.match.removed"
	TopicCategorySuggested = "copperpot.category.suggested"
)

// MatchEvent is the payload for match.created and match.removed.
type MatchEvent struct {
	OccurredAt    time.Time `json:"occurred_at"`
	MatchID       string    `json:"match_id"`
	InvoiceID     string    `json:"invoice_id"`
	TransactionID string    `json:"transaction_id"`
	MatchedBy     string    `json:"matched_by"`
	MatchScore    float64   `json:"match_score"`
}

// SuggestionEvent is the payload for category.suggested.
type SuggestionEvent struct {
	OccurredAt    time.Time `json:"occurred_at"`
	UserID        string    `json:"user_id"`
	TransactionID string    `json:"transaction_id"`
	Category      string    `json:"category"`
	Source        string    `json:"source"`
	Confidence    float64   `json:"confidence"`
}
