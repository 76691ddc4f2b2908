package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/copperpot/copperpot/internal/common"
)

// MatchedBy indicates whether a match was created by a user or the system.
type MatchedBy string

// Matched-by constants.
const (
	MatchedByUser   MatchedBy = "user"
	MatchedBySystem MatchedBy = "system"
)

// MatchConfidence buckets a match score for display.
type MatchConfidence string

// Match confidence constants.
const (
	MatchConfidenceHigh   MatchConfidence = "high"
	MatchConfidenceMedium MatchConfidence = "medium"
	MatchConfidenceLow    MatchConfidence = "low"
)

// AutoMatchMinScore is the lowest score at which the system may create a
// match without user confirmation. The boundary is inclusive.
const AutoMatchMinScore = 90.0

// InvoiceMatch links an invoice to the bank transaction that pays it.
// At most one match may exist per (invoice, transaction) pair; the storage
// layer's unique constraint is the authoritative guard.
type InvoiceMatch struct {
	CreatedAt       time.Time       `json:"created_at"`
	MatchedByUserID *string         `json:"matched_by_user_id,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
	ID              string          `json:"id"`
	InvoiceID       string          `json:"invoice_id"`
	TransactionID   string          `json:"transaction_id"`
	MatchConfidence MatchConfidence `json:"match_confidence"`
	MatchedBy       MatchedBy       `json:"matched_by"`
	MatchScore      float64         `json:"match_score"`
}

// NewManualMatch builds a user-confirmed match. Manual confirmation implies
// full confidence regardless of any computed score.
func NewManualMatch(invoiceID, transactionID string, notes, userID *string) *InvoiceMatch {
	return &InvoiceMatch{
		ID:              uuid.NewString(),
		InvoiceID:       invoiceID,
		TransactionID:   transactionID,
		MatchScore:      100,
		MatchConfidence: MatchConfidenceHigh,
		MatchedBy:       MatchedByUser,
		MatchedByUserID: userID,
		Notes:           notes,
		CreatedAt:       time.Now(),
	}
}

// NewAutoMatch builds a system-created match. Scores below AutoMatchMinScore
// are rejected; the engine checks this before any lookup, and the constructor
// enforces it again as a model invariant.
func NewAutoMatch(invoiceID, transactionID string, matchScore float64) (*InvoiceMatch, error) {
	if matchScore < 0 || matchScore > 100 {
		return nil, fmt.Errorf("%w: match score must be between 0 and 100", common.ErrInvalidConfig)
	}
	if matchScore < AutoMatchMinScore {
		return nil, fmt.Errorf("%w: score %.1f < %.0f", common.ErrScoreBelowThreshold, matchScore, AutoMatchMinScore)
	}
	return &InvoiceMatch{
		ID:              uuid.NewString(),
		InvoiceID:       invoiceID,
		TransactionID:   transactionID,
		MatchScore:      matchScore,
		MatchConfidence: ConfidenceForScore(matchScore),
		MatchedBy:       MatchedBySystem,
		CreatedAt:       time.Now(),
	}, nil
}

// ConfidenceForScore buckets a 0–100 match score.
func ConfidenceForScore(score float64) MatchConfidence {
	switch {
	case score >= AutoMatchMinScore:
		return MatchConfidenceHigh
	case score >= 70:
		return MatchConfidenceMedium
	default:
		return MatchConfidenceLow
	}
}
