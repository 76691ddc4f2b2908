package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copperpot/copperpot/internal/common"
)

func TestInvoiceStatusMachine(t *testing.T) {
	inv := Invoice{ID: "inv-1", Status: InvoicePending, Total: 50}

	require.NoError(t, inv.MarkPaid())
	assert.Equal(t, InvoicePaid, inv.Status)

	require.NoError(t, inv.RevertToPending())
	assert.Equal(t, InvoicePending, inv.Status)

	// Overdue invoices can still be paid.
	inv.Status = InvoiceOverdue
	require.NoError(t, inv.MarkPaid())

	inv.Status = InvoiceCancelled
	assert.ErrorIs(t, inv.MarkPaid(), common.ErrInvalidStatus)
	assert.ErrorIs(t, inv.RevertToPending(), common.ErrInvalidStatus)

	inv.Status = InvoiceDraft
	assert.ErrorIs(t, inv.MarkPaid(), common.ErrInvalidStatus)
}

func TestInvoiceIsOverdue(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -7)
	future := now.AddDate(0, 0, 7)

	assert.False(t, (&Invoice{Status: InvoicePending}).IsOverdue(now), "no due date")
	assert.True(t, (&Invoice{Status: InvoicePending, DueDate: &past}).IsOverdue(now))
	assert.False(t, (&Invoice{Status: InvoicePending, DueDate: &future}).IsOverdue(now))
	assert.False(t, (&Invoice{Status: InvoicePaid, DueDate: &past}).IsOverdue(now), "paid invoices are never overdue")
}

func TestTransactionStatusMachine(t *testing.T) {
	txn := BankTransaction{ID: "txn-1", ReconciliationStatus: ReconciliationPending}

	require.NoError(t, txn.MarkMatched("inv-1"))
	assert.True(t, txn.IsReconciled())
	require.NotNil(t, txn.ReconciledInvoiceID)
	assert.Equal(t, "inv-1", *txn.ReconciledInvoiceID)

	assert.ErrorIs(t, txn.MarkMatched("inv-2"), common.ErrInvalidStatus)
	assert.ErrorIs(t, txn.Ignore(), common.ErrInvalidStatus)

	require.NoError(t, txn.MarkUnmatched())
	assert.False(t, txn.IsReconciled())
	assert.Nil(t, txn.ReconciledInvoiceID)

	require.NoError(t, txn.Ignore())
	assert.Equal(t, ReconciliationIgnored, txn.ReconciliationStatus)
	assert.ErrorIs(t, txn.MarkMatched("inv-1"), common.ErrInvalidStatus)

	require.NoError(t, txn.Unignore())
	assert.Equal(t, ReconciliationPending, txn.ReconciliationStatus)
}

func TestTransactionMatchText(t *testing.T) {
	name := "Albert Heijn"
	txn := BankTransaction{Description: "POS payment", CounterpartyName: &name}
	assert.Equal(t, "POS payment Albert Heijn", txn.MatchText())

	txn.CounterpartyName = nil
	assert.Equal(t, "POS payment", txn.MatchText())
}

func TestTransactionApplySuggestion(t *testing.T) {
	txn := BankTransaction{ID: "txn-1", ReconciliationStatus: ReconciliationPending}
	txn.ApplySuggestion("groceries", 0.9)

	require.NotNil(t, txn.SuggestedCategory)
	assert.Equal(t, "groceries", *txn.SuggestedCategory)
	require.NotNil(t, txn.ConfidenceScore)
	assert.InDelta(t, 0.9, *txn.ConfidenceScore, 1e-9)
	assert.Equal(t, ReconciliationPending, txn.ReconciliationStatus, "suggestions never touch reconciliation status")
}

func TestNewAutoMatch(t *testing.T) {
	_, err := NewAutoMatch("inv-1", "txn-1", 89.9)
	assert.ErrorIs(t, err, common.ErrScoreBelowThreshold)

	_, err = NewAutoMatch("inv-1", "txn-1", 101)
	require.Error(t, err)

	match, err := NewAutoMatch("inv-1", "txn-1", 90)
	require.NoError(t, err)
	assert.Equal(t, MatchedBySystem, match.MatchedBy)
	assert.Equal(t, MatchConfidenceHigh, match.MatchConfidence)
	assert.NotEmpty(t, match.ID)
}

func TestConfidenceForScore(t *testing.T) {
	assert.Equal(t, MatchConfidenceHigh, ConfidenceForScore(95))
	assert.Equal(t, MatchConfidenceMedium, ConfidenceForScore(75))
	assert.Equal(t, MatchConfidenceLow, ConfidenceForScore(40))
}

func TestFeedbackValidate(t *testing.T) {
	dining := "dining"
	groceries := "groceries"
	conf := 0.9
	bad := 1.5

	valid := FeedbackRecord{Kind: FeedbackConfirmed, SuggestedCategory: &dining, ActualCategory: "dining", Confidence: &conf}
	assert.NoError(t, valid.Validate())

	mismatch := FeedbackRecord{Kind: FeedbackConfirmed, SuggestedCategory: &groceries, ActualCategory: "dining"}
	assert.Error(t, mismatch.Validate())

	sameCorrected := FeedbackRecord{Kind: FeedbackCorrected, SuggestedCategory: &dining, ActualCategory: "dining"}
	assert.Error(t, sameCorrected.Validate())

	rejected := FeedbackRecord{Kind: FeedbackRejected, ActualCategory: "other"}
	assert.NoError(t, rejected.Validate())

	outOfRange := FeedbackRecord{Kind: FeedbackRejected, ActualCategory: "other", Confidence: &bad}
	assert.ErrorIs(t, outOfRange.Validate(), common.ErrConfidenceOutOfRange)
}
