package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/copperpot/copperpot/internal/common"
)

// ReconciliationStatus tracks whether a bank transaction has been linked to
// an invoice.
type ReconciliationStatus string

// Reconciliation status constants.
const (
	ReconciliationPending ReconciliationStatus = "pending"
	ReconciliationMatched ReconciliationStatus = "matched"
	ReconciliationIgnored ReconciliationStatus = "ignored"
)

// BankTransaction is a bank transaction as seen by the categorization and
// reconciliation core. The bank-sync subsystem owns the record; this core
// reads the matching fields and mutates only the reconciliation and
// suggestion fields.
type BankTransaction struct {
	ExecutionDate        time.Time            `json:"execution_date"`
	CounterpartyName     *string              `json:"counterparty_name,omitempty"`
	CounterpartyIBAN     *string              `json:"counterparty_iban,omitempty"`
	ReconciledInvoiceID  *string              `json:"reconciled_invoice_id,omitempty"`
	SuggestedCategory    *string              `json:"suggested_category,omitempty"`
	ConfidenceScore      *float64             `json:"confidence_score,omitempty"`
	ID                   string               `json:"id"`
	UserID               string               `json:"user_id"`
	Description          string               `json:"description"`
	ReconciliationStatus ReconciliationStatus `json:"reconciliation_status"`
	Amount               float64              `json:"amount"`
}

// MatchText builds the text the rule matcher evaluates: the description and
// counterparty name joined with a space.
func (t *BankTransaction) MatchText() string {
	if t.CounterpartyName == nil || *t.CounterpartyName == "" {
		return t.Description
	}
	return strings.TrimSpace(t.Description + " " + *t.CounterpartyName)
}

// IsReconciled reports whether the transaction is linked to an invoice.
func (t *BankTransaction) IsReconciled() bool {
	return t.ReconciliationStatus == ReconciliationMatched
}

// MarkMatched transitions pending → matched, recording the invoice link.
func (t *BankTransaction) MarkMatched(invoiceID string) error {
	if t.ReconciliationStatus != ReconciliationPending {
		return fmt.Errorf("%w: cannot match transaction in status %q", common.ErrInvalidStatus, t.ReconciliationStatus)
	}
	t.ReconciliationStatus = ReconciliationMatched
	t.ReconciledInvoiceID = &invoiceID
	return nil
}

// MarkUnmatched transitions matched → pending and clears the invoice link.
func (t *BankTransaction) MarkUnmatched() error {
	if t.ReconciliationStatus != ReconciliationMatched {
		return fmt.Errorf("%w: cannot unmatch transaction in status %q", common.ErrInvalidStatus, t.ReconciliationStatus)
	}
	t.ReconciliationStatus = ReconciliationPending
	t.ReconciledInvoiceID = nil
	return nil
}

// Ignore transitions pending → ignored. Ignoring is independent of matching.
func (t *BankTransaction) Ignore() error {
	if t.ReconciliationStatus != ReconciliationPending {
		return fmt.Errorf("%w: cannot ignore transaction in status %q", common.ErrInvalidStatus, t.ReconciliationStatus)
	}
	t.ReconciliationStatus = ReconciliationIgnored
	return nil
}

// Unignore transitions ignored → pending.
func (t *BankTransaction) Unignore() error {
	if t.ReconciliationStatus != ReconciliationIgnored {
		return fmt.Errorf("%w: cannot unignore transaction in status %q", common.ErrInvalidStatus, t.ReconciliationStatus)
	}
	t.ReconciliationStatus = ReconciliationPending
	return nil
}

// ApplySuggestion records a category suggestion on the transaction. Only the
// suggestion fields change; reconciliation status is owned by the matching
// engine.
func (t *BankTransaction) ApplySuggestion(category string, confidence float64) {
	t.SuggestedCategory = &category
	t.ConfidenceScore = &confidence
}
