package model

import (
	"fmt"
	"time"

	"github.com/copperpot/copperpot/internal/common"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

// Invoice status constants.
const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoicePending   InvoiceStatus = "pending"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// Invoice is the subset of an invoice the reconciliation core needs. The
// invoice subsystem owns the record; this core reads status and total and
// drives the pending ↔ paid transitions.
type Invoice struct {
	DueDate  *time.Time    `json:"due_date,omitempty"`
	VendorID *string       `json:"vendor_id,omitempty"`
	ID       string        `json:"id"`
	Status   InvoiceStatus `json:"status"`
	Total    float64       `json:"total"`
}

// MarkPaid transitions pending (or overdue) → paid on a confirmed match.
func (inv *Invoice) MarkPaid() error {
	switch inv.Status {
	case InvoicePending, InvoiceOverdue:
		inv.Status = InvoicePaid
		return nil
	default:
		return fmt.Errorf("%w: cannot mark invoice %q paid from status %q", common.ErrInvalidStatus, inv.ID, inv.Status)
	}
}

// RevertToPending transitions paid → pending when a match is removed.
func (inv *Invoice) RevertToPending() error {
	if inv.Status != InvoicePaid {
		return fmt.Errorf("%w: cannot revert invoice %q from status %q", common.ErrInvalidStatus, inv.ID, inv.Status)
	}
	inv.Status = InvoicePending
	return nil
}

// IsOverdue reports whether an unpaid invoice is past its due date.
func (inv *Invoice) IsOverdue(now time.Time) bool {
	if inv.DueDate == nil {
		return false
	}
	switch inv.Status {
	case InvoicePending, InvoiceOverdue:
		return now.After(*inv.DueDate)
	default:
		return false
	}
}
