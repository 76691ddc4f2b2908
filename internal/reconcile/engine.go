// Package reconcile implements the invoice–transaction matching engine: it
// creates, confirms, and removes links between invoices and bank
// transactions, driving both entities' status state machines.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/copperpot/copperpot/internal/bus"
	"github.com/copperpot/copperpot/internal/common"
	"github.com/copperpot/copperpot/internal/model"
	"github.com/copperpot/copperpot/internal/service"
)

// Engine orchestrates match and unmatch operations. It assumes the match
// store enforces a unique constraint on (invoice_id, transaction_id); the
// in-core existence check is a fast path, not the sole guard.
type Engine struct {
	invoices  service.InvoiceStore
	txns      service.TransactionStore
	matches   service.MatchStore
	publisher bus.Publisher
}

// NewEngine creates a matching engine. The publisher may be nil when no
// notification sink is configured.
func NewEngine(invoices service.InvoiceStore, txns service.TransactionStore, matches service.MatchStore, publisher bus.Publisher) *Engine {
	return &Engine{
		invoices:  invoices,
		txns:      txns,
		matches:   matches,
		publisher: publisher,
	}
}

// ConfirmManualMatch links an invoice to a transaction on a user's say-so.
func (e *Engine) ConfirmManualMatch(ctx context.Context, invoiceID, transactionID string, notes, userID *string) (*model.InvoiceMatch, error) {
	match := model.NewManualMatch(invoiceID, transactionID, notes, userID)
	return e.confirm(ctx, match)
}

// ConfirmAutoMatch links an invoice to a transaction on the system's behalf.
// Scores below AutoMatchMinScore are rejected before any lookup.
func (e *Engine) ConfirmAutoMatch(ctx context.Context, invoiceID, transactionID string, matchScore float64) (*model.InvoiceMatch, error) {
	match, err := model.NewAutoMatch(invoiceID, transactionID, matchScore)
	if err != nil {
		return nil, err
	}
	return e.confirm(ctx, match)
}

// confirm runs the shared confirmation sequence: validate both entities and
// their status transitions, enforce uniqueness, then persist the match and
// both transitions. Every business-rule check fires before the first write;
// only the persistence steps after it are best-effort sequential, since an
// atomic multi-entity commit is the persistence layer's concern.
func (e *Engine) confirm(ctx context.Context, match *model.InvoiceMatch) (*model.InvoiceMatch, error) {
	invoice, err := e.invoices.GetInvoice(ctx, match.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice %s: %w", match.InvoiceID, err)
	}
	if invoice.Status == model.InvoiceCancelled {
		return nil, fmt.Errorf("invoice %s: %w", invoice.ID, common.ErrInvoiceCancelled)
	}

	txn, err := e.txns.GetTransaction(ctx, match.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction %s: %w", match.TransactionID, err)
	}
	if txn.IsReconciled() {
		return nil, fmt.Errorf("transaction %s: %w", txn.ID, common.ErrTxnAlreadyReconciled)
	}

	exists, err := e.matches.MatchExists(ctx, match.InvoiceID, match.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing match: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("invoice %s, transaction %s: %w", match.InvoiceID, match.TransactionID, common.ErrDuplicateMatch)
	}

	// Both transitions run on the loaded copies first, so an invoice that
	// cannot become paid or a transaction that is not pending rejects the
	// confirmation with nothing written.
	if err := invoice.MarkPaid(); err != nil {
		return nil, err
	}
	if err := txn.MarkMatched(invoice.ID); err != nil {
		return nil, err
	}

	if err := e.matches.CreateMatch(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to persist match: %w", err)
	}
	if err := e.invoices.UpdateInvoice(ctx, invoice); err != nil {
		return nil, fmt.Errorf("failed to mark invoice %s paid: %w", invoice.ID, err)
	}
	if err := e.txns.SaveTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to mark transaction %s matched: %w", txn.ID, err)
	}

	e.publish(ctx, bus.TopicMatchCreated, bus.MatchEvent{
		OccurredAt:    time.Now(),
		MatchID:       match.ID,
		InvoiceID:     match.InvoiceID,
		TransactionID: match.TransactionID,
		MatchedBy:     string(match.MatchedBy),
		MatchScore:    match.MatchScore,
	})

	return match, nil
}

// Unmatch removes the link between an invoice and a transaction, reverting
// both status machines. Each later step's failure undoes exactly the
// transitions already committed, in reverse order, before propagating the
// original error.
func (e *Engine) Unmatch(ctx context.Context, invoiceID, transactionID string) error {
	match, err := e.matches.GetMatchByPair(ctx, invoiceID, transactionID)
	if err != nil {
		return fmt.Errorf("failed to locate match for invoice %s, transaction %s: %w", invoiceID, transactionID, err)
	}

	invoice, err := e.invoices.GetInvoice(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("failed to load invoice %s: %w", invoiceID, err)
	}
	txn, err := e.txns.GetTransaction(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("failed to load transaction %s: %w", transactionID, err)
	}

	var rollback saga

	if err := invoice.RevertToPending(); err != nil {
		return err
	}
	if err := e.invoices.UpdateInvoice(ctx, invoice); err != nil {
		return fmt.Errorf("failed to revert invoice %s: %w", invoiceID, err)
	}
	rollback.committed("revert invoice to pending", func(ctx context.Context) error {
		invoice.Status = model.InvoicePaid
		return e.invoices.UpdateInvoice(ctx, invoice)
	})

	if err := txn.MarkUnmatched(); err != nil {
		rollback.rollback(ctx)
		return err
	}
	if err := e.txns.SaveTransaction(ctx, txn); err != nil {
		rollback.rollback(ctx)
		return fmt.Errorf("failed to revert transaction %s: %w", transactionID, err)
	}
	rollback.committed("revert transaction to pending", func(ctx context.Context) error {
		txn.ReconciliationStatus = model.ReconciliationMatched
		txn.ReconciledInvoiceID = &invoiceID
		return e.txns.SaveTransaction(ctx, txn)
	})

	if err := e.matches.DeleteMatch(ctx, match.ID); err != nil {
		rollback.rollback(ctx)
		return fmt.Errorf("failed to delete match %s: %w", match.ID, err)
	}

	e.publish(ctx, bus.TopicMatchRemoved, bus.MatchEvent{
		OccurredAt:    time.Now(),
		MatchID:       match.ID,
		InvoiceID:     invoiceID,
		TransactionID: transactionID,
		MatchedBy:     string(match.MatchedBy),
		MatchScore:    match.MatchScore,
	})

	return nil
}

// publish sends a notification on a best-effort basis. Failures are logged
// and never surfaced to the triggering operation.
func (e *Engine) publish(ctx context.Context, topic string, event bus.MatchEvent) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, topic, event); err != nil {
		slog.Warn("Failed to publish notification",
			"topic", topic,
			"match_id", event.MatchID,
			"error", err)
	}
}
