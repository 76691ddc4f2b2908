package reconcile

import (
	"context"
	"fmt"
)

// BatchResult tallies a best-effort batch operation. A failure on one pair
// never blocks the rest of the batch.
type BatchResult struct {
	Errors    []BatchError
	Succeeded int
	Failed    int
}

// BatchError records a single pair's failure within a batch.
type BatchError struct {
	Err           error
	InvoiceID     string
	TransactionID string
}

// AutoMatchRequest is one candidate pair for batch auto-confirmation.
type AutoMatchRequest struct {
	InvoiceID     string
	TransactionID string
	MatchScore    float64
}

// UnmatchAllForInvoice removes every match linked to the invoice.
func (e *Engine) UnmatchAllForInvoice(ctx context.Context, invoiceID string) (BatchResult, error) {
	matches, err := e.matches.GetMatchesByInvoice(ctx, invoiceID)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to list matches for invoice %s: %w", invoiceID, err)
	}

	var result BatchResult
	for _, match := range matches {
		if err := e.Unmatch(ctx, match.InvoiceID, match.TransactionID); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, BatchError{
				InvoiceID:     match.InvoiceID,
				TransactionID: match.TransactionID,
				Err:           err,
			})
			continue
		}
		result.Succeeded++
	}

	return result, nil
}

// UnmatchAllForTransaction removes every match linked to the transaction.
func (e *Engine) UnmatchAllForTransaction(ctx context.Context, transactionID string) (BatchResult, error) {
	matches, err := e.matches.GetMatchesByTransaction(ctx, transactionID)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to list matches for transaction %s: %w", transactionID, err)
	}

	var result BatchResult
	for _, match := range matches {
		if err := e.Unmatch(ctx, match.InvoiceID, match.TransactionID); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, BatchError{
				InvoiceID:     match.InvoiceID,
				TransactionID: match.TransactionID,
				Err:           err,
			})
			continue
		}
		result.Succeeded++
	}

	return result, nil
}

// ConfirmAutoMatchBatch confirms a set of system-scored pairs, continuing
// past individual failures and returning a final tally.
func (e *Engine) ConfirmAutoMatchBatch(ctx context.Context, requests []AutoMatchRequest) BatchResult {
	var result BatchResult
	for _, req := range requests {
		if _, err := e.ConfirmAutoMatch(ctx, req.InvoiceID, req.TransactionID, req.MatchScore); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, BatchError{
				InvoiceID:     req.InvoiceID,
				TransactionID: req.TransactionID,
				Err:           err,
			})
			continue
		}
		result.Succeeded++
	}
	return result
}
