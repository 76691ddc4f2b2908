// Package service defines the interfaces for all application services.
package service

import (
	"context"

	"github.com/copperpot/copperpot/internal/model"
)

// RuleStore provides read and write access to pattern rules.
type RuleStore interface {
	// GetActiveRulesForUser returns the user's active rules in no particular
	// order; the orchestrator sorts by priority itself.
	GetActiveRulesForUser(ctx context.Context, userID string) ([]model.PatternRule, error)
	CreateRule(ctx context.Context, rule *model.PatternRule) error
	GetRule(ctx context.Context, id int) (*model.PatternRule, error)
	UpdateRule(ctx context.Context, rule *model.PatternRule) error
	SetRuleActive(ctx context.Context, id int, active bool) error
}

// FeedbackStore persists the append-only feedback log.
type FeedbackStore interface {
	// GetRecentFeedback returns up to limit of the user's most recent
	// records, newest first.
	GetRecentFeedback(ctx context.Context, userID string, limit int) ([]model.FeedbackRecord, error)
	SaveFeedback(ctx context.Context, record *model.FeedbackRecord) error
}

// InvoiceStore provides the invoice subset the reconciliation engine needs.
type InvoiceStore interface {
	GetInvoice(ctx context.Context, id string) (*model.Invoice, error)
	UpdateInvoice(ctx context.Context, invoice *model.Invoice) error
}

// TransactionStore provides the bank-transaction subset this core reads and
// mutates.
type TransactionStore interface {
	GetTransaction(ctx context.Context, id string) (*model.BankTransaction, error)
	SaveTransaction(ctx context.Context, txn *model.BankTransaction) error
}

// MatchStore persists invoice–transaction match records. The backing store
// must enforce a unique constraint on (invoice_id, transaction_id); the
// engine's existence check is only a fast path.
type MatchStore interface {
	MatchExists(ctx context.Context, invoiceID, transactionID string) (bool, error)
	CreateMatch(ctx context.Context, match *model.InvoiceMatch) error
	GetMatchByPair(ctx context.Context, invoiceID, transactionID string) (*model.InvoiceMatch, error)
	DeleteMatch(ctx context.Context, id string) error
	GetMatchesByInvoice(ctx context.Context, invoiceID string) ([]model.InvoiceMatch, error)
	GetMatchesByTransaction(ctx context.Context, transactionID string) ([]model.InvoiceMatch, error)
}

// Storage is the aggregate persistence contract the CLI wires up.
type Storage interface {
	RuleStore
	FeedbackStore
	InvoiceStore
	TransactionStore
	MatchStore

	// Transaction import and listing (OFX import path).
	SaveTransactions(ctx context.Context, txns []model.BankTransaction) error
	GetPendingTransactions(ctx context.Context, userID string) ([]model.BankTransaction, error)

	// Database management.
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	RuleStore
	FeedbackStore
	InvoiceStore
	TransactionStore
	MatchStore
}
