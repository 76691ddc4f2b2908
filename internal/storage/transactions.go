package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/copperpot/copperpot/internal/common"
	"github.com/copperpot/copperpot/internal/model"
)

const txnColumns = `id, user_id, amount, description, counterparty_name, counterparty_iban,
	execution_date, reconciliation_status, reconciled_invoice_id, suggested_category, confidence_score`

// GetTransaction retrieves a bank transaction by ID.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, id string) (*model.BankTransaction, error) {
	return getTransaction(ctx, s.db, id)
}

// SaveTransaction upserts a bank transaction.
func (s *SQLiteStorage) SaveTransaction(ctx context.Context, txn *model.BankTransaction) error {
	return saveTransaction(ctx, s.db, txn)
}

// SaveTransactions upserts a batch of imported transactions. Re-importing a
// statement is a no-op for rows that already exist.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, txns []model.BankTransaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(txns) == 0 {
		return fmt.Errorf("%w: txns", ErrEmptySlice)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	query := `
		INSERT OR IGNORE INTO bank_transactions (` + txnColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i := range txns {
		txn := &txns[i]
		if txn.ReconciliationStatus == "" {
			txn.ReconciliationStatus = model.ReconciliationPending
		}
		_, err := tx.ExecContext(ctx, query,
			txn.ID, txn.UserID, txn.Amount, txn.Description,
			txn.CounterpartyName, txn.CounterpartyIBAN, txn.ExecutionDate,
			txn.ReconciliationStatus, txn.ReconciledInvoiceID,
			txn.SuggestedCategory, txn.ConfidenceScore,
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to save transaction %s: %w", txn.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transactions: %w", err)
	}
	return nil
}

// GetPendingTransactions returns the user's unreconciled transactions,
// oldest first.
func (s *SQLiteStorage) GetPendingTransactions(ctx context.Context, userID string) ([]model.BankTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	query := `SELECT ` + txnColumns + ` FROM bank_transactions
		WHERE user_id = ? AND reconciliation_status = ?
		ORDER BY execution_date ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, userID, model.ReconciliationPending)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.BankTransaction
	for rows.Next() {
		txn, scanErr := scanTransaction(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", scanErr)
		}
		txns = append(txns, *txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txns, nil
}

func (t *sqliteTransaction) GetTransaction(ctx context.Context, id string) (*model.BankTransaction, error) {
	return getTransaction(ctx, t.tx, id)
}

func (t *sqliteTransaction) SaveTransaction(ctx context.Context, txn *model.BankTransaction) error {
	return saveTransaction(ctx, t.tx, txn)
}

func getTransaction(ctx context.Context, db dbtx, id string) (*model.BankTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	query := `SELECT ` + txnColumns + ` FROM bank_transactions WHERE id = ?`

	txn, err := scanTransaction(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrTxnNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

func saveTransaction(ctx context.Context, db dbtx, txn *model.BankTransaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if txn == nil {
		return fmt.Errorf("%w: txn", ErrNilParameter)
	}
	if err := validateString(txn.ID, "txn.ID"); err != nil {
		return err
	}

	query := `
		INSERT INTO bank_transactions (` + txnColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			description = excluded.description,
			counterparty_name = excluded.counterparty_name,
			counterparty_iban = excluded.counterparty_iban,
			execution_date = excluded.execution_date,
			reconciliation_status = excluded.reconciliation_status,
			reconciled_invoice_id = excluded.reconciled_invoice_id,
			suggested_category = excluded.suggested_category,
			confidence_score = excluded.confidence_score
	`
	_, err := db.ExecContext(ctx, query,
		txn.ID, txn.UserID, txn.Amount, txn.Description,
		txn.CounterpartyName, txn.CounterpartyIBAN, txn.ExecutionDate,
		txn.ReconciliationStatus, txn.ReconciledInvoiceID,
		txn.SuggestedCategory, txn.ConfidenceScore,
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}

	return nil
}

func scanTransaction(row rowScanner) (*model.BankTransaction, error) {
	var txn model.BankTransaction
	err := row.Scan(
		&txn.ID, &txn.UserID, &txn.Amount, &txn.Description,
		&txn.CounterpartyName, &txn.CounterpartyIBAN, &txn.ExecutionDate,
		&txn.ReconciliationStatus, &txn.ReconciledInvoiceID,
		&txn.SuggestedCategory, &txn.ConfidenceScore,
	)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}
