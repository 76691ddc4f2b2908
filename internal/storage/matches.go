package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/copperpot/copperpot/internal/common"
	"github.com/copperpot/copperpot/internal/model"
)

const matchColumns = `id, invoice_id, transaction_id, match_score, match_confidence,
	matched_by, matched_by_user_id, notes, created_at`

// MatchExists reports whether a match already links the pair. This is the
// fast path; the UNIQUE(invoice_id, transaction_id) constraint is the
// authoritative guard against concurrent confirms.
func (s *SQLiteStorage) MatchExists(ctx context.Context, invoiceID, transactionID string) (bool, error) {
	return matchExists(ctx, s.db, invoiceID, transactionID)
}

// CreateMatch persists a new match record.
func (s *SQLiteStorage) CreateMatch(ctx context.Context, match *model.InvoiceMatch) error {
	return createMatch(ctx, s.db, match)
}

// GetMatchByPair retrieves the match linking the pair.
func (s *SQLiteStorage) GetMatchByPair(ctx context.Context, invoiceID, transactionID string) (*model.InvoiceMatch, error) {
	return getMatchByPair(ctx, s.db, invoiceID, transactionID)
}

// DeleteMatch removes a match record for good. Unmatch deletes, it does not
// soft-delete.
func (s *SQLiteStorage) DeleteMatch(ctx context.Context, id string) error {
	return deleteMatch(ctx, s.db, id)
}

// GetMatchesByInvoice lists all matches linked to an invoice.
func (s *SQLiteStorage) GetMatchesByInvoice(ctx context.Context, invoiceID string) ([]model.InvoiceMatch, error) {
	return listMatches(ctx, s.db, "invoice_id", invoiceID)
}

// GetMatchesByTransaction lists all matches linked to a transaction.
func (s *SQLiteStorage) GetMatchesByTransaction(ctx context.Context, transactionID string) ([]model.InvoiceMatch, error) {
	return listMatches(ctx, s.db, "transaction_id", transactionID)
}

func (t *sqliteTransaction) MatchExists(ctx context.Context, invoiceID, transactionID string) (bool, error) {
	return matchExists(ctx, t.tx, invoiceID, transactionID)
}

func (t *sqliteTransaction) CreateMatch(ctx context.Context, match *model.InvoiceMatch) error {
	return createMatch(ctx, t.tx, match)
}

func (t *sqliteTransaction) GetMatchByPair(ctx context.Context, invoiceID, transactionID string) (*model.InvoiceMatch, error) {
	return getMatchByPair(ctx, t.tx, invoiceID, transactionID)
}

func (t *sqliteTransaction) DeleteMatch(ctx context.Context, id string) error {
	return deleteMatch(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetMatchesByInvoice(ctx context.Context, invoiceID string) ([]model.InvoiceMatch, error) {
	return listMatches(ctx, t.tx, "invoice_id", invoiceID)
}

func (t *sqliteTransaction) GetMatchesByTransaction(ctx context.Context, transactionID string) ([]model.InvoiceMatch, error) {
	return listMatches(ctx, t.tx, "transaction_id", transactionID)
}

func matchExists(ctx context.Context, db dbtx, invoiceID, transactionID string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}

	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invoice_matches WHERE invoice_id = ? AND transaction_id = ?`,
		invoiceID, transactionID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check for existing match: %w", err)
	}

	return count > 0, nil
}

func createMatch(ctx context.Context, db dbtx, match *model.InvoiceMatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if match == nil {
		return fmt.Errorf("%w: match", ErrNilParameter)
	}

	query := `
		INSERT INTO invoice_matches (` + matchColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		match.ID, match.InvoiceID, match.TransactionID,
		match.MatchScore, match.MatchConfidence, match.MatchedBy,
		match.MatchedByUserID, match.Notes, match.CreatedAt,
	)
	if err != nil {
		// The unique constraint is the authoritative duplicate guard.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("invoice %s, transaction %s: %w", match.InvoiceID, match.TransactionID, common.ErrDuplicateMatch)
		}
		return fmt.Errorf("failed to create match: %w", err)
	}

	return nil
}

func getMatchByPair(ctx context.Context, db dbtx, invoiceID, transactionID string) (*model.InvoiceMatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + matchColumns + ` FROM invoice_matches WHERE invoice_id = ? AND transaction_id = ?`

	match, err := scanMatch(db.QueryRowContext(ctx, query, invoiceID, transactionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return match, nil
}

func deleteMatch(ctx context.Context, db dbtx, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := db.ExecContext(ctx, `DELETE FROM invoice_matches WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete match: %w", err)
	}

	return requireRowsAffected(result, common.ErrMatchNotFound)
}

func listMatches(ctx context.Context, db dbtx, column, value string) ([]model.InvoiceMatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(value, column); err != nil {
		return nil, err
	}

	query := `SELECT ` + matchColumns + ` FROM invoice_matches WHERE ` + column + ` = ? ORDER BY created_at ASC, id ASC`

	rows, err := db.QueryContext(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []model.InvoiceMatch
	for rows.Next() {
		match, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match: %w", scanErr)
		}
		matches = append(matches, *match)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}

	return matches, nil
}

func scanMatch(row rowScanner) (*model.InvoiceMatch, error) {
	var match model.InvoiceMatch
	err := row.Scan(
		&match.ID, &match.InvoiceID, &match.TransactionID,
		&match.MatchScore, &match.MatchConfidence, &match.MatchedBy,
		&match.MatchedByUserID, &match.Notes, &match.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &match, nil
}
