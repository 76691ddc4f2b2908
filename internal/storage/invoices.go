package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/copperpot/copperpot/internal/common"
	"github.com/copperpot/copperpot/internal/model"
)

// GetInvoice retrieves an invoice by ID.
func (s *SQLiteStorage) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	return getInvoice(ctx, s.db, id)
}

// UpdateInvoice persists the invoice's current state.
func (s *SQLiteStorage) UpdateInvoice(ctx context.Context, invoice *model.Invoice) error {
	return updateInvoice(ctx, s.db, invoice)
}

// CreateInvoice inserts an invoice. The invoice subsystem itself lives
// elsewhere; this exists so the CLI and tests can seed data.
func (s *SQLiteStorage) CreateInvoice(ctx context.Context, invoice *model.Invoice) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if invoice == nil {
		return fmt.Errorf("%w: invoice", ErrNilParameter)
	}
	if err := validateString(invoice.ID, "invoice.ID"); err != nil {
		return err
	}

	query := `INSERT INTO invoices (id, status, total, vendor_id, due_date) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, invoice.ID, invoice.Status, invoice.Total, invoice.VendorID, invoice.DueDate)
	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func (t *sqliteTransaction) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	return getInvoice(ctx, t.tx, id)
}

func (t *sqliteTransaction) UpdateInvoice(ctx context.Context, invoice *model.Invoice) error {
	return updateInvoice(ctx, t.tx, invoice)
}

func getInvoice(ctx context.Context, db dbtx, id string) (*model.Invoice, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	query := `SELECT id, status, total, vendor_id, due_date FROM invoices WHERE id = ?`

	var invoice model.Invoice
	err := db.QueryRowContext(ctx, query, id).Scan(
		&invoice.ID, &invoice.Status, &invoice.Total, &invoice.VendorID, &invoice.DueDate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	return &invoice, nil
}

func updateInvoice(ctx context.Context, db dbtx, invoice *model.Invoice) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if invoice == nil {
		return fmt.Errorf("%w: invoice", ErrNilParameter)
	}

	query := `UPDATE invoices SET status = ?, total = ?, vendor_id = ?, due_date = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, invoice.Status, invoice.Total, invoice.VendorID, invoice.DueDate, invoice.ID)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}

	return requireRowsAffected(result, common.ErrInvoiceNotFound)
}
