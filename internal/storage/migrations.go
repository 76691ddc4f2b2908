package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS pattern_rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					pattern TEXT NOT NULL,
					kind TEXT NOT NULL,
					category TEXT NOT NULL,
					confidence REAL NOT NULL DEFAULT 0,
					priority INTEGER NOT NULL DEFAULT 0,
					is_active INTEGER NOT NULL DEFAULT 1,
					source TEXT NOT NULL DEFAULT 'user',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_pattern_rules_user ON pattern_rules(user_id, is_active)`,

				`CREATE TABLE IF NOT EXISTS feedback (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					transaction_id TEXT NOT NULL,
					suggested_category TEXT,
					actual_category TEXT NOT NULL,
					confidence REAL,
					kind TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_feedback_user_created ON feedback(user_id, created_at)`,

				`CREATE TABLE IF NOT EXISTS invoices (
					id TEXT PRIMARY KEY,
					status TEXT NOT NULL DEFAULT 'draft',
					total REAL NOT NULL DEFAULT 0,
					vendor_id TEXT,
					due_date DATETIME
				)`,

				`CREATE TABLE IF NOT EXISTS bank_transactions (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					amount REAL NOT NULL,
					description TEXT NOT NULL,
					counterparty_name TEXT,
					counterparty_iban TEXT,
					execution_date DATETIME NOT NULL,
					reconciliation_status TEXT NOT NULL DEFAULT 'pending',
					reconciled_invoice_id TEXT,
					suggested_category TEXT,
					confidence_score REAL
				)`,
				`CREATE INDEX idx_bank_transactions_user ON bank_transactions(user_id, reconciliation_status)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute %q: %w", query[:40], err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Invoice matches with pair uniqueness",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS invoice_matches (
					id TEXT PRIMARY KEY,
					invoice_id TEXT NOT NULL,
					transaction_id TEXT NOT NULL,
					match_score REAL NOT NULL,
					match_confidence TEXT NOT NULL,
					matched_by TEXT NOT NULL,
					matched_by_user_id TEXT,
					notes TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(invoice_id, transaction_id)
				)`,
				`CREATE INDEX idx_invoice_matches_invoice ON invoice_matches(invoice_id)`,
				`CREATE INDEX idx_invoice_matches_transaction ON invoice_matches(transaction_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute %q: %w", query[:40], err)
				}
			}
			return nil
		},
	},
}

// Migrate brings the database up to the expected schema version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
