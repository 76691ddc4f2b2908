package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/copperpot/copperpot/internal/common"
	"github.com/copperpot/copperpot/internal/model"
)

const ruleColumns = `id, user_id, pattern, kind, category, confidence, priority, is_active, source, created_at, updated_at`

// CreateRule creates a new pattern rule.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.PatternRule) error {
	return createRule(ctx, s.db, rule)
}

// GetRule retrieves a pattern rule by ID.
func (s *SQLiteStorage) GetRule(ctx context.Context, id int) (*model.PatternRule, error) {
	return getRule(ctx, s.db, id)
}

// GetActiveRulesForUser retrieves the user's active rules. No sort order is
// promised; the categorization orchestrator sorts by priority itself.
func (s *SQLiteStorage) GetActiveRulesForUser(ctx context.Context, userID string) ([]model.PatternRule, error) {
	return getActiveRulesForUser(ctx, s.db, userID)
}

// UpdateRule updates an existing pattern rule.
func (s *SQLiteStorage) UpdateRule(ctx context.Context, rule *model.PatternRule) error {
	return updateRule(ctx, s.db, rule)
}

// SetRuleActive flips a rule's active flag. Deactivation is preferred over
// deletion; rules are never deleted implicitly.
func (s *SQLiteStorage) SetRuleActive(ctx context.Context, id int, active bool) error {
	return setRuleActive(ctx, s.db, id, active)
}

func (t *sqliteTransaction) CreateRule(ctx context.Context, rule *model.PatternRule) error {
	return createRule(ctx, t.tx, rule)
}

func (t *sqliteTransaction) GetRule(ctx context.Context, id int) (*model.PatternRule, error) {
	return getRule(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetActiveRulesForUser(ctx context.Context, userID string) ([]model.PatternRule, error) {
	return getActiveRulesForUser(ctx, t.tx, userID)
}

func (t *sqliteTransaction) UpdateRule(ctx context.Context, rule *model.PatternRule) error {
	return updateRule(ctx, t.tx, rule)
}

func (t *sqliteTransaction) SetRuleActive(ctx context.Context, id int, active bool) error {
	return setRuleActive(ctx, t.tx, id, active)
}

func createRule(ctx context.Context, db dbtx, rule *model.PatternRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO pattern_rules (user_id, pattern, kind, category, confidence, priority, is_active, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := db.ExecContext(ctx, query,
		rule.UserID, rule.Pattern, rule.Kind, rule.Category,
		rule.Confidence, rule.Priority, rule.IsActive, rule.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to create pattern rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get pattern rule ID: %w", err)
	}

	rule.ID = int(id)
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = time.Now()

	return nil
}

func getRule(ctx context.Context, db dbtx, id int) (*model.PatternRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + ruleColumns + ` FROM pattern_rules WHERE id = ?`

	rule, err := scanRule(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to get pattern rule: %w", err)
	}
	return rule, nil
}

func getActiveRulesForUser(ctx context.Context, db dbtx, userID string) ([]model.PatternRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	query := `SELECT ` + ruleColumns + ` FROM pattern_rules WHERE user_id = ? AND is_active = 1 ORDER BY id ASC`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.PatternRule
	for rows.Next() {
		rule, scanErr := scanRule(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan pattern rule: %w", scanErr)
		}
		rules = append(rules, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pattern rules: %w", err)
	}

	return rules, nil
}

func updateRule(ctx context.Context, db dbtx, rule *model.PatternRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE pattern_rules
		SET pattern = ?, kind = ?, category = ?, confidence = ?, priority = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := db.ExecContext(ctx, query,
		rule.Pattern, rule.Kind, rule.Category, rule.Confidence, rule.Priority, rule.IsActive,
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update pattern rule: %w", err)
	}

	return requireRowsAffected(result, common.ErrRuleNotFound)
}

func setRuleActive(ctx context.Context, db dbtx, id int, active bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	query := `UPDATE pattern_rules SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	result, err := db.ExecContext(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("failed to set pattern rule active flag: %w", err)
	}

	return requireRowsAffected(result, common.ErrRuleNotFound)
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*model.PatternRule, error) {
	var rule model.PatternRule
	err := row.Scan(
		&rule.ID, &rule.UserID, &rule.Pattern, &rule.Kind, &rule.Category,
		&rule.Confidence, &rule.Priority, &rule.IsActive, &rule.Source,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// requireRowsAffected converts a zero-row update into notFound.
func requireRowsAffected(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}
