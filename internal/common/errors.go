// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors, grouped by kind. Every public operation returns
// one of these (possibly wrapped) rather than panicking; callers distinguish
// kinds with errors.Is.
var (
	// Not-found errors.
	ErrNotFound        = errors.New("not found")
	ErrInvoiceNotFound = fmt.Errorf("invoice %w", ErrNotFound)
	ErrTxnNotFound     = fmt.Errorf("transaction %w", ErrNotFound)
	ErrMatchNotFound   = fmt.Errorf("match %w", ErrNotFound)
	ErrRuleNotFound    = fmt.Errorf("pattern rule %w", ErrNotFound)

	// Business-rule errors. Detected after lookups, before any mutation.
	ErrDuplicateMatch       = errors.New("invoice and transaction are already matched")
	ErrInvoiceCancelled     = errors.New("cannot match a cancelled invoice")
	ErrTxnAlreadyReconciled = errors.New("transaction is already reconciled")
	ErrScoreBelowThreshold  = errors.New("auto-match score below threshold")
	ErrInsufficientFeedback = errors.New("insufficient feedback history")

	// Validation errors. Detected before any lookup or mutation.
	ErrConfidenceOutOfRange = errors.New("confidence must be between 0 and 1")
	ErrEmptyPattern         = errors.New("pattern cannot be empty")
	ErrInvalidRegex         = errors.New("regex pattern does not compile")
	ErrInvalidIBAN          = errors.New("pattern is not a structurally valid IBAN")
	ErrInvalidPatternKind   = errors.New("invalid pattern kind")
	ErrInvalidStatus        = errors.New("invalid status transition")

	// Configuration errors.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsBusinessRule reports whether the error is a business-rule violation
// (terminal for the operation, never retried).
func IsBusinessRule(err error) bool {
	return errors.Is(err, ErrDuplicateMatch) ||
		errors.Is(err, ErrInvoiceCancelled) ||
		errors.Is(err, ErrTxnAlreadyReconciled) ||
		errors.Is(err, ErrScoreBelowThreshold) ||
		errors.Is(err, ErrInsufficientFeedback)
}

// IsValidation reports whether the error is an input-validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrConfidenceOutOfRange) ||
		errors.Is(err, ErrEmptyPattern) ||
		errors.Is(err, ErrInvalidRegex) ||
		errors.Is(err, ErrInvalidIBAN) ||
		errors.Is(err, ErrInvalidPatternKind) ||
		errors.Is(err, ErrInvalidStatus)
}
