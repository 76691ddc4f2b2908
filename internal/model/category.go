// Package model defines the core domain models used throughout the application.
package model

import "time"

// FallbackCategory is the category assigned when neither rules nor the
// feedback heuristic produce a usable suggestion.
const FallbackCategory = "other"

// Category represents a valid spending category.
type Category struct {
	CreatedAt   time.Time
	Name        string
	Description string
	ID          int
	IsActive    bool
}
