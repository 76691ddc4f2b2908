package reconcile

import (
	"context"
	"log/slog"
)

// saga tracks the persisted steps of a multi-entity mutation together with
// their compensating actions. When a later step fails, rollback undoes the
// committed steps in reverse order; compensation failures are logged but
// never mask the original error.
type saga struct {
	steps []sagaStep
}

type sagaStep struct {
	compensate func(ctx context.Context) error
	name       string
}

// committed records a step that has been persisted and must be undone if a
// later step fails.
func (s *saga) committed(name string, compensate func(ctx context.Context) error) {
	s.steps = append(s.steps, sagaStep{name: name, compensate: compensate})
}

// rollback walks the committed steps in reverse, invoking each compensation.
func (s *saga) rollback(ctx context.Context) {
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.compensate(ctx); err != nil {
			slog.Error("Compensation failed during rollback",
				"step", step.name,
				"error", err)
		}
	}
}
