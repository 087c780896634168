// Package saga executes an ordered list of forward steps, each optionally
// paired with a compensating step. There is no two-phase commit between the
// local store and the remote catalog; when a forward step fails, the
// compensations of every completed step run in reverse order to steer both
// systems back toward agreement.
package saga

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Step is one forward action with an optional compensation.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
	// Compensate undoes a completed Run when a later step fails. Nil for
	// steps that need no undo.
	Compensate func(ctx context.Context) error
}

// ExecutionError reports which step failed and whether compensation restored
// the prior state. A non-nil CompensationError means the systems may have been
// left divergent and manual reconciliation is required.
type ExecutionError struct {
	Step              string
	Cause             error
	Compensated       bool
	CompensationError error
}

func (e *ExecutionError) Error() string {
	if e.CompensationError != nil {
		return fmt.Sprintf("saga step %q failed: %v (compensation also failed: %v)", e.Step, e.Cause, e.CompensationError)
	}
	return fmt.Sprintf("saga step %q failed: %v", e.Step, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// Saga runs steps sequentially within a single request.
type Saga struct {
	name  string
	steps []Step
	log   *zap.Logger
}

// New builds a saga. The name identifies the logical operation in logs.
func New(name string, log *zap.Logger, steps ...Step) *Saga {
	if log == nil {
		log = zap.NewNop()
	}
	return &Saga{name: name, steps: steps, log: log}
}

// Execute runs every step in order. On the first failure it runs the
// compensations of all previously completed steps in reverse order and returns
// an ExecutionError describing the outcome. Compensation failures are
// aggregated rather than aborting the remaining compensations.
func (s *Saga) Execute(ctx context.Context) error {
	for i, step := range s.steps {
		err := step.Run(ctx)
		if err == nil {
			continue
		}

		s.log.Warn("saga step failed, compensating",
			zap.String("saga", s.name),
			zap.String("step", step.Name),
			zap.Error(err),
		)

		compErr := s.compensate(ctx, i-1)
		return &ExecutionError{
			Step:              step.Name,
			Cause:             err,
			Compensated:       compErr == nil,
			CompensationError: compErr,
		}
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, from int) error {
	var combined error
	for i := from; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			s.log.Error("saga compensation failed",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(err),
			)
			combined = multierr.Append(combined, fmt.Errorf("compensate %q: %w", step.Name, err))
		}
	}
	return combined
}
