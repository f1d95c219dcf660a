package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Step is one unit of a saga. Compensate undoes Action and may be nil.
type Step struct {
	Name       string
	Action     func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// StepError reports which step of a saga failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("step %s: %v", e.Step, e.Err) }

func (e *StepError) Unwrap() error { return e.Err }

// Saga runs steps in order and unwinds completed steps when one fails.
type Saga struct {
	name   string
	steps  []Step
	logger *zap.Logger
}

// NewSaga builds a saga from its ordered steps.
func NewSaga(name string, logger *zap.Logger, steps ...Step) *Saga {
	return &Saga{name: name, steps: steps, logger: logger}
}

// Run executes every step. On failure the compensations of the completed steps
// run newest first; their own failures are logged and never retried. The
// returned error is always the failing step's.
func (s *Saga) Run(ctx context.Context) error {
	for i, step := range s.steps {
		if err := step.Action(ctx); err != nil {
			s.compensate(ctx, s.steps[:i])
			return &StepError{Step: step.Name, Err: err}
		}
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, done []Step) {
	// Compensations run even when the request context is gone.
	ctx = context.WithoutCancel(ctx)
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			swallow(s.logger, s.name+"."+step.Name+".compensate", err)
			continue
		}
		s.logger.Info("Compensated saga step", zap.String("saga", s.name), zap.String("step", step.Name))
	}
}
