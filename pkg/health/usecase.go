package health

import (
	"context"
	"errors"
	"fmt"
)

// Checker represents a dependency health check.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// Result is the outcome of one Checker.
type Result struct {
	Name string
	Err  error
}

// ReadinessUseCase describes readiness verification.
type ReadinessUseCase interface {
	// Ready returns every failing check joined, or nil when all pass.
	Ready(ctx context.Context) error
	Report(ctx context.Context) []Result
}

type service struct {
	checkers []Checker
}

// NewService aggregates dependency checkers.
func NewService(checkers ...Checker) ReadinessUseCase {
	return &service{checkers: checkers}
}

func (s *service) Report(ctx context.Context) []Result {
	results := make([]Result, 0, len(s.checkers))
	for _, ch := range s.checkers {
		results = append(results, Result{Name: ch.Name(), Err: ch.Check(ctx)})
	}
	return results
}

func (s *service) Ready(ctx context.Context) error {
	var errs []error
	for _, r := range s.Report(ctx) {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, r.Err))
		}
	}
	return errors.Join(errs...)
}
