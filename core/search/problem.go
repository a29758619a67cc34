package search

import (
	"context"
	"fmt"

	"github.com/kilianp07/moeopf/core/model"
)

// Evaluator is the black-box function searched over.
type Evaluator interface {
	Evaluate(ctx context.Context, x []float64) (model.Result, error)
}

// Problem describes the decision space and the archive resolution.
type Problem struct {
	Bounds   []model.Bound
	Epsilons [model.NumObjectives]float64
}

// Variables is the number of decision variables.
func (p Problem) Variables() int { return len(p.Bounds) }

// Validate checks that the problem has n variables with usable bounds.
func (p Problem) Validate(n int) error {
	if len(p.Bounds) != n {
		return fmt.Errorf("search: %d bounds for %d decision variables", len(p.Bounds), n)
	}
	for i, b := range p.Bounds {
		if !isFinite(b.Min) || !isFinite(b.Max) || b.Min > b.Max {
			return fmt.Errorf("search: bound %d [%v,%v] is invalid", i, b.Min, b.Max)
		}
	}
	for i, e := range p.Epsilons {
		if !(e > 0) {
			return fmt.Errorf("search: epsilon %d must be positive", i)
		}
	}
	return nil
}
