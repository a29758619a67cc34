package metrics

import (
	"time"

	"github.com/kilianp07/moeopf/core/model"
)

// Outcome classifies a single evaluation.
type Outcome string

const (
	OutcomeFeasible   Outcome = "feasible"
	OutcomeInfeasible Outcome = "infeasible"
	OutcomeDiverged   Outcome = "diverged"
)

// OutcomeOf classifies an evaluated solution.
func OutcomeOf(s model.Solution) Outcome {
	switch {
	case s.Diverged:
		return OutcomeDiverged
	case s.Feasible():
		return OutcomeFeasible
	default:
		return OutcomeInfeasible
	}
}

// EvaluationEvent describes one call of the evaluation function.
type EvaluationEvent struct {
	RunID    string
	NFE      int
	X        []float64
	Result   model.Result
	Outcome  Outcome
	Duration time.Duration
	Time     time.Time
}

// ProgressEvent is a snapshot of a run, emitted every Frequency evaluations
// and once when the run ends.
type ProgressEvent struct {
	RunID        string
	NFE          int
	ArchiveSize  int
	Improvements int
	Diverged     int
	Elapsed      time.Duration
	// Best holds the lowest value of each objective over the feasible
	// archive members; entries are +Inf while no feasible point is known.
	Best    [model.NumObjectives]float64
	Archive []model.Solution
	Final   bool
	Time    time.Time
}

// RunSummary closes a run.
type RunSummary struct {
	RunID       string
	Evaluations int
	Diverged    int
	Discarded   int
	ArchiveSize int
	Elapsed     time.Duration
	Err         string
	Time        time.Time
}

// BestOf computes the per-objective minimum over the feasible solutions.
func BestOf(archive []model.Solution) [model.NumObjectives]float64 {
	var best [model.NumObjectives]float64
	for i := range best {
		best[i] = posInf
	}
	for _, s := range archive {
		if !s.Feasible() || s.Diverged {
			continue
		}
		for i, v := range s.Result.Objectives {
			if v < best[i] {
				best[i] = v
			}
		}
	}
	return best
}
