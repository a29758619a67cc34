package evaluate

import (
	"errors"
	"fmt"
)

// ErrContract is matched by every EvaluationContractError.
var ErrContract = errors.New("evaluation contract violated")

// EvaluationContractError rejects a decision vector before the oracle runs.
type EvaluationContractError struct {
	// Index is the offending position, -1 for a length mismatch.
	Index  int
	Value  float64
	Min    float64
	Max    float64
	Reason string
}

func (e *EvaluationContractError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("evaluate: %s", e.Reason)
	}
	return fmt.Sprintf("evaluate: x[%d]=%v %s [%v, %v]", e.Index, e.Value, e.Reason, e.Min, e.Max)
}

func (e *EvaluationContractError) Is(target error) bool { return target == ErrContract }

// SolveDivergedError reports that the dispatch oracle produced no usable
// operating point for X. No partial result accompanies it.
type SolveDivergedError struct {
	X   []float64
	Err error
}

func (e *SolveDivergedError) Error() string {
	return fmt.Sprintf("evaluate: solve diverged for %v: %v", e.X, e.Err)
}

func (e *SolveDivergedError) Unwrap() error { return e.Err }

// IsDiverged reports whether err carries a SolveDivergedError.
func IsDiverged(err error) bool {
	var d *SolveDivergedError
	return errors.As(err, &d)
}
