package model

// Solution is an evaluated decision vector.
type Solution struct {
	X      []float64 `json:"x"`
	Result Result    `json:"result"`
	// Diverged marks a candidate whose solve failed and whose result is a
	// penalty rather than a computed value.
	Diverged bool `json:"diverged,omitempty"`
}

// Clone returns a deep copy of s.
func (s Solution) Clone() Solution {
	c := s
	c.X = append([]float64(nil), s.X...)
	return c
}

// Violation is the total constraint violation of s.
func (s Solution) Violation() float64 { return s.Result.Violation() }

// Feasible reports whether s satisfies every constraint.
func (s Solution) Feasible() bool { return s.Result.Feasible() }
