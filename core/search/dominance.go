package search

import (
	"math"

	"github.com/kilianp07/moeopf/core/model"
)

// paretoCompare returns -1 when a dominates b, 1 when b dominates a and 0
// otherwise. All objectives are minimized.
func paretoCompare(a, b []float64) int {
	aBetter, bBetter := false, false
	for i := range a {
		switch {
		case a[i] < b[i]:
			aBetter = true
		case a[i] > b[i]:
			bBetter = true
		}
		if aBetter && bBetter {
			return 0
		}
	}
	switch {
	case aBetter:
		return -1
	case bBetter:
		return 1
	}
	return 0
}

// constraintCompare applies constraint domination: a smaller total violation
// wins; equal violations fall back to Pareto dominance when both are
// feasible and are mutually non-dominated otherwise.
func constraintCompare(a, b model.Solution) int {
	va, vb := a.Violation(), b.Violation()
	switch {
	case va < vb:
		return -1
	case va > vb:
		return 1
	case va != 0:
		return 0
	}
	return paretoCompare(a.Result.Objectives[:], b.Result.Objectives[:])
}

// box is the epsilon-box index of an objective vector.
type box [model.NumObjectives]float64

func boxOf(obj [model.NumObjectives]float64, eps [model.NumObjectives]float64) box {
	var b box
	for i := range obj {
		b[i] = math.Floor(obj[i] / eps[i])
	}
	return b
}

// cornerDistance is the squared distance from obj to the lower corner of its
// box, measured in units of epsilon.
func cornerDistance(obj [model.NumObjectives]float64, b box, eps [model.NumObjectives]float64) float64 {
	var d float64
	for i := range obj {
		r := obj[i]/eps[i] - b[i]
		d += r * r
	}
	return d
}
