package search

import (
	"github.com/kilianp07/moeopf/core/model"
)

// Archive keeps the epsilon-non-dominated feasible solutions found so far.
// While no feasible solution is known it holds the single candidate with the
// lowest violation. Diverged candidates never enter the archive.
type Archive struct {
	eps     [model.NumObjectives]float64
	members []model.Solution
	boxes   []box
}

// NewArchive returns an empty archive with the given resolution.
func NewArchive(eps [model.NumObjectives]float64) *Archive {
	return &Archive{eps: eps}
}

// Len is the number of archived solutions.
func (a *Archive) Len() int { return len(a.members) }

// Solutions returns a copy of the archive contents.
func (a *Archive) Solutions() []model.Solution {
	out := make([]model.Solution, len(a.members))
	for i, s := range a.members {
		out[i] = s.Clone()
	}
	return out
}

// Add offers s to the archive and reports whether it was accepted.
func (a *Archive) Add(s model.Solution) bool {
	if s.Diverged {
		return false
	}
	if !s.Feasible() {
		if len(a.members) == 0 || (!a.members[0].Feasible() && s.Violation() < a.members[0].Violation()) {
			a.reset(s)
			return true
		}
		return false
	}
	if len(a.members) > 0 && !a.members[0].Feasible() {
		a.reset(s)
		return true
	}

	sb := boxOf(s.Result.Objectives, a.eps)
	keep := a.members[:0:0]
	keepBoxes := a.boxes[:0:0]
	for i, m := range a.members {
		mb := a.boxes[i]
		switch paretoCompare(sb[:], mb[:]) {
		case 1:
			return false
		case -1:
			continue // s's box dominates m's box
		}
		if sb == mb {
			switch paretoCompare(s.Result.Objectives[:], m.Result.Objectives[:]) {
			case 1:
				return false
			case 0:
				if cornerDistance(s.Result.Objectives, sb, a.eps) >= cornerDistance(m.Result.Objectives, mb, a.eps) {
					return false
				}
			}
			continue // s replaces m
		}
		keep = append(keep, m)
		keepBoxes = append(keepBoxes, mb)
	}
	a.members = append(keep, s.Clone())
	a.boxes = append(keepBoxes, sb)
	return true
}

// pick returns the archive member at index i.
func (a *Archive) pick(i int) model.Solution { return a.members[i] }

func (a *Archive) reset(s model.Solution) {
	a.members = []model.Solution{s.Clone()}
	a.boxes = []box{boxOf(s.Result.Objectives, a.eps)}
}
