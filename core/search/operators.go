package search

import (
	"math"
	"math/rand"

	"github.com/kilianp07/moeopf/core/model"
)

// operators holds the variation settings of a run.
type operators struct {
	bounds       []model.Bound
	crossRate    float64
	crossEta     float64
	mutationRate float64
	mutationEta  float64
	tournament   int
}

func newOperators(p Problem, c Config) operators {
	rate := c.MutationRate
	if rate == 0 {
		rate = 1 / float64(p.Variables())
	}
	return operators{
		bounds:       p.Bounds,
		crossRate:    c.CrossoverRate,
		crossEta:     c.CrossoverDistribution,
		mutationRate: rate,
		mutationEta:  c.MutationDistribution,
		tournament:   c.TournamentSize,
	}
}

// random draws a uniform point of the decision space.
func (o operators) random(rng *rand.Rand) []float64 {
	x := make([]float64, len(o.bounds))
	for i, b := range o.bounds {
		x[i] = b.Min + rng.Float64()*(b.Max-b.Min)
	}
	return x
}

// sbx applies simulated binary crossover and returns the first child.
func (o operators) sbx(p1, p2 []float64, rng *rand.Rand) []float64 {
	child := append([]float64(nil), p1...)
	if rng.Float64() > o.crossRate {
		return child
	}
	for i, b := range o.bounds {
		if rng.Float64() > 0.5 {
			continue
		}
		y1, y2 := p1[i], p2[i]
		if math.Abs(y1-y2) < 1e-14 || b.Max <= b.Min {
			continue
		}
		swap := y1 > y2
		if swap {
			y1, y2 = y2, y1
		}
		c1, c2 := sbxPair(y1, y2, b, o.crossEta, rng.Float64())
		if swap {
			c1, c2 = c2, c1
		}
		if rng.Float64() < 0.5 {
			child[i] = c2
		} else {
			child[i] = c1
		}
	}
	return child
}

// sbxPair computes the bounded SBX children of y1 <= y2 for uniform draw u.
func sbxPair(y1, y2 float64, b model.Bound, eta, u float64) (float64, float64) {
	span := y2 - y1
	betaq := func(beta float64) float64 {
		alpha := 2 - math.Pow(beta, -(eta+1))
		if u <= 1/alpha {
			return math.Pow(u*alpha, 1/(eta+1))
		}
		return math.Pow(1/(2-u*alpha), 1/(eta+1))
	}
	c1 := 0.5 * (y1 + y2 - betaq(1+2*(y1-b.Min)/span)*span)
	c2 := 0.5 * (y1 + y2 + betaq(1+2*(b.Max-y2)/span)*span)
	return clamp(c1, b), clamp(c2, b)
}

// mutate applies polynomial mutation in place.
func (o operators) mutate(x []float64, rng *rand.Rand) {
	for i, b := range o.bounds {
		if rng.Float64() >= o.mutationRate {
			continue
		}
		span := b.Max - b.Min
		if span <= 0 {
			continue
		}
		d1 := (x[i] - b.Min) / span
		d2 := (b.Max - x[i]) / span
		u := rng.Float64()
		pow := 1 / (o.mutationEta + 1)
		var dq float64
		if u < 0.5 {
			v := 2*u + (1-2*u)*math.Pow(1-d1, o.mutationEta+1)
			dq = math.Pow(v, pow) - 1
		} else {
			v := 2*(1-u) + 2*(u-0.5)*math.Pow(1-d2, o.mutationEta+1)
			dq = 1 - math.Pow(v, pow)
		}
		x[i] = clamp(x[i]+dq*span, b)
	}
}

// tournamentSelect picks the constraint-dominance winner among
// o.tournament random population members.
func (o operators) tournamentSelect(pop []model.Solution, rng *rand.Rand) model.Solution {
	best := pop[rng.Intn(len(pop))]
	for i := 1; i < o.tournament; i++ {
		c := pop[rng.Intn(len(pop))]
		if constraintCompare(c, best) < 0 {
			best = c
		}
	}
	return best
}

func clamp(v float64, b model.Bound) float64 {
	switch {
	case v < b.Min:
		return b.Min
	case v > b.Max:
		return b.Max
	}
	return v
}
