package evaluate

import (
	"math"

	"github.com/kilianp07/moeopf/core/params"
)

// The functions below sum in the store's identifier order so that repeated
// evaluations are bit-identical. Power is converted to per-unit with base (MW).
// An identifier missing from the operating point contributes as zero output.

// GenerationViolation is the total excess of generator outputs above their
// maximum plus the total shortfall below their minimum. It is 0 exactly when
// every generator lies within its limits.
func GenerationViolation(s *params.Store, genMW map[string]float64, base float64) float64 {
	var v float64
	for _, id := range s.GeneratorIDs() {
		lim, _ := s.GeneratorLimit(id)
		v += lim.Violation(genMW[id] / base)
	}
	return v
}

// FuelCost sums a + b·p + c·p² over all generators.
func FuelCost(s *params.Store, genMW map[string]float64, base float64) float64 {
	var total float64
	for _, id := range s.GeneratorIDs() {
		c, _ := s.Cost(id)
		p := genMW[id] / base
		total += c.A + c.B*p + c.C*p*p
	}
	return total
}

// Emission sums 0.01·alpha + 0.01·beta·p + 0.01·gamma·p² + xi·exp(lambda·p)
// over all generators.
func Emission(s *params.Store, genMW map[string]float64, base float64) float64 {
	var total float64
	for _, id := range s.GeneratorIDs() {
		e, _ := s.Emission(id)
		p := genMW[id] / base
		total += 0.01*e.Alpha + 0.01*e.Beta*p + 0.01*e.Gamma*p*p + e.Xi*math.Exp(e.Lambda*p)
	}
	return total
}

// VoltageViolation sums, over all buses, the excess above the maximum
// voltage plus the shortfall below the minimum.
func VoltageViolation(s *params.Store, busV map[string]float64) float64 {
	var v float64
	for _, id := range s.BusIDs() {
		lim, _ := s.BusLimit(id)
		v += lim.Violation(busV[id])
	}
	return v
}
