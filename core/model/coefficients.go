package model

// GeneratorLimit bounds the active power of a generator in per-unit.
type GeneratorLimit struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// CostCoefficients define the quadratic fuel cost curve a + b·p + c·p².
type CostCoefficients struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
}

// EmissionCoefficients define the quadratic-plus-exponential emission curve
// 0.01·(alpha + beta·p + gamma·p²) + xi·exp(lambda·p).
type EmissionCoefficients struct {
	Alpha  float64 `json:"alpha"`
	Beta   float64 `json:"beta"`
	Gamma  float64 `json:"gamma"`
	Xi     float64 `json:"xi"`
	Lambda float64 `json:"lambda"`
}

// VoltageLimit bounds a bus voltage magnitude in per-unit.
type VoltageLimit struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Violation returns how far v lies outside [l.Min, l.Max], or 0 inside.
func (l VoltageLimit) Violation(v float64) float64 {
	return bandViolation(v, l.Min, l.Max)
}

// Violation returns how far p lies outside [l.Min, l.Max], or 0 inside.
func (l GeneratorLimit) Violation(p float64) float64 {
	return bandViolation(p, l.Min, l.Max)
}

func bandViolation(v, lo, hi float64) float64 {
	switch {
	case v > hi:
		return v - hi
	case v < lo:
		return lo - v
	default:
		return 0
	}
}
