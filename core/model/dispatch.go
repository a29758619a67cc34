package model

import (
	"errors"
	"math"
)

// Objective indexes into Result.Objectives.
type Objective int

const (
	ObjectiveCost Objective = iota
	ObjectiveEmission
	ObjectiveVoltage
)

// NumObjectives and NumConstraints size an evaluation result.
const (
	NumObjectives  = 3
	NumConstraints = 1
)

func (o Objective) String() string {
	switch o {
	case ObjectiveCost:
		return "cost"
	case ObjectiveEmission:
		return "emission"
	case ObjectiveVoltage:
		return "voltage_violation"
	default:
		return "unknown"
	}
}

// OperatingPoint is the steady-state solution returned by a dispatch oracle.
// Generator outputs are in MW and include the slack generator; bus voltages
// are magnitudes in per-unit.
type OperatingPoint struct {
	GeneratorMW map[string]float64 `json:"generator_mw"`
	BusVoltage  map[string]float64 `json:"bus_voltage_pu"`
	Iterations  int                `json:"iterations"`
}

// Result holds the objectives (cost, emission, voltage violation) and the
// generation-limit constraint of one evaluated dispatch.
type Result struct {
	Objectives  [NumObjectives]float64  `json:"objectives"`
	Constraints [NumConstraints]float64 `json:"constraints"`
}

// Cost returns the fuel cost objective.
func (r Result) Cost() float64 { return r.Objectives[ObjectiveCost] }

// Emission returns the emission objective.
func (r Result) Emission() float64 { return r.Objectives[ObjectiveEmission] }

// VoltageViolation returns the voltage-quality objective.
func (r Result) VoltageViolation() float64 { return r.Objectives[ObjectiveVoltage] }

// GenerationViolation returns the generation-limit constraint.
func (r Result) GenerationViolation() float64 { return r.Constraints[0] }

// Violation sums all constraint values.
func (r Result) Violation() float64 {
	var v float64
	for _, c := range r.Constraints {
		v += c
	}
	return v
}

// Feasible reports whether every constraint is exactly zero.
func (r Result) Feasible() bool { return r.Violation() == 0 }

// Finite reports whether every objective and constraint is a finite number.
func (r Result) Finite() bool {
	for _, o := range r.Objectives {
		if math.IsNaN(o) || math.IsInf(o, 0) {
			return false
		}
	}
	for _, c := range r.Constraints {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Bound is a closed interval for one decision variable.
type Bound struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies in [b.Min, b.Max].
func (b Bound) Contains(v float64) bool { return v >= b.Min && v <= b.Max }

// Mid returns the interval midpoint.
func (b Bound) Mid() float64 { return (b.Min + b.Max) / 2 }

// ErrNotConverged is returned, possibly wrapped, by a dispatch oracle that
// failed to reach a steady-state solution.
var ErrNotConverged = errors.New("dispatch oracle did not converge")
