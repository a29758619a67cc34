package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBandViolation(t *testing.T) {
	l := GeneratorLimit{Min: 0.5, Max: 2}
	cases := []struct {
		name string
		p    float64
		want float64
	}{
		{"inside", 1, 0},
		{"at min", 0.5, 0},
		{"at max", 2, 0},
		{"above", 2.25, 0.25},
		{"below", 0.25, 0.25},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.InDelta(t, c.want, l.Violation(c.p), 1e-12)
		})
	}
}

func TestResultAccessors(t *testing.T) {
	r := Result{Objectives: [3]float64{10, 0.2, 0.01}, Constraints: [1]float64{0}}
	assert.Equal(t, 10.0, r.Cost())
	assert.Equal(t, 0.2, r.Emission())
	assert.Equal(t, 0.01, r.VoltageViolation())
	assert.True(t, r.Feasible())
	assert.True(t, r.Finite())

	r.Constraints[0] = 0.3
	assert.False(t, r.Feasible())
	assert.Equal(t, 0.3, r.GenerationViolation())

	r.Objectives[1] = math.Inf(1)
	assert.False(t, r.Finite())
}

func TestObjectiveString(t *testing.T) {
	assert.Equal(t, "cost", ObjectiveCost.String())
	assert.Equal(t, "emission", ObjectiveEmission.String())
	assert.Equal(t, "voltage_violation", ObjectiveVoltage.String())
	assert.Equal(t, "unknown", Objective(9).String())
}

func TestBound(t *testing.T) {
	b := Bound{Min: 5, Max: 150}
	assert.True(t, b.Contains(5))
	assert.True(t, b.Contains(150))
	assert.False(t, b.Contains(150.1))
	assert.Equal(t, 77.5, b.Mid())
}
