package evaluate

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/moeopf/core/model"
	"github.com/kilianp07/moeopf/core/params"
)

func threeGenStore(t *testing.T) *params.Store {
	t.Helper()
	s, err := params.New(
		map[string]model.GeneratorLimit{
			"G1": {Min: 0.1, Max: 1.0},
			"G2": {Min: 0.1, Max: 1.5},
			"G3": {Min: 0.2, Max: 2.0},
		},
		map[string]model.CostCoefficients{
			"G1": {A: 10, B: 200, C: 100},
			"G2": {A: 10, B: 150, C: 120},
			"G3": {A: 20, B: 180, C: 40},
		},
		map[string]model.EmissionCoefficients{
			"G1": {Alpha: 4.091, Beta: -5.554, Gamma: 6.49, Xi: 2e-4, Lambda: 2.857},
			"G2": {Alpha: 2.543, Beta: -6.047, Gamma: 5.638, Xi: 5e-4, Lambda: 3.333},
			"G3": {Alpha: 4.258, Beta: -5.094, Gamma: 4.586, Xi: 1e-6, Lambda: 8},
		},
		map[string]model.VoltageLimit{
			"B1": {Min: 0.95, Max: 1.05},
			"B2": {Min: 0.95, Max: 1.05},
		},
	)
	require.NoError(t, err)
	return s
}

func TestGenerationViolationFeasible(t *testing.T) {
	s := threeGenStore(t)
	gen := map[string]float64{"G1": 50, "G2": 100, "G3": 150}
	assert.Equal(t, 0.0, GenerationViolation(s, gen, 100))
}

func TestGenerationViolationAdditive(t *testing.T) {
	s := threeGenStore(t)
	gen := map[string]float64{"G1": 50, "G2": 100, "G3": 150}
	for _, d := range []float64{0.01, 0.25, 1.5} {
		over := map[string]float64{"G1": 50, "G2": 150 + d*100, "G3": 150}
		assert.InDelta(t, d, GenerationViolation(s, over, 100)-GenerationViolation(s, gen, 100), 1e-9)
	}

	// Excess on one generator and shortfall on another add up.
	mixed := map[string]float64{"G1": 120, "G2": 5, "G3": 150}
	assert.InDelta(t, 0.2+0.05, GenerationViolation(s, mixed, 100), 1e-12)
}

func TestFuelCostAndEmission(t *testing.T) {
	s := threeGenStore(t)
	gen := map[string]float64{"G1": 100, "G2": 0, "G3": 50}
	// G1: 10+200+100, G2: 10, G3: 20+90+10
	assert.InDelta(t, 440.0, FuelCost(s, gen, 100), 1e-9)

	want := 0.01*4.091 + 0.01*-5.554 + 0.01*6.49 + 2e-4*math.Exp(2.857) +
		0.01*2.543 + 5e-4 +
		0.01*4.258 + 0.01*-5.094*0.5 + 0.01*4.586*0.25 + 1e-6*math.Exp(4)
	assert.InDelta(t, want, Emission(s, gen, 100), 1e-12)
}

func TestCostDefinedOutsideLimits(t *testing.T) {
	s := threeGenStore(t)
	gen := map[string]float64{"G1": 900, "G2": -40, "G3": 0}
	assert.False(t, math.IsNaN(FuelCost(s, gen, 100)))
	assert.False(t, math.IsNaN(Emission(s, gen, 100)))
}

func TestObjectivesMonotone(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		s, err := params.New(
			map[string]model.GeneratorLimit{"G": {Min: 0, Max: 2}},
			map[string]model.CostCoefficients{"G": {A: rng.Float64() * 20, B: rng.Float64() * 300, C: rng.Float64() * 150}},
			map[string]model.EmissionCoefficients{"G": {
				Alpha: rng.Float64() * 10, Beta: rng.Float64() * 10, Gamma: rng.Float64() * 10,
				Xi: rng.Float64() * 1e-3, Lambda: rng.Float64() * 8,
			}},
			map[string]model.VoltageLimit{"B": {Min: 0.95, Max: 1.05}},
		)
		require.NoError(t, err)
		p := rng.Float64() * 200
		q := p + rng.Float64()*50
		lo := map[string]float64{"G": p}
		hi := map[string]float64{"G": q}
		assert.LessOrEqual(t, FuelCost(s, lo, 100), FuelCost(s, hi, 100))
		assert.LessOrEqual(t, Emission(s, lo, 100), Emission(s, hi, 100))
	}
}

func TestVoltageViolation(t *testing.T) {
	s := threeGenStore(t)
	assert.Equal(t, 0.0, VoltageViolation(s, map[string]float64{"B1": 1.0, "B2": 0.96}))
	assert.InDelta(t, 0.02+0.01, VoltageViolation(s, map[string]float64{"B1": 1.07, "B2": 0.94}), 1e-12)
}

func TestVoltageViolationContinuousAtBoundary(t *testing.T) {
	s := threeGenStore(t)
	at := VoltageViolation(s, map[string]float64{"B1": 1.05, "B2": 0.95})
	assert.Equal(t, 0.0, at)
	for _, eps := range []float64{1e-3, 1e-6, 1e-9} {
		above := VoltageViolation(s, map[string]float64{"B1": 1.05 + eps, "B2": 1.0})
		below := VoltageViolation(s, map[string]float64{"B1": 1.0, "B2": 0.95 - eps})
		assert.InDelta(t, eps, above, 1e-12)
		assert.InDelta(t, eps, below, 1e-12)
	}
}
