package evaluate

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/moeopf/core/model"
	"github.com/kilianp07/moeopf/core/params"
	"github.com/kilianp07/moeopf/core/powerflow"
)

// stubOracle echoes the setpoints and fixes the slack output and voltages.
func stubOracle(calls *int32) OracleFunc {
	return func(_ context.Context, sp map[string]float64) (model.OperatingPoint, error) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		op := model.OperatingPoint{
			GeneratorMW: map[string]float64{"G3": 100},
			BusVoltage:  map[string]float64{"B1": 1.0, "B2": 1.01},
		}
		for id, v := range sp {
			op.GeneratorMW[id] = v
		}
		return op, nil
	}
}

func newStubEvaluator(t *testing.T, calls *int32) *Evaluator {
	t.Helper()
	bounds := []model.Bound{{Min: 5, Max: 150}, {Min: 5, Max: 150}}
	ev, err := New(params.NewHolder(threeGenStore(t)), stubOracle(calls), []string{"G1", "G2"}, bounds, 100, 0)
	require.NoError(t, err)
	return ev
}

func sampleEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	return caseEvaluator(t, "sample")
}

func caseEvaluator(t *testing.T, name string) *Evaluator {
	t.Helper()
	dir := filepath.Join("..", "..", "data", name)
	store, err := params.Load(params.Paths{
		GeneratorLimits: filepath.Join(dir, "generator_limits.csv"),
		Costs:           filepath.Join(dir, "costs.csv"),
		Emissions:       filepath.Join(dir, "emissions.csv"),
		BusLimits:       filepath.Join(dir, "bus_limits.csv"),
	})
	require.NoError(t, err)
	net, err := powerflow.LoadNetwork(filepath.Join(dir, "network.yaml"))
	require.NoError(t, err)
	require.NoError(t, store.Validate(net.GeneratorIDs(), net.BusIDs()))
	solver, err := powerflow.NewSolver(net, powerflow.Options{})
	require.NoError(t, err)
	ids := net.ControllableIDs()
	bounds := make([]model.Bound, len(ids))
	for i := range bounds {
		bounds[i] = model.Bound{Min: 5, Max: 150}
	}
	ev, err := New(params.NewHolder(store), solver, ids, bounds, net.BaseMVA, 0)
	require.NoError(t, err)
	return ev
}

func TestEvaluateStub(t *testing.T) {
	ev := newStubEvaluator(t, nil)
	res, err := ev.Evaluate(context.Background(), []float64{50, 100})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.GenerationViolation())
	assert.Equal(t, 0.0, res.VoltageViolation())
	assert.True(t, res.Finite())
	assert.Equal(t, 2, ev.Dimension())
	assert.Equal(t, []string{"G1", "G2"}, ev.GeneratorIDs())
}

func TestEvaluateViolationLinear(t *testing.T) {
	ev := newStubEvaluator(t, nil)
	base, err := ev.Evaluate(context.Background(), []float64{50, 100})
	require.NoError(t, err)
	// G1 max is 1.0 p.u.; 140 MW exceeds it by 0.4.
	over, err := ev.Evaluate(context.Background(), []float64{140, 100})
	require.NoError(t, err)
	assert.InDelta(t, 0.4, over.GenerationViolation()-base.GenerationViolation(), 1e-12)
}

func TestEvaluateContractErrors(t *testing.T) {
	var calls int32
	ev := newStubEvaluator(t, &calls)
	cases := []struct {
		name  string
		x     []float64
		index int
	}{
		{"short", []float64{50}, -1},
		{"long", []float64{50, 50, 50}, -1},
		{"above bound", []float64{50, 151}, 1},
		{"below bound", []float64{4.9, 50}, 0},
		{"nan", []float64{math.NaN(), 50}, 0},
		{"inf", []float64{50, math.Inf(1)}, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ev.Evaluate(context.Background(), c.x)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrContract)
			var ce *EvaluationContractError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, c.index, ce.Index)
		})
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestEvaluateDiverged(t *testing.T) {
	oracle := OracleFunc(func(context.Context, map[string]float64) (model.OperatingPoint, error) {
		return model.OperatingPoint{}, &powerflow.ConvergenceError{Iterations: 10, Mismatch: 3}
	})
	ev, err := New(params.NewHolder(threeGenStore(t)), oracle, []string{"G1", "G2"}, nil, 100, 0)
	require.NoError(t, err)
	res, err := ev.Evaluate(context.Background(), []float64{50, 60})
	require.Error(t, err)
	assert.True(t, IsDiverged(err))
	assert.ErrorIs(t, err, model.ErrNotConverged)
	assert.Equal(t, model.Result{}, res)
	var de *SolveDivergedError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, []float64{50, 60}, de.X)
}

func TestEvaluateTimeoutIsDivergence(t *testing.T) {
	oracle := OracleFunc(func(ctx context.Context, _ map[string]float64) (model.OperatingPoint, error) {
		<-ctx.Done()
		return model.OperatingPoint{}, ctx.Err()
	})
	ev, err := New(params.NewHolder(threeGenStore(t)), oracle, []string{"G1", "G2"}, nil, 100, 10*time.Millisecond)
	require.NoError(t, err)
	_, err = ev.Evaluate(context.Background(), []float64{50, 60})
	assert.True(t, IsDiverged(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEvaluateCanceledIsNotDivergence(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	oracle := OracleFunc(func(ctx context.Context, _ map[string]float64) (model.OperatingPoint, error) {
		cancel()
		<-ctx.Done()
		return model.OperatingPoint{}, &powerflow.ConvergenceError{Iterations: 1, Mismatch: 1, Err: ctx.Err()}
	})
	for _, timeout := range []time.Duration{0, time.Minute} {
		ev, err := New(params.NewHolder(threeGenStore(t)), oracle, []string{"G1", "G2"}, nil, 100, timeout)
		require.NoError(t, err)
		_, err = ev.Evaluate(ctx, []float64{50, 60})
		assert.Equal(t, context.Canceled, err)
		assert.False(t, IsDiverged(err))
	}
}

func TestEvaluatePointMatchesSolve(t *testing.T) {
	ev := sampleEvaluator(t)
	x := []float64{40, 120, 60, 90, 30}
	res, op, err := ev.EvaluatePoint(context.Background(), x)
	require.NoError(t, err)
	want, err := ev.Evaluate(context.Background(), x)
	require.NoError(t, err)
	assert.Equal(t, want, res)
	assert.Len(t, op.GeneratorMW, 6)
	assert.Equal(t, 120.0, op.GeneratorMW["G_2"])
	assert.Positive(t, op.Iterations)
}

func TestEvaluateOracleErrorNotDiverged(t *testing.T) {
	boom := errors.New("boom")
	oracle := OracleFunc(func(context.Context, map[string]float64) (model.OperatingPoint, error) {
		return model.OperatingPoint{}, boom
	})
	ev, err := New(params.NewHolder(threeGenStore(t)), oracle, []string{"G1", "G2"}, nil, 100, 0)
	require.NoError(t, err)
	_, err = ev.Evaluate(context.Background(), []float64{50, 60})
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsDiverged(err))
}

func TestEvaluateIncompleteOperatingPoint(t *testing.T) {
	oracle := OracleFunc(func(_ context.Context, sp map[string]float64) (model.OperatingPoint, error) {
		// slack output and bus B2 missing
		return model.OperatingPoint{GeneratorMW: sp, BusVoltage: map[string]float64{"B1": 1}}, nil
	})
	ev, err := New(params.NewHolder(threeGenStore(t)), oracle, []string{"G1", "G2"}, nil, 100, 0)
	require.NoError(t, err)
	_, err = ev.Evaluate(context.Background(), []float64{50, 60})
	assert.True(t, IsDiverged(err))
}

func TestNewValidation(t *testing.T) {
	h := params.NewHolder(threeGenStore(t))
	o := stubOracle(nil)
	_, err := New(nil, o, []string{"G1"}, nil, 100, 0)
	assert.Error(t, err)
	_, err = New(h, nil, []string{"G1"}, nil, 100, 0)
	assert.Error(t, err)
	_, err = New(h, o, nil, nil, 100, 0)
	assert.Error(t, err)
	_, err = New(h, o, []string{"G1"}, []model.Bound{{}, {}}, 100, 0)
	assert.Error(t, err)
	_, err = New(h, o, []string{"G1"}, nil, 0, 0)
	assert.Error(t, err)
	_, err = New(h, o, []string{"G9"}, nil, 100, 0)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{}.Validate())
	assert.Error(t, Config{BaseMVA: -1}.Validate())
	assert.Error(t, Config{SolveTimeoutMS: -1}.Validate())
	assert.Equal(t, 250*time.Millisecond, Config{SolveTimeoutMS: 250}.SolveTimeout())
}

func TestEvaluateMidpointDispatch(t *testing.T) {
	ev := sampleEvaluator(t)
	x := []float64{77.5, 77.5, 77.5, 77.5, 77.5}
	res, err := ev.Evaluate(context.Background(), x)
	require.NoError(t, err)
	assert.True(t, res.Finite())
	assert.Equal(t, 0.0, res.GenerationViolation())
	assert.Equal(t, 0.0, res.VoltageViolation())
	assert.InDelta(t, 1090.2938, res.Cost(), 1e-3)
	assert.InDelta(t, 0.22533, res.Emission(), 1e-5)
}

func TestEvaluateIEEE30Midpoint(t *testing.T) {
	ev := caseEvaluator(t, "ieee30")
	res, op, err := ev.EvaluatePoint(context.Background(), []float64{77.5, 77.5, 77.5, 77.5, 77.5})
	require.NoError(t, err)
	// 387.5 MW against a 283.4 MW load: the external grid absorbs the
	// surplus and falls below its minimum.
	assert.InDelta(t, -98.9667, op.GeneratorMW["G_6"], 1e-3)
	assert.InDelta(t, 0.05+0.989667, res.GenerationViolation(), 1e-5)
	assert.InDelta(t, 873.4690, res.Cost(), 1e-3)
	assert.InDelta(t, 0.342212, res.Emission(), 1e-5)
	// B11 and B13 are held at 1.082 and 1.071 p.u., above the 1.06 limit.
	assert.InDelta(t, 0.035426, res.VoltageViolation(), 1e-5)
}

func TestEvaluateSingleGeneratorOverMax(t *testing.T) {
	ev := sampleEvaluator(t)
	// G_3 is limited to 1.0 p.u.; 150 MW exceeds it by 0.5 while the others,
	// the slack included, stay within their limits.
	for _, x := range [][]float64{
		{10, 50, 150, 77.5, 77.5},
		{10, 50, 150, 100, 60},
	} {
		res, err := ev.Evaluate(context.Background(), x)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, res.GenerationViolation(), 1e-9)
	}
}

func TestEvaluateDeterministicAndConcurrent(t *testing.T) {
	ev := sampleEvaluator(t)
	x := []float64{40, 120, 60, 90, 30}
	want, err := ev.Evaluate(context.Background(), x)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]model.Result, 16)
	errs := make([]error, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = ev.Evaluate(context.Background(), x)
		}(i)
	}
	wg.Wait()
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, want, results[i])
	}
}
