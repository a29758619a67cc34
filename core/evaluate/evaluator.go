package evaluate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/moeopf/core/model"
	"github.com/kilianp07/moeopf/core/params"
)

// Oracle solves the network for a set of controllable generator setpoints.
// The returned operating point includes the slack generator. Non-convergence
// is signalled with an error matching model.ErrNotConverged.
type Oracle interface {
	Solve(ctx context.Context, setpointsMW map[string]float64) (model.OperatingPoint, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, setpointsMW map[string]float64) (model.OperatingPoint, error)

func (f OracleFunc) Solve(ctx context.Context, sp map[string]float64) (model.OperatingPoint, error) {
	return f(ctx, sp)
}

// Config defines evaluation settings loaded from configuration.
type Config struct {
	// BaseMVA is the per-unit power base. Zero selects the network base.
	BaseMVA float64 `json:"base_mva"`
	// SolveTimeoutMS bounds one oracle call; expiry counts as divergence.
	SolveTimeoutMS int `json:"solve_timeout_ms"`
}

// SolveTimeout returns the configured oracle timeout, zero when unbounded.
func (c Config) SolveTimeout() time.Duration {
	return time.Duration(c.SolveTimeoutMS) * time.Millisecond
}

// Validate checks the numeric settings.
func (c Config) Validate() error {
	if c.BaseMVA < 0 {
		return fmt.Errorf("evaluation.base_mva must not be negative")
	}
	if c.SolveTimeoutMS < 0 {
		return fmt.Errorf("evaluation.solve_timeout_ms must not be negative")
	}
	return nil
}

// Evaluator maps a decision vector to objectives and constraints. It holds
// no mutable state and can be shared between goroutines.
type Evaluator struct {
	params  *params.Holder
	oracle  Oracle
	ids     []string
	bounds  []model.Bound
	base    float64
	timeout time.Duration
}

// New returns an Evaluator for the controllable generators ids, in decision
// vector order. bounds may be nil to skip range checks; otherwise it must
// have one entry per identifier.
func New(h *params.Holder, oracle Oracle, ids []string, bounds []model.Bound, base float64, timeout time.Duration) (*Evaluator, error) {
	if h == nil || h.Current() == nil {
		return nil, errors.New("evaluate: nil parameter store")
	}
	if oracle == nil {
		return nil, errors.New("evaluate: nil oracle")
	}
	if len(ids) == 0 {
		return nil, errors.New("evaluate: no controllable generators")
	}
	if bounds != nil && len(bounds) != len(ids) {
		return nil, fmt.Errorf("evaluate: %d bounds for %d generators", len(bounds), len(ids))
	}
	if base <= 0 {
		return nil, fmt.Errorf("evaluate: base must be positive, got %v", base)
	}
	s := h.Current()
	for _, id := range ids {
		if _, ok := s.GeneratorLimit(id); !ok {
			return nil, fmt.Errorf("evaluate: generator %s has no parameters", id)
		}
	}
	return &Evaluator{
		params:  h,
		oracle:  oracle,
		ids:     append([]string(nil), ids...),
		bounds:  append([]model.Bound(nil), bounds...),
		base:    base,
		timeout: timeout,
	}, nil
}

// Dimension is the expected decision vector length.
func (e *Evaluator) Dimension() int { return len(e.ids) }

// GeneratorIDs returns the controllable generators in decision vector order.
func (e *Evaluator) GeneratorIDs() []string { return append([]string(nil), e.ids...) }

// Check validates x against the evaluation contract without solving.
func (e *Evaluator) Check(x []float64) error {
	if len(x) != len(e.ids) {
		return &EvaluationContractError{Index: -1, Reason: fmt.Sprintf("decision vector has %d values, want %d", len(x), len(e.ids))}
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &EvaluationContractError{Index: i, Value: v, Min: math.Inf(-1), Max: math.Inf(1), Reason: "is not finite in"}
		}
		if len(e.bounds) > 0 && !e.bounds[i].Contains(v) {
			return &EvaluationContractError{Index: i, Value: v, Min: e.bounds[i].Min, Max: e.bounds[i].Max, Reason: "outside"}
		}
	}
	return nil
}

// Evaluate solves the dispatch x (MW, one value per controllable generator)
// and returns its objectives and constraint. Contract violations return an
// *EvaluationContractError, non-convergence and solve timeouts a
// *SolveDivergedError. When ctx itself ends, its error is returned as is.
func (e *Evaluator) Evaluate(ctx context.Context, x []float64) (model.Result, error) {
	res, _, err := e.EvaluatePoint(ctx, x)
	return res, err
}

// EvaluatePoint is Evaluate that also returns the operating point the result
// was computed from.
func (e *Evaluator) EvaluatePoint(ctx context.Context, x []float64) (model.Result, model.OperatingPoint, error) {
	if err := e.Check(x); err != nil {
		return model.Result{}, model.OperatingPoint{}, err
	}
	s := e.params.Current()
	sp := make(map[string]float64, len(x))
	for i, id := range e.ids {
		sp[id] = x[i]
	}

	solveCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	op, err := e.oracle.Solve(solveCtx, sp)
	if err != nil {
		if perr := ctx.Err(); perr != nil {
			return model.Result{}, model.OperatingPoint{}, perr
		}
		if errors.Is(err, model.ErrNotConverged) || errors.Is(err, context.DeadlineExceeded) {
			return model.Result{}, model.OperatingPoint{}, &SolveDivergedError{X: append([]float64(nil), x...), Err: err}
		}
		return model.Result{}, model.OperatingPoint{}, fmt.Errorf("evaluate: oracle: %w", err)
	}
	if err := complete(s, op); err != nil {
		return model.Result{}, model.OperatingPoint{}, &SolveDivergedError{X: append([]float64(nil), x...), Err: err}
	}
	return Compute(s, op, e.base), op, nil
}

// Compute derives the result of an operating point.
func Compute(s *params.Store, op model.OperatingPoint, base float64) model.Result {
	var r model.Result
	r.Constraints[0] = GenerationViolation(s, op.GeneratorMW, base)
	r.Objectives[model.ObjectiveCost] = FuelCost(s, op.GeneratorMW, base)
	r.Objectives[model.ObjectiveEmission] = Emission(s, op.GeneratorMW, base)
	r.Objectives[model.ObjectiveVoltage] = VoltageViolation(s, op.BusVoltage)
	return r
}

// complete rejects operating points that miss an identifier of the store or
// carry non-finite values.
func complete(s *params.Store, op model.OperatingPoint) error {
	for _, id := range s.GeneratorIDs() {
		v, ok := op.GeneratorMW[id]
		if !ok {
			return fmt.Errorf("operating point has no output for generator %s", id)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("generator %s output is %v", id, v)
		}
	}
	for _, id := range s.BusIDs() {
		v, ok := op.BusVoltage[id]
		if !ok {
			return fmt.Errorf("operating point has no voltage for bus %s", id)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bus %s voltage is %v", id, v)
		}
	}
	return nil
}
