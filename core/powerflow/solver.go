package powerflow

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/moeopf/core/model"
)

var (
	// ErrNotConverged indicates the Newton-Raphson iteration did not reach
	// the mismatch tolerance.
	ErrNotConverged = model.ErrNotConverged

	// ErrSetpoint indicates a missing, unknown or non-finite generator setpoint.
	ErrSetpoint = errors.New("powerflow: invalid setpoint")
)

// ConvergenceError carries the state of a failed solve.
type ConvergenceError struct {
	Iterations int
	Mismatch   float64
	Err        error
}

func (e *ConvergenceError) Error() string {
	msg := fmt.Sprintf("powerflow: not converged after %d iterations (mismatch %.3g)", e.Iterations, e.Mismatch)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConvergenceError) Is(target error) bool { return target == ErrNotConverged }

func (e *ConvergenceError) Unwrap() error { return e.Err }

// Options tune the Newton-Raphson iteration.
type Options struct {
	// Tolerance is the maximum absolute power mismatch in per-unit.
	Tolerance     float64 `json:"tolerance"`
	MaxIterations int     `json:"max_iterations"`
}

// SetDefaults applies the usual Newton-Raphson settings.
func (o *Options) SetDefaults() {
	if o.Tolerance <= 0 {
		o.Tolerance = 1e-8
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = 10
	}
}

// Solver runs AC power flows on a fixed network. It is immutable after
// construction and safe for concurrent use.
type Solver struct {
	net   *Network
	opts  Options
	g, b  *mat.Dense
	slack int
	pvpq  []int
	pq    []int
	thPos []int
	vPos  []int
	vInit []float64
	pLoad []float64
	qLoad []float64

	genBus       map[string]int
	controllable map[string]struct{}
	slackGen     string
	busIDs       []string
}

// NewSolver prepares the admittance matrix and bus classification of n.
func NewSolver(n *Network, opts Options) (*Solver, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	opts.SetDefaults()
	size := len(n.Buses)
	busIdx := make(map[string]int, size)
	for i, b := range n.Buses {
		busIdx[b.ID] = i
	}
	s := &Solver{
		net:          n,
		opts:         opts,
		thPos:        make([]int, size),
		vPos:         make([]int, size),
		vInit:        make([]float64, size),
		pLoad:        make([]float64, size),
		qLoad:        make([]float64, size),
		genBus:       make(map[string]int, len(n.Generators)),
		controllable: make(map[string]struct{}, len(n.Generators)),
		busIDs:       n.BusIDs(),
	}
	s.g, s.b = admittance(n, busIdx)

	isPV := make([]bool, size)
	for i := range s.vInit {
		s.vInit[i] = 1
	}
	for _, gen := range n.Generators {
		i := busIdx[gen.Bus]
		s.genBus[gen.ID] = i
		s.vInit[i] = gen.VmPU
		if gen.Slack {
			s.slack = i
			s.slackGen = gen.ID
			continue
		}
		isPV[i] = true
		s.controllable[gen.ID] = struct{}{}
	}
	for i, bus := range n.Buses {
		s.pLoad[i] = bus.PdMW / n.BaseMVA
		s.qLoad[i] = bus.QdMVAr / n.BaseMVA
		s.thPos[i], s.vPos[i] = -1, -1
		if i == s.slack {
			continue
		}
		s.thPos[i] = len(s.pvpq)
		s.pvpq = append(s.pvpq, i)
		if !isPV[i] {
			s.pq = append(s.pq, i)
		}
	}
	for j, i := range s.pq {
		s.vPos[i] = len(s.pvpq) + j
	}
	return s, nil
}

// Network returns the model the solver was built from.
func (s *Solver) Network() *Network { return s.net }

// Solve fixes the active power of every controllable generator and returns
// the converged operating point, including the slack generator output.
//
//gocyclo:ignore
func (s *Solver) Solve(ctx context.Context, setpointsMW map[string]float64) (model.OperatingPoint, error) {
	size := len(s.busIDs)
	base := s.net.BaseMVA
	pSched := make([]float64, size)
	qSched := make([]float64, size)
	for i := range pSched {
		pSched[i] = -s.pLoad[i]
		qSched[i] = -s.qLoad[i]
	}
	for id, mw := range setpointsMW {
		if _, ok := s.controllable[id]; !ok {
			return model.OperatingPoint{}, fmt.Errorf("%w: %s is not a controllable generator", ErrSetpoint, id)
		}
		if math.IsNaN(mw) || math.IsInf(mw, 0) {
			return model.OperatingPoint{}, fmt.Errorf("%w: %s=%v", ErrSetpoint, id, mw)
		}
		pSched[s.genBus[id]] += mw / base
	}
	if len(setpointsMW) != len(s.controllable) {
		for id := range s.controllable {
			if _, ok := setpointsMW[id]; !ok {
				return model.OperatingPoint{}, fmt.Errorf("%w: missing %s", ErrSetpoint, id)
			}
		}
	}

	vm := append([]float64(nil), s.vInit...)
	va := make([]float64, size)
	dim := len(s.pvpq) + len(s.pq)
	f := make([]float64, dim)
	var p, q []float64
	iter := 0
	for ; ; iter++ {
		p, q = s.injections(vm, va)
		for _, i := range s.pvpq {
			f[s.thPos[i]] = pSched[i] - p[i]
		}
		for _, i := range s.pq {
			f[s.vPos[i]] = qSched[i] - q[i]
		}
		norm := maxAbs(f)
		if math.IsNaN(norm) || math.IsInf(norm, 0) {
			return model.OperatingPoint{}, &ConvergenceError{Iterations: iter, Mismatch: norm}
		}
		if norm < s.opts.Tolerance {
			break
		}
		if iter >= s.opts.MaxIterations {
			return model.OperatingPoint{}, &ConvergenceError{Iterations: iter, Mismatch: norm}
		}
		if err := ctx.Err(); err != nil {
			return model.OperatingPoint{}, &ConvergenceError{Iterations: iter, Mismatch: norm, Err: err}
		}

		jac := s.jacobian(vm, va, p, q)
		var dx mat.VecDense
		if err := dx.SolveVec(jac, mat.NewVecDense(dim, f)); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
				return model.OperatingPoint{}, &ConvergenceError{Iterations: iter, Mismatch: norm, Err: err}
			}
		}
		for _, i := range s.pvpq {
			va[i] += dx.AtVec(s.thPos[i])
		}
		for _, i := range s.pq {
			vm[i] += dx.AtVec(s.vPos[i])
		}
	}

	op := model.OperatingPoint{
		GeneratorMW: make(map[string]float64, len(s.genBus)),
		BusVoltage:  make(map[string]float64, size),
		Iterations:  iter,
	}
	for id, mw := range setpointsMW {
		op.GeneratorMW[id] = mw
	}
	op.GeneratorMW[s.slackGen] = (p[s.slack] + s.pLoad[s.slack]) * base
	for i, id := range s.busIDs {
		op.BusVoltage[id] = vm[i]
	}
	return op, nil
}

// injections computes the active and reactive power injected at every bus.
func (s *Solver) injections(vm, va []float64) (p, q []float64) {
	size := len(vm)
	p = make([]float64, size)
	q = make([]float64, size)
	for i := 0; i < size; i++ {
		for k := 0; k < size; k++ {
			gik, bik := s.g.At(i, k), s.b.At(i, k)
			if gik == 0 && bik == 0 {
				continue
			}
			sin, cos := math.Sincos(va[i] - va[k])
			p[i] += vm[i] * vm[k] * (gik*cos + bik*sin)
			q[i] += vm[i] * vm[k] * (gik*sin - bik*cos)
		}
	}
	return p, q
}

// jacobian assembles the polar power-flow Jacobian for the unknown angles
// (all non-slack buses) and magnitudes (load buses).
func (s *Solver) jacobian(vm, va, p, q []float64) *mat.Dense {
	dim := len(s.pvpq) + len(s.pq)
	jac := mat.NewDense(dim, dim, nil)
	size := len(vm)
	for i := 0; i < size; i++ {
		rowP, rowQ := s.thPos[i], s.vPos[i]
		if rowP < 0 {
			continue
		}
		for k := 0; k < size; k++ {
			colT, colV := s.thPos[k], s.vPos[k]
			gik, bik := s.g.At(i, k), s.b.At(i, k)
			var dPdT, dPdV, dQdT, dQdV float64
			if i == k {
				dPdT = -q[i] - bik*vm[i]*vm[i]
				dPdV = p[i]/vm[i] + gik*vm[i]
				dQdT = p[i] - gik*vm[i]*vm[i]
				dQdV = q[i]/vm[i] - bik*vm[i]
			} else {
				if gik == 0 && bik == 0 {
					continue
				}
				sin, cos := math.Sincos(va[i] - va[k])
				dPdT = vm[i] * vm[k] * (gik*sin - bik*cos)
				dPdV = vm[i] * (gik*cos + bik*sin)
				dQdT = -vm[i] * vm[k] * (gik*cos + bik*sin)
				dQdV = vm[i] * (gik*sin - bik*cos)
			}
			if colT >= 0 {
				jac.Set(rowP, colT, dPdT)
			}
			if colV >= 0 {
				jac.Set(rowP, colV, dPdV)
			}
			if rowQ >= 0 {
				if colT >= 0 {
					jac.Set(rowQ, colT, dQdT)
				}
				if colV >= 0 {
					jac.Set(rowQ, colV, dQdV)
				}
			}
		}
	}
	return jac
}

func maxAbs(v []float64) float64 {
	var m float64
	for _, x := range v {
		if math.IsNaN(x) {
			return x
		}
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}
