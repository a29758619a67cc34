package app

import (
	"fmt"

	"github.com/kilianp07/moeopf/config"
	"github.com/kilianp07/moeopf/core/evaluate"
	"github.com/kilianp07/moeopf/core/model"
	"github.com/kilianp07/moeopf/core/params"
	"github.com/kilianp07/moeopf/core/powerflow"
	"github.com/kilianp07/moeopf/core/search"
)

// Model bundles the loaded data, the network solver and the evaluation
// function built from a configuration.
type Model struct {
	Params    *params.Holder
	Network   *powerflow.Network
	Solver    *powerflow.Solver
	Problem   search.Problem
	Evaluator *evaluate.Evaluator
}

// LoadModel reads the parameter tables and the network, checks that they
// describe the same generators and buses, and builds the evaluator.
func LoadModel(cfg *config.Config) (*Model, error) {
	store, err := params.Load(cfg.Data)
	if err != nil {
		return nil, err
	}
	net, err := powerflow.LoadNetwork(cfg.Network.Path)
	if err != nil {
		return nil, err
	}
	if err := store.Validate(net.GeneratorIDs(), net.BusIDs()); err != nil {
		return nil, err
	}
	solver, err := powerflow.NewSolver(net, cfg.Network.Solver)
	if err != nil {
		return nil, err
	}
	ids := net.ControllableIDs()
	problem, err := cfg.Search.Problem(len(ids))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	base := cfg.Evaluation.BaseMVA
	if base == 0 {
		base = net.BaseMVA
	}
	holder := params.NewHolder(store)
	eval, err := evaluate.New(holder, solver, ids, problem.Bounds, base, cfg.Evaluation.SolveTimeout())
	if err != nil {
		return nil, err
	}
	return &Model{Params: holder, Network: net, Solver: solver, Problem: problem, Evaluator: eval}, nil
}

// Bounds returns the decision variable bounds keyed by generator.
func (m *Model) Bounds() map[string]model.Bound {
	out := make(map[string]model.Bound, len(m.Problem.Bounds))
	for i, id := range m.Evaluator.GeneratorIDs() {
		out[id] = m.Problem.Bounds[i]
	}
	return out
}
