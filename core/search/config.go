package search

import (
	"fmt"
	"math"
	"runtime"

	"github.com/kilianp07/moeopf/core/model"
)

// DivergedPolicy decides what happens to a candidate whose solve diverged.
type DivergedPolicy string

const (
	// PolicyPenalize keeps the candidate with every objective and constraint
	// set to the configured penalty.
	PolicyPenalize DivergedPolicy = "penalize"
	// PolicyDiscard drops the candidate. The evaluation still counts.
	PolicyDiscard DivergedPolicy = "discard"
)

// Config defines the search settings loaded from configuration.
type Config struct {
	// Bounds holds one interval per decision variable in MW. When empty
	// every variable uses DefaultBound.
	Bounds       []model.Bound `json:"bounds"`
	DefaultBound model.Bound   `json:"default_bound"`
	// Epsilons sets the archive resolution of each objective.
	Epsilons []float64 `json:"epsilons"`

	MaxEvaluations        int   `json:"max_evaluations"`
	InitialPopulationSize int   `json:"initial_population_size"`
	Frequency             int   `json:"frequency"`
	Seed                  int64 `json:"seed"`

	// Workers bounds concurrent evaluations; BatchSize is the number of
	// offspring bred from one population state. Results only depend on
	// BatchSize, never on Workers.
	Workers   int `json:"workers"`
	BatchSize int `json:"batch_size"`

	DivergedPolicy  DivergedPolicy `json:"diverged_policy"`
	DivergedPenalty float64        `json:"diverged_penalty"`

	CrossoverRate         float64 `json:"crossover_rate"`
	CrossoverDistribution float64 `json:"crossover_distribution_index"`
	// MutationRate is the per-variable probability; zero selects 1/n.
	MutationRate         float64 `json:"mutation_rate"`
	MutationDistribution float64 `json:"mutation_distribution_index"`
	TournamentSize       int     `json:"tournament_size"`
}

// SetDefaults applies the settings of the reference run.
func (c *Config) SetDefaults() {
	if c.DefaultBound == (model.Bound{}) {
		c.DefaultBound = model.Bound{Min: 5, Max: 150}
	}
	if len(c.Epsilons) == 0 {
		c.Epsilons = []float64{0.1, 0.0001, 0.0001}
	}
	if c.MaxEvaluations == 0 {
		c.MaxEvaluations = 20000
	}
	if c.InitialPopulationSize == 0 {
		c.InitialPopulationSize = 100
	}
	if c.Frequency == 0 {
		c.Frequency = 1000
	}
	if c.Seed == 0 {
		c.Seed = 1008
	}
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.BatchSize == 0 {
		c.BatchSize = 16
	}
	if c.DivergedPolicy == "" {
		c.DivergedPolicy = PolicyPenalize
	}
	if c.DivergedPenalty == 0 {
		c.DivergedPenalty = 1e6
	}
	if c.CrossoverRate == 0 {
		c.CrossoverRate = 1
	}
	if c.CrossoverDistribution == 0 {
		c.CrossoverDistribution = 15
	}
	if c.MutationDistribution == 0 {
		c.MutationDistribution = 20
	}
	if c.TournamentSize == 0 {
		c.TournamentSize = 2
	}
}

// Validate checks the settings after defaults are applied.
func (c Config) Validate() error {
	for i, b := range append([]model.Bound{c.DefaultBound}, c.Bounds...) {
		if !isFinite(b.Min) || !isFinite(b.Max) || b.Min > b.Max {
			if i == 0 {
				return fmt.Errorf("search.default_bound [%v,%v] is invalid", b.Min, b.Max)
			}
			return fmt.Errorf("search.bounds[%d] [%v,%v] is invalid", i-1, b.Min, b.Max)
		}
	}
	if len(c.Epsilons) != model.NumObjectives {
		return fmt.Errorf("search.epsilons needs %d values, got %d", model.NumObjectives, len(c.Epsilons))
	}
	for i, e := range c.Epsilons {
		if !(e > 0) || !isFinite(e) {
			return fmt.Errorf("search.epsilons[%d] must be positive, got %v", i, e)
		}
	}
	switch {
	case c.InitialPopulationSize < 2:
		return fmt.Errorf("search.initial_population_size must be at least 2")
	case c.MaxEvaluations < c.InitialPopulationSize:
		return fmt.Errorf("search.max_evaluations (%d) is below the initial population (%d)", c.MaxEvaluations, c.InitialPopulationSize)
	case c.Frequency <= 0:
		return fmt.Errorf("search.frequency must be positive")
	case c.Workers <= 0:
		return fmt.Errorf("search.workers must be positive")
	case c.BatchSize <= 0:
		return fmt.Errorf("search.batch_size must be positive")
	case c.DivergedPolicy != PolicyPenalize && c.DivergedPolicy != PolicyDiscard:
		return fmt.Errorf("unknown search.diverged_policy %q", c.DivergedPolicy)
	case !(c.DivergedPenalty > 0) || !isFinite(c.DivergedPenalty):
		return fmt.Errorf("search.diverged_penalty must be positive")
	case c.CrossoverRate < 0 || c.CrossoverRate > 1:
		return fmt.Errorf("search.crossover_rate must lie in [0,1]")
	case c.MutationRate < 0 || c.MutationRate > 1:
		return fmt.Errorf("search.mutation_rate must lie in [0,1]")
	case c.CrossoverDistribution <= 0 || c.MutationDistribution <= 0:
		return fmt.Errorf("search distribution indexes must be positive")
	case c.TournamentSize < 1:
		return fmt.Errorf("search.tournament_size must be at least 1")
	}
	return nil
}

// Problem builds the problem definition for n decision variables.
func (c Config) Problem(n int) (Problem, error) {
	bounds := c.Bounds
	if len(bounds) == 0 {
		bounds = make([]model.Bound, n)
		for i := range bounds {
			bounds[i] = c.DefaultBound
		}
	}
	p := Problem{Bounds: append([]model.Bound(nil), bounds...)}
	copy(p.Epsilons[:], c.Epsilons)
	return p, p.Validate(n)
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
