package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/moeopf/core/evaluate"
	"github.com/kilianp07/moeopf/core/logger"
	"github.com/kilianp07/moeopf/core/metrics"
	"github.com/kilianp07/moeopf/core/model"
	"github.com/kilianp07/moeopf/internal/eventbus"
)

// RunResult summarizes a finished or interrupted run.
type RunResult struct {
	RunID string `json:"run_id"`
	Seed  int64  `json:"seed"`
	// Archive is sorted by increasing cost.
	Archive      []model.Solution `json:"archive"`
	Evaluations  int              `json:"evaluations"`
	Diverged     int              `json:"diverged"`
	Discarded    int              `json:"discarded"`
	Improvements int              `json:"improvements"`
	Elapsed      time.Duration    `json:"elapsed"`
}

// Driver runs an epsilon-dominance evolutionary search over an Evaluator.
type Driver struct {
	eval    Evaluator
	problem Problem
	cfg     Config
	ops     operators
	sink    metrics.MetricsSink
	bus     *eventbus.TypedBus[metrics.ProgressEvent]
	log     logger.Logger
	runID   string
}

// Option customizes a Driver.
type Option func(*Driver)

// WithSink records progress, evaluations and the run summary synchronously.
func WithSink(s metrics.MetricsSink) Option { return func(d *Driver) { d.sink = s } }

// WithProgressBus publishes progress snapshots for live observers.
func WithProgressBus(b *eventbus.TypedBus[metrics.ProgressEvent]) Option {
	return func(d *Driver) { d.bus = b }
}

// WithLogger sets the driver logger.
func WithLogger(l logger.Logger) Option { return func(d *Driver) { d.log = l } }

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option { return func(d *Driver) { d.runID = id } }

// NewDriver validates the settings and returns a Driver. cfg must have its
// defaults applied.
func NewDriver(eval Evaluator, p Problem, cfg Config, opts ...Option) (*Driver, error) {
	if eval == nil {
		return nil, errors.New("search: nil evaluator")
	}
	if p.Variables() == 0 {
		return nil, errors.New("search: problem has no decision variables")
	}
	if err := p.Validate(p.Variables()); err != nil {
		return nil, err
	}
	if dim, ok := eval.(interface{ Dimension() int }); ok && dim.Dimension() != p.Variables() {
		return nil, fmt.Errorf("search: evaluator expects %d variables, problem has %d", dim.Dimension(), p.Variables())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Driver{eval: eval, problem: p, cfg: cfg, ops: newOperators(p, cfg)}
	for _, o := range opts {
		o(d)
	}
	if d.sink == nil {
		d.sink = metrics.NopSink{}
	}
	d.log = logger.OrNop(d.log)
	return d, nil
}

// state is the mutable part of one run. It is only touched by the goroutine
// calling Run.
type state struct {
	runID        string
	start        time.Time
	rng          *rand.Rand
	population   []model.Solution
	archive      *Archive
	nfe          int
	diverged     int
	discarded    int
	improvements int
}

// candidate is the outcome of one concurrent evaluation.
type candidate struct {
	x   []float64
	res model.Result
	err error
	dur time.Duration
}

// Run searches until the evaluation budget is spent or ctx ends. On
// cancellation it returns the partial result together with ctx's error; any
// evaluation error other than a divergence aborts the run.
func (d *Driver) Run(ctx context.Context) (*RunResult, error) {
	st := &state{
		runID:   d.runID,
		start:   time.Now(),
		rng:     rand.New(rand.NewSource(d.cfg.Seed)),
		archive: NewArchive(d.problem.Epsilons),
	}
	if st.runID == "" {
		st.runID = uuid.NewString()
	}
	d.log.Infow("search started", map[string]any{
		"run_id": st.runID, "seed": d.cfg.Seed, "max_evaluations": d.cfg.MaxEvaluations,
		"population": d.cfg.InitialPopulationSize, "workers": d.cfg.Workers,
	})

	err := d.loop(ctx, st)
	res := d.finish(st, err)
	return res, err
}

func (d *Driver) loop(ctx context.Context, st *state) error {
	initial := make([][]float64, d.cfg.InitialPopulationSize)
	for i := range initial {
		initial[i] = d.ops.random(st.rng)
	}
	if err := d.step(ctx, st, initial); err != nil {
		return err
	}
	for st.nfe < d.cfg.MaxEvaluations {
		n := min(d.cfg.BatchSize, d.cfg.MaxEvaluations-st.nfe)
		xs := make([][]float64, n)
		for i := range xs {
			xs[i] = d.breed(st)
		}
		if err := d.step(ctx, st, xs); err != nil {
			return err
		}
	}
	return nil
}

// breed produces one offspring from a population parent and an archive
// parent. While either set is empty it samples the space uniformly.
func (d *Driver) breed(st *state) []float64 {
	if len(st.population) == 0 || st.archive.Len() == 0 {
		return d.ops.random(st.rng)
	}
	p1 := d.ops.tournamentSelect(st.population, st.rng)
	p2 := st.archive.pick(st.rng.Intn(st.archive.Len()))
	child := d.ops.sbx(p1.X, p2.X, st.rng)
	d.ops.mutate(child, st.rng)
	return child
}

// step evaluates xs concurrently and then folds the results into the state
// in order.
func (d *Driver) step(ctx context.Context, st *state, xs [][]float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out := make([]candidate, len(xs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for i, x := range xs {
		g.Go(func() error {
			t0 := time.Now()
			res, err := d.eval.Evaluate(gctx, x)
			out[i] = candidate{x: x, res: res, err: err, dur: time.Since(t0)}
			if err != nil && !evaluate.IsDiverged(err) {
				return err
			}
			return nil
		})
	}
	werr := g.Wait()
	// A batch interrupted by cancellation is dropped as a whole.
	if err := ctx.Err(); err != nil {
		return err
	}
	if werr != nil {
		return fmt.Errorf("search: evaluation %d: %w", st.nfe+1, werr)
	}
	for _, c := range out {
		d.absorb(st, c)
	}
	return nil
}

func (d *Driver) absorb(st *state, c candidate) {
	st.nfe++
	sol := model.Solution{X: c.x, Result: c.res}
	if c.err != nil {
		st.diverged++
		sol = d.penalized(c.x)
		d.log.Debugw("diverged candidate", map[string]any{"run_id": st.runID, "nfe": st.nfe, "x": c.x, "error": c.err.Error()})
	}
	if rec, ok := d.sink.(metrics.EvaluationRecorder); ok {
		if err := rec.RecordEvaluation(metrics.EvaluationEvent{
			RunID: st.runID, NFE: st.nfe, X: c.x, Result: sol.Result,
			Outcome: metrics.OutcomeOf(sol), Duration: c.dur, Time: time.Now(),
		}); err != nil {
			d.log.Warnf("record evaluation: %v", err)
		}
	}
	if sol.Diverged && d.cfg.DivergedPolicy == PolicyDiscard {
		st.discarded++
	} else {
		d.acceptPopulation(st, sol)
		if st.archive.Add(sol) {
			st.improvements++
		}
	}
	// The last evaluation is reported once, by the final snapshot.
	if st.nfe%d.cfg.Frequency == 0 && st.nfe < d.cfg.MaxEvaluations {
		d.progress(st, false)
	}
}

func (d *Driver) penalized(x []float64) model.Solution {
	s := model.Solution{X: x, Diverged: true}
	for i := range s.Result.Objectives {
		s.Result.Objectives[i] = d.cfg.DivergedPenalty
	}
	for i := range s.Result.Constraints {
		s.Result.Constraints[i] = d.cfg.DivergedPenalty
	}
	return s
}

// acceptPopulation inserts s into the steady-state population: it replaces
// a random member it dominates, is rejected when a member dominates it, and
// replaces a random member otherwise.
func (d *Driver) acceptPopulation(st *state, s model.Solution) {
	if len(st.population) < d.cfg.InitialPopulationSize {
		st.population = append(st.population, s)
		return
	}
	var dominated []int
	rejected := false
	for i, m := range st.population {
		switch constraintCompare(s, m) {
		case -1:
			dominated = append(dominated, i)
		case 1:
			rejected = true
		}
	}
	switch {
	case len(dominated) > 0:
		st.population[dominated[st.rng.Intn(len(dominated))]] = s
	case !rejected:
		st.population[st.rng.Intn(len(st.population))] = s
	}
}

func (d *Driver) snapshot(st *state, final bool) metrics.ProgressEvent {
	archive := st.archive.Solutions()
	return metrics.ProgressEvent{
		RunID:        st.runID,
		NFE:          st.nfe,
		ArchiveSize:  len(archive),
		Improvements: st.improvements,
		Diverged:     st.diverged,
		Elapsed:      time.Since(st.start),
		Best:         metrics.BestOf(archive),
		Archive:      archive,
		Final:        final,
		Time:         time.Now(),
	}
}

func (d *Driver) progress(st *state, final bool) {
	ev := d.snapshot(st, final)
	if err := d.sink.RecordProgress(ev); err != nil {
		d.log.Warnf("record progress: %v", err)
	}
	if d.bus != nil {
		d.bus.Publish(ev)
	}
	d.log.Infow("search progress", map[string]any{
		"run_id": st.runID, "nfe": ev.NFE, "archive": ev.ArchiveSize,
		"improvements": ev.Improvements, "diverged": ev.Diverged, "final": final,
	})
}

func (d *Driver) finish(st *state, runErr error) *RunResult {
	d.progress(st, true)
	res := &RunResult{
		RunID:        st.runID,
		Seed:         d.cfg.Seed,
		Archive:      st.archive.Solutions(),
		Evaluations:  st.nfe,
		Diverged:     st.diverged,
		Discarded:    st.discarded,
		Improvements: st.improvements,
		Elapsed:      time.Since(st.start),
	}
	sort.SliceStable(res.Archive, func(i, j int) bool {
		return res.Archive[i].Result.Cost() < res.Archive[j].Result.Cost()
	})
	if rec, ok := d.sink.(metrics.RunRecorder); ok {
		sum := metrics.RunSummary{
			RunID: res.RunID, Evaluations: res.Evaluations, Diverged: res.Diverged,
			Discarded: res.Discarded, ArchiveSize: len(res.Archive), Elapsed: res.Elapsed, Time: time.Now(),
		}
		if runErr != nil {
			sum.Err = runErr.Error()
		}
		if err := rec.RecordRun(sum); err != nil {
			d.log.Warnf("record run: %v", err)
		}
	}
	if runErr != nil {
		d.log.Warnf("search %s stopped after %d evaluations: %v", res.RunID, res.Evaluations, runErr)
	} else {
		d.log.Infof("search %s finished: %d evaluations, %d archived, %d diverged", res.RunID, res.Evaluations, len(res.Archive), res.Diverged)
	}
	return res
}
