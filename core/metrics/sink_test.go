package metrics

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/moeopf/core/factory"
	"github.com/kilianp07/moeopf/core/model"
)

type recordSink struct {
	progress, evals, runs int
	err                   error
}

func (r *recordSink) RecordProgress(ProgressEvent) error { r.progress++; return r.err }
func (r *recordSink) RecordEvaluation(EvaluationEvent) error {
	r.evals++
	return r.err
}
func (r *recordSink) RecordRun(RunSummary) error { r.runs++; return r.err }

// progressOnly implements no optional recorder.
type progressOnly struct{ n int }

func (p *progressOnly) RecordProgress(ProgressEvent) error { p.n++; return nil }

func TestMultiSinkForwards(t *testing.T) {
	a, b := &recordSink{}, &recordSink{}
	p := &progressOnly{}
	m := NewMultiSink(a, b, p)
	require.NoError(t, m.RecordProgress(ProgressEvent{}))
	require.NoError(t, m.RecordEvaluation(EvaluationEvent{}))
	require.NoError(t, m.RecordRun(RunSummary{}))
	for _, s := range []*recordSink{a, b} {
		assert.Equal(t, 1, s.progress)
		assert.Equal(t, 1, s.evals)
		assert.Equal(t, 1, s.runs)
	}
	assert.Equal(t, 1, p.n)
}

func TestMultiSinkCallsEverySinkOnError(t *testing.T) {
	boom := errors.New("boom")
	a, b := &recordSink{err: boom}, &recordSink{}
	err := NewMultiSink(a, b).RecordProgress(ProgressEvent{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, b.progress)
}

func TestNewMetricsSink(t *testing.T) {
	s, err := NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, NopSink{}, s)

	s, err = NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}})
	require.NoError(t, err)
	m, ok := s.(*MultiSink)
	require.True(t, ok)
	assert.Len(t, m.Sinks, 2)

	_, err = NewMetricsSink([]factory.ModuleConfig{{Type: "missing"}})
	assert.Error(t, err)
}

func TestConfigDecode(t *testing.T) {
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte("sinks:\n  - type: nop\n  - type: nop\n"), &cfg))
	assert.Len(t, cfg.Sinks, 2)

	var jcfg Config
	require.NoError(t, json.Unmarshal([]byte(`{"sinks":[{"type":"missing"}],"prometheus_port":"9090"}`), &jcfg))
	assert.Equal(t, "9090", jcfg.PrometheusPort)
	_, err := NewMetricsSink(jcfg.Sinks)
	assert.Error(t, err)
}

func TestOutcomeAndBest(t *testing.T) {
	feasible := model.Solution{Result: model.Result{Objectives: [3]float64{900, 0.2, 0}}}
	cheaper := model.Solution{Result: model.Result{Objectives: [3]float64{800, 0.3, 0.01}}}
	infeasible := model.Solution{Result: model.Result{Objectives: [3]float64{1, 0.01, 0}, Constraints: [1]float64{0.5}}}
	diverged := model.Solution{Diverged: true, Result: model.Result{Constraints: [1]float64{1e6}}}

	assert.Equal(t, OutcomeFeasible, OutcomeOf(feasible))
	assert.Equal(t, OutcomeInfeasible, OutcomeOf(infeasible))
	assert.Equal(t, OutcomeDiverged, OutcomeOf(diverged))

	best := BestOf([]model.Solution{feasible, cheaper, infeasible, diverged})
	assert.Equal(t, [3]float64{800, 0.2, 0}, best)

	none := BestOf([]model.Solution{infeasible})
	assert.True(t, math.IsInf(none[0], 1))
}
