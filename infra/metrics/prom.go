package metrics

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/moeopf/core/metrics"
	"github.com/kilianp07/moeopf/core/model"
)

// PromSink records search activity in Prometheus metrics.
type PromSink struct {
	evaluations *prometheus.CounterVec
	duration    prometheus.Histogram
	nfe         prometheus.Gauge
	archive     prometheus.Gauge
	best        *prometheus.GaugeVec
	runs        *prometheus.CounterVec
}

// NewPromSink registers search metrics on the default Prometheus registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moeopf_evaluations_total",
			Help: "Evaluations of the dispatch function by outcome",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "moeopf_evaluation_duration_seconds",
			Help:    "Wall time of one evaluation including the power flow solve",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
		nfe: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "moeopf_search_nfe",
			Help: "Evaluations spent by the current run",
		}),
		archive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "moeopf_archive_size",
			Help: "Solutions in the epsilon archive",
		}),
		best: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "moeopf_archive_best",
			Help: "Lowest feasible value of each objective in the archive",
		}, []string{"objective"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moeopf_runs_total",
			Help: "Finished search runs by status",
		}, []string{"status"}),
	}
	var err error
	if s.evaluations, err = register(reg, s.evaluations); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.nfe, err = register(reg, s.nfe); err != nil {
		return nil, err
	}
	if s.archive, err = register(reg, s.archive); err != nil {
		return nil, err
	}
	if s.best, err = register(reg, s.best); err != nil {
		return nil, err
	}
	if s.runs, err = register(reg, s.runs); err != nil {
		return nil, err
	}
	return s, nil
}

// register adds c to reg or returns the collector registered before it.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordEvaluation counts one evaluation and observes its duration.
func (s *PromSink) RecordEvaluation(ev coremetrics.EvaluationEvent) error {
	s.evaluations.WithLabelValues(string(ev.Outcome)).Inc()
	s.duration.Observe(ev.Duration.Seconds())
	return nil
}

// RecordProgress updates the run gauges.
func (s *PromSink) RecordProgress(ev coremetrics.ProgressEvent) error {
	s.nfe.Set(float64(ev.NFE))
	s.archive.Set(float64(ev.ArchiveSize))
	for i, v := range ev.Best {
		if math.IsInf(v, 0) {
			continue
		}
		s.best.WithLabelValues(model.Objective(i).String()).Set(v)
	}
	return nil
}

// RecordRun counts a finished run.
func (s *PromSink) RecordRun(sum coremetrics.RunSummary) error {
	status := "ok"
	if sum.Err != "" {
		status = "error"
	}
	s.runs.WithLabelValues(status).Inc()
	return nil
}
