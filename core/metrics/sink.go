package metrics

import (
	"errors"
	"math"
)

var posInf = math.Inf(1)

// MetricsSink records run progress for observability purposes.
type MetricsSink interface {
	RecordProgress(ev ProgressEvent) error
}

// EvaluationRecorder is implemented by sinks recording every evaluation.
type EvaluationRecorder interface {
	RecordEvaluation(ev EvaluationEvent) error
}

// RunRecorder is implemented by sinks recording the end of a run.
type RunRecorder interface {
	RecordRun(s RunSummary) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordProgress(ProgressEvent) error     { return nil }
func (NopSink) RecordEvaluation(EvaluationEvent) error { return nil }
func (NopSink) RecordRun(RunSummary) error             { return nil }

// MultiSink fans events out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordProgress forwards the snapshot to all sinks. Every sink is called;
// the returned error joins the individual failures.
func (m *MultiSink) RecordProgress(ev ProgressEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordProgress(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordEvaluation forwards to the sinks implementing EvaluationRecorder.
func (m *MultiSink) RecordEvaluation(ev EvaluationEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(EvaluationRecorder); ok {
			if err := rec.RecordEvaluation(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordRun forwards to the sinks implementing RunRecorder.
func (m *MultiSink) RecordRun(s RunSummary) error {
	var errs []error
	for _, sk := range m.Sinks {
		if rec, ok := sk.(RunRecorder); ok {
			if err := rec.RecordRun(s); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink implementing io.Closer.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
