// Package metrics defines the events produced by a search run and the sink
// interfaces that record them. MetricsSink receives periodic progress
// snapshots; sinks may additionally implement EvaluationRecorder or
// RunRecorder, discovered by type assertion. Several sinks are combined with
// NewMultiSink, which the factory helpers return automatically when more
// than one sink is configured.
package metrics
