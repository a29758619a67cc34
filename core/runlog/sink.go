package runlog

import (
	"context"
	"time"

	"github.com/kilianp07/moeopf/core/metrics"
)

// Sink appends run progress to a Store. It implements metrics.MetricsSink
// and metrics.RunRecorder.
type Sink struct {
	store   Store
	timeout time.Duration
}

// NewSink wraps store. Each append is bounded by timeout when positive.
func NewSink(store Store, timeout time.Duration) *Sink {
	return &Sink{store: store, timeout: timeout}
}

func (s *Sink) ctx() (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(context.Background(), s.timeout)
	}
	return context.WithCancel(context.Background())
}

// RecordProgress stores the archive snapshot.
func (s *Sink) RecordProgress(ev metrics.ProgressEvent) error {
	kind := KindProgress
	if ev.Final {
		kind = KindFinal
	}
	ctx, cancel := s.ctx()
	defer cancel()
	return s.store.Append(ctx, Record{
		Timestamp:    ev.Time,
		RunID:        ev.RunID,
		Kind:         kind,
		NFE:          ev.NFE,
		ArchiveSize:  ev.ArchiveSize,
		Improvements: ev.Improvements,
		Diverged:     ev.Diverged,
		ElapsedMS:    ev.Elapsed.Milliseconds(),
		Best:         bestMap(ev.Best),
		Archive:      ev.Archive,
	})
}

// RecordRun stores the run summary.
func (s *Sink) RecordRun(sum metrics.RunSummary) error {
	ctx, cancel := s.ctx()
	defer cancel()
	return s.store.Append(ctx, Record{
		Timestamp:   sum.Time,
		RunID:       sum.RunID,
		Kind:        KindRun,
		NFE:         sum.Evaluations,
		ArchiveSize: sum.ArchiveSize,
		Diverged:    sum.Diverged,
		Discarded:   sum.Discarded,
		ElapsedMS:   sum.Elapsed.Milliseconds(),
		Err:         sum.Err,
	})
}

// Close closes the store.
func (s *Sink) Close() error { return s.store.Close() }
