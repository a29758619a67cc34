package metrics

import (
	"context"

	coremetrics "github.com/kilianp07/moeopf/core/metrics"
	"github.com/kilianp07/moeopf/infra/logger"
	"github.com/kilianp07/moeopf/internal/eventbus"
)

// StartEventCollector subscribes to the progress bus and forwards each
// snapshot to sink. Delivery is best effort: snapshots dropped by the bus
// never reach the sink. It stops when ctx is canceled or the bus closes, and
// the returned channel is closed once the collector has exited.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[coremetrics.ProgressEvent], sink coremetrics.MetricsSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := sink.RecordProgress(ev); err != nil {
					log.Warnf("live progress sink: %v", err)
				}
			}
		}
	}()
	return done
}
