package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/moeopf/core/factory"
	coremetrics "github.com/kilianp07/moeopf/core/metrics"
	"github.com/kilianp07/moeopf/internal/eventbus"
)

type progressSink struct {
	mu  sync.Mutex
	got []int
}

func (p *progressSink) RecordProgress(ev coremetrics.ProgressEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, ev.NFE)
	return nil
}

func TestStartEventCollector(t *testing.T) {
	bus := eventbus.NewTyped[coremetrics.ProgressEvent]()
	sink := &progressSink{}
	done := StartEventCollector(context.Background(), bus, sink, nil)

	// wait for the subscription before publishing
	require.Eventually(t, func() bool {
		bus.Publish(coremetrics.ProgressEvent{NFE: 1})
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.got) > 0
	}, time.Second, 10*time.Millisecond)
	bus.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop on bus close")
	}
}

func TestStartEventCollectorStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := eventbus.NewTyped[coremetrics.ProgressEvent]()
	done := StartEventCollector(ctx, bus, &progressSink{}, nil)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop on cancel")
	}

	closed := StartEventCollector(ctx, nil, nil, nil)
	_, ok := <-closed
	assert.False(t, ok)
}

func TestBuiltinSinkFactories(t *testing.T) {
	s, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "prometheus"}})
	require.NoError(t, err)
	m, ok := s.(*coremetrics.MultiSink)
	require.True(t, ok)
	assert.IsType(t, &PromSink{}, m.Sinks[1])

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	s, err = coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "influx", Conf: map[string]any{
		"url": srv.URL, "token": "t", "org": "o", "bucket": "b",
	}}})
	require.NoError(t, err)
	assert.IsType(t, coremetrics.NopSink{}, s)
}

func TestPromHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, sink.RecordProgress(coremetrics.ProgressEvent{NFE: 42}))

	srv := httptest.NewServer(NewPromHandler(reg))
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "moeopf_search_nfe 42")
}
