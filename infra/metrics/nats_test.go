package metrics

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/moeopf/core/factory"
	coremetrics "github.com/kilianp07/moeopf/core/metrics"
	"github.com/kilianp07/moeopf/core/model"
)

type natsMsg struct {
	subject string
	data    []byte
}

type fakeNATS struct {
	msgs       []natsMsg
	publishErr error
	flushed    int
	drained    bool
}

func (f *fakeNATS) Publish(subj string, data []byte) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.msgs = append(f.msgs, natsMsg{subj, data})
	return nil
}
func (f *fakeNATS) Flush() error { f.flushed++; return nil }
func (f *fakeNATS) Drain() error { f.drained = true; return nil }

func useFakeNATS(t *testing.T, f *fakeNATS) *string {
	t.Helper()
	var url string
	prev := natsConnect
	natsConnect = func(u string, _ ...nats.Option) (natsConn, error) {
		url = u
		return f, nil
	}
	t.Cleanup(func() { natsConnect = prev })
	return &url
}

func TestNATSSinkProgress(t *testing.T) {
	f := &fakeNATS{}
	url := useFakeNATS(t, f)
	s, err := NewNATSSink(NATSConfig{SubjectPrefix: "grid."})
	require.NoError(t, err)
	assert.Equal(t, nats.DefaultURL, *url)

	ev := coremetrics.ProgressEvent{RunID: "r1", NFE: 200, Best: [model.NumObjectives]float64{math.Inf(1), 0.2, 0.01}}
	require.NoError(t, s.RecordProgress(ev))
	require.Len(t, f.msgs, 1)
	assert.Equal(t, "grid.runs.r1.progress", f.msgs[0].subject)

	var got coremetrics.ProgressMessage
	require.NoError(t, json.Unmarshal(f.msgs[0].data, &got))
	assert.Equal(t, 200, got.NFE)
	assert.Equal(t, map[string]float64{"emission": 0.2, "voltage_violation": 0.01}, got.Best)

	ev.Final = true
	ev.Archive = []model.Solution{{X: []float64{1, 2}}}
	require.NoError(t, s.RecordProgress(ev))
	require.Len(t, f.msgs, 3)
	assert.Equal(t, "grid.runs.r1.front", f.msgs[2].subject)
}

func TestNATSSinkRunAndClose(t *testing.T) {
	f := &fakeNATS{}
	useFakeNATS(t, f)
	s, err := NewNATSSink(NATSConfig{URL: "nats://example:4222"})
	require.NoError(t, err)
	require.NoError(t, s.RecordRun(coremetrics.RunSummary{RunID: "r2", Evaluations: 9, Err: "boom"}))
	require.Len(t, f.msgs, 1)
	assert.Equal(t, "moeopf.runs.r2.summary", f.msgs[0].subject)
	var got coremetrics.SummaryMessage
	require.NoError(t, json.Unmarshal(f.msgs[0].data, &got))
	assert.Equal(t, "error", got.Status)
	assert.Equal(t, 1, f.flushed)
	require.NoError(t, s.Close())
	assert.True(t, f.drained)
}

func TestNATSSinkErrors(t *testing.T) {
	boom := errors.New("down")
	prev := natsConnect
	natsConnect = func(string, ...nats.Option) (natsConn, error) { return nil, boom }
	_, err := NewNATSSink(NATSConfig{})
	natsConnect = prev
	assert.ErrorIs(t, err, boom)

	f := &fakeNATS{publishErr: boom}
	useFakeNATS(t, f)
	s, err := NewNATSSink(NATSConfig{})
	require.NoError(t, err)
	assert.ErrorIs(t, s.RecordProgress(coremetrics.ProgressEvent{RunID: "r"}), boom)
}

func TestNATSSinkFromFactory(t *testing.T) {
	f := &fakeNATS{}
	url := useFakeNATS(t, f)
	sink, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nats", Conf: map[string]any{"url": "nats://q:4222", "subject_prefix": "x"}}})
	require.NoError(t, err)
	assert.IsType(t, &NATSSink{}, sink)
	assert.Equal(t, "nats://q:4222", *url)
}
