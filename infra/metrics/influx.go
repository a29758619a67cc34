package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/moeopf/core/metrics"
	"github.com/kilianp07/moeopf/core/model"
	"github.com/kilianp07/moeopf/infra/logger"
)

// InfluxSink writes progress snapshots and run summaries to an InfluxDB
// instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordProgress writes one search_progress point.
func (s *InfluxSink) RecordProgress(ev coremetrics.ProgressEvent) error {
	p := write.NewPointWithMeasurement("search_progress").
		AddTag("run_id", ev.RunID).
		AddTag("final", strconv.FormatBool(ev.Final)).
		AddField("nfe", ev.NFE).
		AddField("archive_size", ev.ArchiveSize).
		AddField("improvements", ev.Improvements).
		AddField("diverged", ev.Diverged).
		AddField("elapsed_s", round3(ev.Elapsed.Seconds())).
		SetTime(ev.Time)
	for i, v := range ev.Best {
		if !math.IsInf(v, 0) && !math.IsNaN(v) {
			p.AddField("best_"+model.Objective(i).String(), v)
		}
	}
	return s.write(p)
}

// RecordRun writes one search_run point.
func (s *InfluxSink) RecordRun(sum coremetrics.RunSummary) error {
	status := "ok"
	if sum.Err != "" {
		status = "error"
	}
	p := write.NewPointWithMeasurement("search_run").
		AddTag("run_id", sum.RunID).
		AddTag("status", status).
		AddField("evaluations", sum.Evaluations).
		AddField("diverged", sum.Diverged).
		AddField("discarded", sum.Discarded).
		AddField("archive_size", sum.ArchiveSize).
		AddField("elapsed_s", round3(sum.Elapsed.Seconds())).
		SetTime(sum.Time)
	return s.write(p)
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
