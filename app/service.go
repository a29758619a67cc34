package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/moeopf/config"
	coremetrics "github.com/kilianp07/moeopf/core/metrics"
	coremon "github.com/kilianp07/moeopf/core/monitoring"
	"github.com/kilianp07/moeopf/core/runlog"
	"github.com/kilianp07/moeopf/core/search"
	"github.com/kilianp07/moeopf/infra/logger"
	"github.com/kilianp07/moeopf/infra/metrics"
	"github.com/kilianp07/moeopf/infra/mqtt"
	"github.com/kilianp07/moeopf/infra/storage"
	"github.com/kilianp07/moeopf/internal/eventbus"
)

// runlogTimeout bounds one runtime log append.
const runlogTimeout = 5 * time.Second

const uploadTimeout = time.Minute

// Service runs one search over the configured model and publishes its
// progress and results.
type Service struct {
	cfg    *config.Config
	model  *Model
	log    logger.Logger
	sink   *coremetrics.MultiSink
	bus    *eventbus.TypedBus[coremetrics.ProgressEvent]
	client *mqtt.PahoClient
	pub    *mqtt.ProgressPublisher
	upload *storage.Uploader
}

// New loads the model and builds the configured sinks.
func New(cfg *config.Config) (*Service, error) {
	log := logger.New("service")
	m, err := LoadModel(cfg)
	if err != nil {
		return nil, err
	}

	configured, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sinks: %w", err)
	}
	sink := coremetrics.NewMultiSink(configured)

	store, err := runlog.New(cfg.RunLog)
	if err != nil {
		return nil, fmt.Errorf("runlog: %w", err)
	}
	if store != nil {
		sink.Sinks = append(sink.Sinks, runlog.NewSink(store, runlogTimeout))
	}

	svc := &Service{cfg: cfg, model: m, log: log, sink: sink, bus: eventbus.NewTyped[coremetrics.ProgressEvent]()}
	if cfg.Results.Upload.Enabled() {
		up, err := storage.NewUploader(cfg.Results.Upload)
		if err != nil {
			_ = sink.Close()
			return nil, err
		}
		svc.upload = up
	}
	if cfg.MQTT.Enabled() {
		client, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			_ = sink.Close()
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.client = client
		svc.pub = mqtt.NewProgressPublisher(client)
		sink.Sinks = append(sink.Sinks, finalOnly{svc.pub})
	}
	return svc, nil
}

// Model returns the loaded model.
func (s *Service) Model() *Model { return s.model }

// Run searches until the budget is spent, ctx ends or a stop command
// arrives, then writes the results. A stopped run still writes the partial
// Pareto set and returns the cancellation error.
func (s *Service) Run(ctx context.Context) (*search.RunResult, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if port := s.cfg.Metrics.PrometheusPort; port != "" {
		go func() {
			if err := metrics.StartPromServer(runCtx, ":"+port); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	runID := uuid.NewString()
	var live coremetrics.MetricsSink
	if s.pub != nil {
		live = liveOnly{s.pub}
	}
	collected := metrics.StartEventCollector(runCtx, s.bus, live, logger.New("collector"))
	if s.client != nil {
		remove := s.client.OnStop(runID, func(string) {
			s.log.Warnf("stop requested for run %s", runID)
			cancel()
		})
		defer remove()
	}

	driver, err := search.NewDriver(s.model.Evaluator, s.model.Problem, s.cfg.Search,
		search.WithSink(s.sink),
		search.WithProgressBus(s.bus),
		search.WithLogger(logger.New("search")),
		search.WithRunID(runID),
	)
	if err != nil {
		return nil, err
	}
	res, runErr := driver.Run(runCtx)
	cancel()
	<-collected

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		coremon.CaptureException(runErr, map[string]string{"module": "search", "run_id": runID})
	}
	if res != nil {
		files, err := WriteResults(s.cfg.Results, s.model.Evaluator.GeneratorIDs(), res)
		if err != nil {
			return res, errors.Join(runErr, err)
		}
		for _, f := range files {
			s.log.Infof("wrote %s", f)
		}
		if s.upload != nil {
			// A stopped or interrupted run still uploads its partial results.
			upCtx, cancelUp := context.WithTimeout(context.WithoutCancel(ctx), uploadTimeout)
			keys, err := s.upload.Upload(upCtx, runID, files)
			cancelUp()
			if err != nil {
				coremon.CaptureException(err, map[string]string{"module": "storage", "run_id": runID})
				return res, errors.Join(runErr, err)
			}
			s.log.Infof("uploaded %d result file(s) to %s", len(keys), s.cfg.Results.Upload.Bucket)
		}
	}
	return res, runErr
}

// Close releases the sinks, the bus and the broker connection.
func (s *Service) Close() error {
	s.bus.Close()
	err := s.sink.Close()
	if s.client != nil {
		s.client.Disconnect()
	}
	return err
}

// liveOnly forwards intermediate snapshots from the bus; the final one is
// recorded synchronously through finalOnly.
type liveOnly struct{ pub *mqtt.ProgressPublisher }

func (l liveOnly) RecordProgress(ev coremetrics.ProgressEvent) error {
	if ev.Final {
		return nil
	}
	return l.pub.RecordProgress(ev)
}

// finalOnly records the final snapshot and the run summary.
type finalOnly struct{ pub *mqtt.ProgressPublisher }

func (f finalOnly) RecordProgress(ev coremetrics.ProgressEvent) error {
	if !ev.Final {
		return nil
	}
	return f.pub.RecordProgress(ev)
}

func (f finalOnly) RecordRun(sum coremetrics.RunSummary) error { return f.pub.RecordRun(sum) }
