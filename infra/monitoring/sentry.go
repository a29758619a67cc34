package monitoring

import (
	"context"
	"errors"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/moeopf/core/evaluate"
	coremon "github.com/kilianp07/moeopf/core/monitoring"
	"github.com/kilianp07/moeopf/core/powerflow"
)

// NewSentryMonitor returns a Monitor reporting to the Sentry project of
// cfg.DSN. Without a DSN it returns a NopMonitor.
func NewSentryMonitor(cfg coremon.Config) (coremon.Monitor, error) {
	return newSentryMonitor(cfg, nil)
}

func newSentryMonitor(cfg coremon.Config, transport sentry.Transport) (coremon.Monitor, error) {
	if !cfg.Enabled() {
		return coremon.NopMonitor{}, nil
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Release:          cfg.Release,
		ServerName:       cfg.ServerName,
		Transport:        transport,
		BeforeSend:       dropCanceled,
	})
	if err != nil {
		return nil, err
	}
	scope := sentry.NewScope()
	scope.SetTag("service", "moeopf")
	scope.SetTags(cfg.Tags)
	return &sentryMonitor{hub: sentry.NewHub(client, scope)}, nil
}

// dropCanceled discards reports of runs stopped on request.
func dropCanceled(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if hint != nil && errors.Is(hint.OriginalException, context.Canceled) {
		return nil
	}
	return event
}

type sentryMonitor struct {
	hub *sentry.Hub
}

// CaptureException reports err with tags. The module tag, when present,
// groups events of one component together; solver failures carry the
// dispatch and the convergence state as event context.
func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		if module, ok := tags["module"]; ok {
			scope.SetFingerprint([]string{"{{ default }}", module})
		}
		var diverged *evaluate.SolveDivergedError
		if errors.As(err, &diverged) {
			scope.SetContext("dispatch", sentry.Context{"setpoints_mw": diverged.X})
		}
		var conv *powerflow.ConvergenceError
		if errors.As(err, &conv) {
			scope.SetContext("powerflow", sentry.Context{"iterations": conv.Iterations, "mismatch_pu": conv.Mismatch})
		}
		s.hub.CaptureException(err)
	})
}

// Recover must be deferred directly; it reports the panic and re-panics.
func (s *sentryMonitor) Recover() {
	if r := recover(); r != nil {
		s.hub.Recover(r)
		s.hub.Flush(2 * time.Second)
		panic(r)
	}
}

func (s *sentryMonitor) Flush(timeout time.Duration) { s.hub.Flush(timeout) }
