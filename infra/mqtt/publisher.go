package mqtt

import (
	coremetrics "github.com/kilianp07/moeopf/core/metrics"
)

// jsonPublisher is the part of PahoClient used by ProgressPublisher.
type jsonPublisher interface {
	PublishJSON(kind, topic string, retained bool, v any) error
	Topic(parts ...string) string
}

// ProgressPublisher streams search progress to MQTT. Snapshots go to
// <prefix>/runs/<run_id>/progress; the final front and the run summary are
// retained on .../front and .../summary.
type ProgressPublisher struct {
	pub jsonPublisher
}

// NewProgressPublisher wraps a connected client.
func NewProgressPublisher(c *PahoClient) *ProgressPublisher {
	return &ProgressPublisher{pub: c}
}

// RecordProgress publishes a snapshot, and the archive when ev is final.
func (p *ProgressPublisher) RecordProgress(ev coremetrics.ProgressEvent) error {
	msg := coremetrics.NewProgressMessage(ev)
	if err := p.pub.PublishJSON("progress", p.pub.Topic("runs", ev.RunID, "progress"), ev.Final, msg); err != nil {
		return err
	}
	if !ev.Final {
		return nil
	}
	return p.pub.PublishJSON("front", p.pub.Topic("runs", ev.RunID, "front"), true, coremetrics.NewFrontMessage(ev))
}

// RecordRun publishes the retained run summary.
func (p *ProgressPublisher) RecordRun(s coremetrics.RunSummary) error {
	return p.pub.PublishJSON("summary", p.pub.Topic("runs", s.RunID, "summary"), true, coremetrics.NewSummaryMessage(s))
}
