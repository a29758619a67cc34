package metrics

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	coremetrics "github.com/kilianp07/moeopf/core/metrics"
)

// NATSConfig defines the connection of the NATS sink.
type NATSConfig struct {
	URL              string `json:"url"`
	Name             string `json:"name"`
	SubjectPrefix    string `json:"subject_prefix"`
	ConnectTimeoutMS int    `json:"connect_timeout_ms"`
	MaxReconnects    int    `json:"max_reconnects"`
}

// SetDefaults applies sane defaults.
func (c *NATSConfig) SetDefaults() {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.Name == "" {
		c.Name = "moeopf"
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "moeopf"
	}
	if c.ConnectTimeoutMS == 0 {
		c.ConnectTimeoutMS = 2000
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 10
	}
}

// natsConn is the part of *nats.Conn used by NATSSink.
type natsConn interface {
	Publish(subj string, data []byte) error
	Flush() error
	Drain() error
}

var natsConnect = func(url string, opts ...nats.Option) (natsConn, error) {
	return nats.Connect(url, opts...)
}

// NATSSink publishes progress snapshots and run summaries as JSON on
// <prefix>.runs.<run_id>.progress, .front and .summary.
type NATSSink struct {
	conn   natsConn
	prefix string
}

// NewNATSSink connects to the server described by cfg.
func NewNATSSink(cfg NATSConfig) (*NATSSink, error) {
	cfg.SetDefaults()
	conn, err := natsConnect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(time.Duration(cfg.ConnectTimeoutMS)*time.Millisecond),
		nats.MaxReconnects(cfg.MaxReconnects),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSSink{conn: conn, prefix: strings.TrimSuffix(cfg.SubjectPrefix, ".")}, nil
}

func (s *NATSSink) subject(runID, kind string) string {
	return strings.Join([]string{s.prefix, "runs", runID, kind}, ".")
}

func (s *NATSSink) publish(subject string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// RecordProgress publishes a snapshot, and the archive when ev is final.
func (s *NATSSink) RecordProgress(ev coremetrics.ProgressEvent) error {
	if err := s.publish(s.subject(ev.RunID, "progress"), coremetrics.NewProgressMessage(ev)); err != nil {
		return err
	}
	if !ev.Final {
		return nil
	}
	return s.publish(s.subject(ev.RunID, "front"), coremetrics.NewFrontMessage(ev))
}

// RecordRun publishes the run summary and flushes the connection.
func (s *NATSSink) RecordRun(sum coremetrics.RunSummary) error {
	if err := s.publish(s.subject(sum.RunID, "summary"), coremetrics.NewSummaryMessage(sum)); err != nil {
		return err
	}
	return s.conn.Flush()
}

// Close drains pending messages and closes the connection.
func (s *NATSSink) Close() error { return s.conn.Drain() }
