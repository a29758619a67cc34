package metrics

import (
	"math"
	"time"

	"github.com/kilianp07/moeopf/core/model"
)

// ProgressMessage is the wire form of a ProgressEvent published to message
// brokers. Best only holds the objectives with a known feasible value.
type ProgressMessage struct {
	RunID        string             `json:"run_id"`
	NFE          int                `json:"nfe"`
	ArchiveSize  int                `json:"archive_size"`
	Improvements int                `json:"improvements"`
	Diverged     int                `json:"diverged"`
	ElapsedMS    int64              `json:"elapsed_ms"`
	Best         map[string]float64 `json:"best,omitempty"`
	Final        bool               `json:"final"`
	Timestamp    time.Time          `json:"timestamp"`
}

// FrontMessage carries the archive of a final snapshot.
type FrontMessage struct {
	RunID     string           `json:"run_id"`
	NFE       int              `json:"nfe"`
	Solutions []model.Solution `json:"solutions"`
}

// SummaryMessage is the wire form of a RunSummary.
type SummaryMessage struct {
	RunID       string    `json:"run_id"`
	Status      string    `json:"status"`
	Evaluations int       `json:"evaluations"`
	Diverged    int       `json:"diverged"`
	Discarded   int       `json:"discarded"`
	ArchiveSize int       `json:"archive_size"`
	ElapsedMS   int64     `json:"elapsed_ms"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewProgressMessage converts ev.
func NewProgressMessage(ev ProgressEvent) ProgressMessage {
	msg := ProgressMessage{
		RunID:        ev.RunID,
		NFE:          ev.NFE,
		ArchiveSize:  ev.ArchiveSize,
		Improvements: ev.Improvements,
		Diverged:     ev.Diverged,
		ElapsedMS:    ev.Elapsed.Milliseconds(),
		Final:        ev.Final,
		Timestamp:    ev.Time,
	}
	for i, v := range ev.Best {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			continue
		}
		if msg.Best == nil {
			msg.Best = make(map[string]float64, model.NumObjectives)
		}
		msg.Best[model.Objective(i).String()] = v
	}
	return msg
}

// NewFrontMessage extracts the archive of ev.
func NewFrontMessage(ev ProgressEvent) FrontMessage {
	return FrontMessage{RunID: ev.RunID, NFE: ev.NFE, Solutions: ev.Archive}
}

// NewSummaryMessage converts s. Status is "ok" or "error".
func NewSummaryMessage(s RunSummary) SummaryMessage {
	status := "ok"
	if s.Err != "" {
		status = "error"
	}
	return SummaryMessage{
		RunID:       s.RunID,
		Status:      status,
		Evaluations: s.Evaluations,
		Diverged:    s.Diverged,
		Discarded:   s.Discarded,
		ArchiveSize: s.ArchiveSize,
		ElapsedMS:   s.Elapsed.Milliseconds(),
		Error:       s.Err,
		Timestamp:   s.Time,
	}
}
