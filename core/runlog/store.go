// Package runlog persists the runtime history of search runs: archive
// snapshots taken every Frequency evaluations, the final archive and the
// run summary.
package runlog

import (
	"context"
	"math"
	"time"

	"github.com/kilianp07/moeopf/core/model"
)

// Kind distinguishes the records of a run.
type Kind string

const (
	KindProgress Kind = "progress"
	KindFinal    Kind = "final"
	KindRun      Kind = "run"
)

// Record captures one snapshot of a run.
type Record struct {
	Timestamp    time.Time `json:"timestamp"`
	RunID        string    `json:"run_id"`
	Kind         Kind      `json:"kind"`
	NFE          int       `json:"nfe"`
	ArchiveSize  int       `json:"archive_size"`
	Improvements int       `json:"improvements,omitempty"`
	Diverged     int       `json:"diverged"`
	Discarded    int       `json:"discarded,omitempty"`
	ElapsedMS    int64     `json:"elapsed_ms"`
	// Best maps objective names to the lowest feasible value found; an
	// objective is absent while no feasible solution is known.
	Best    map[string]float64 `json:"best,omitempty"`
	Archive []model.Solution   `json:"archive,omitempty"`
	Err     string             `json:"error,omitempty"`
}

// Query defines filters for retrieving records. Zero values match all.
type Query struct {
	RunID  string
	Kind   Kind
	MinNFE int
	// MaxNFE is inclusive; zero means unbounded.
	MaxNFE int
}

func (q Query) match(r Record) bool {
	if q.RunID != "" && r.RunID != q.RunID {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	if r.NFE < q.MinNFE {
		return false
	}
	if q.MaxNFE > 0 && r.NFE > q.MaxNFE {
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// bestMap keeps the finite entries of best keyed by objective name.
func bestMap(best [model.NumObjectives]float64) map[string]float64 {
	m := make(map[string]float64, len(best))
	for i, v := range best {
		if !math.IsInf(v, 0) && !math.IsNaN(v) {
			m[model.Objective(i).String()] = v
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
