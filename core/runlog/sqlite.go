package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/moeopf/core/model"
)

// SQLiteStore persists records to a SQLite database. Final records also
// store their archive row by row in the solutions table.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `CREATE TABLE IF NOT EXISTS run_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ts INTEGER,
    run_id TEXT,
    kind TEXT,
    nfe INTEGER,
    record TEXT
);
CREATE INDEX IF NOT EXISTS run_logs_run ON run_logs (run_id, nfe);
CREATE TABLE IF NOT EXISTS solutions (
    run_id TEXT,
    idx INTEGER,
    x TEXT,
    cost REAL,
    emission REAL,
    voltage_violation REAL,
    generation_violation REAL,
    PRIMARY KEY (run_id, idx)
);`

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the record, and for a final record its archive, in one
// transaction.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO run_logs (ts, run_id, kind, nfe, record) VALUES (?, ?, ?, ?, ?)`,
		rec.Timestamp.UnixMilli(), rec.RunID, string(rec.Kind), rec.NFE, string(b)); err != nil {
		return err
	}
	if rec.Kind == KindFinal {
		if err := insertSolutions(ctx, tx, rec.RunID, rec.Archive); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertSolutions(ctx context.Context, tx *sql.Tx, runID string, archive []model.Solution) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM solutions WHERE run_id = ?`, runID); err != nil {
		return err
	}
	for i, sol := range archive {
		x, err := json.Marshal(sol.X)
		if err != nil {
			return err
		}
		r := sol.Result
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO solutions (run_id, idx, x, cost, emission, voltage_violation, generation_violation) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, i, string(x), r.Cost(), r.Emission(), r.VoltageViolation(), r.GenerationViolation()); err != nil {
			return fmt.Errorf("insert solution %d: %w", i, err)
		}
	}
	return nil
}

// Query returns records matching q ordered by insertion.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Record, error) {
	var args []any
	query := `SELECT record FROM run_logs WHERE 1=1`
	if q.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, q.RunID)
	}
	if q.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(q.Kind))
	}
	if q.MinNFE > 0 {
		query += ` AND nfe >= ?`
		args = append(args, q.MinNFE)
	}
	if q.MaxNFE > 0 {
		query += ` AND nfe <= ?`
		args = append(args, q.MaxNFE)
	}
	query += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Solutions returns the final archive of runID in stored order.
func (s *SQLiteStore) Solutions(ctx context.Context, runID string) ([]model.Solution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT x, cost, emission, voltage_violation, generation_violation FROM solutions WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Solution
	for rows.Next() {
		var (
			x   string
			sol model.Solution
			r   = &sol.Result
		)
		if err := rows.Scan(&x, &r.Objectives[model.ObjectiveCost], &r.Objectives[model.ObjectiveEmission],
			&r.Objectives[model.ObjectiveVoltage], &r.Constraints[0]); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(x), &sol.X); err != nil {
			return nil, fmt.Errorf("unmarshal x: %w", err)
		}
		res = append(res, sol)
	}
	return res, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
