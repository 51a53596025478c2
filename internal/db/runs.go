package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run ID has no row.
var ErrRunNotFound = errors.New("run not found")

// Run is one filtering run against a map.
type Run struct {
	RunID      string
	MapName    string
	Rows       int
	Cols       int
	PHit       float64
	PMiss      float64
	Blurring   float64
	StartedAt  time.Time
	FinishedAt *time.Time // nil while the run is in progress
	Steps      int
}

// Step summarizes the belief grid after one sense or move.
type Step struct {
	RunID           string
	Seq             int
	Kind            string // "sense" or "move"
	Observation     string // sense only
	DY, DX          int    // move only
	PeakRow         int
	PeakCol         int
	PeakProbability float64
	Entropy         float64
	RecordedAt      time.Time
}

// StartRun inserts a new run and returns its generated ID. A zero
// StartedAt is replaced with the current time.
func (db *DB) StartRun(r Run) (string, error) {
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	_, err := db.Exec(
		`INSERT INTO runs (run_id, map_name, grid_rows, grid_cols, p_hit, p_miss, blurring, started_unix_nanos)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.MapName, r.Rows, r.Cols, r.PHit, r.PMiss, r.Blurring, r.StartedAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return r.RunID, nil
}

// RecordStep stores one step summary.
func (db *DB) RecordStep(s Step) error {
	if s.RecordedAt.IsZero() {
		s.RecordedAt = time.Now()
	}
	var obs sql.NullString
	var dy, dx sql.NullInt64
	if s.Kind == "move" {
		dy = sql.NullInt64{Int64: int64(s.DY), Valid: true}
		dx = sql.NullInt64{Int64: int64(s.DX), Valid: true}
	} else {
		obs = sql.NullString{String: s.Observation, Valid: true}
	}
	_, err := db.Exec(
		`INSERT INTO steps (run_id, seq, kind, observation, dy, dx, peak_row, peak_col,
			peak_probability, entropy, recorded_unix_nanos)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RunID, s.Seq, s.Kind, obs, dy, dx, s.PeakRow, s.PeakCol,
		s.PeakProbability, s.Entropy, s.RecordedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert step %d of run %s: %w", s.Seq, s.RunID, err)
	}
	return nil
}

// FinishRun marks a run complete with its final step count.
func (db *DB) FinishRun(runID string, steps int) error {
	res, err := db.Exec(
		`UPDATE runs SET finished_unix_nanos = ?, steps = ? WHERE run_id = ?`,
		time.Now().UnixNano(), steps, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// GetRun loads a run by ID.
func (db *DB) GetRun(runID string) (*Run, error) {
	var (
		r        Run
		started  int64
		finished sql.NullInt64
	)
	err := db.QueryRow(
		`SELECT run_id, map_name, grid_rows, grid_cols, p_hit, p_miss, blurring,
			started_unix_nanos, finished_unix_nanos, steps
		 FROM runs WHERE run_id = ?`, runID,
	).Scan(&r.RunID, &r.MapName, &r.Rows, &r.Cols, &r.PHit, &r.PMiss, &r.Blurring,
		&started, &finished, &r.Steps)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	r.StartedAt = time.Unix(0, started)
	if finished.Valid {
		t := time.Unix(0, finished.Int64)
		r.FinishedAt = &t
	}
	return &r, nil
}

// ListSteps returns the steps of a run in sequence order.
func (db *DB) ListSteps(runID string) ([]Step, error) {
	rows, err := db.Query(
		`SELECT run_id, seq, kind, observation, dy, dx, peak_row, peak_col,
			peak_probability, entropy, recorded_unix_nanos
		 FROM steps WHERE run_id = ? ORDER BY seq`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var (
			s        Step
			obs      sql.NullString
			dy, dx   sql.NullInt64
			recorded int64
		)
		if err := rows.Scan(&s.RunID, &s.Seq, &s.Kind, &obs, &dy, &dx, &s.PeakRow, &s.PeakCol,
			&s.PeakProbability, &s.Entropy, &recorded); err != nil {
			return nil, err
		}
		s.Observation = obs.String
		s.DY = int(dy.Int64)
		s.DX = int(dx.Int64)
		s.RecordedAt = time.Unix(0, recorded)
		steps = append(steps, s)
	}
	return steps, rows.Err()
}
