package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gobake/gobake"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	sequence    TEXT NOT NULL,
	status      TEXT NOT NULL,
	steps       INTEGER NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	error       TEXT
);
CREATE TABLE IF NOT EXISTS run_steps (
	run_id      TEXT NOT NULL,
	idx         INTEGER NOT NULL,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	error       TEXT,
	PRIMARY KEY (run_id, idx)
);
`

// Option configures a Journal.
type Option func(*Journal)

// WithLogger sets the logger used to report journal write failures.
// Observer callbacks have no error channel back to the run, so failures are
// logged instead of aborting the pipeline.
func WithLogger(logger gobake.Logger) Option {
	return func(j *Journal) {
		j.logger = logger
	}
}

// Journal records pipeline run state transitions in a SQLite database.
// It is safe for use across concurrent runs.
type Journal struct {
	db     *sql.DB
	logger gobake.Logger
}

// Open creates or opens a journal database at the given path.
func Open(path string, opts ...Option) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing journal schema: %w", err)
	}

	j := &Journal{
		db:     db,
		logger: gobake.NewDefaultLogger(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Close releases the underlying database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RunPlanned implements gobake.RunObserver
func (j *Journal) RunPlanned(runID, sequence string, steps int) {
	j.exec(`INSERT INTO runs (run_id, sequence, status, steps, started_at) VALUES (?, ?, ?, ?, ?)`,
		runID, sequence, gobake.StatusPlanned, steps, time.Now().UTC())
}

// StepStarted implements gobake.RunObserver
func (j *Journal) StepStarted(runID string, index int, name string) {
	j.exec(`UPDATE runs SET status = ? WHERE run_id = ?`, gobake.StatusRunning, runID)
	j.exec(`INSERT INTO run_steps (run_id, idx, name, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		runID, index, name, gobake.StatusRunning, time.Now().UTC())
}

// StepCompleted implements gobake.RunObserver
func (j *Journal) StepCompleted(runID string, index int, name string) {
	j.exec(`UPDATE run_steps SET status = ?, finished_at = ? WHERE run_id = ? AND idx = ?`,
		gobake.StatusCompleted, time.Now().UTC(), runID, index)
}

// RunCompleted implements gobake.RunObserver
func (j *Journal) RunCompleted(runID string) {
	j.exec(`UPDATE runs SET status = ?, finished_at = ? WHERE run_id = ?`,
		gobake.StatusCompleted, time.Now().UTC(), runID)
}

// RunFailed implements gobake.RunObserver
func (j *Journal) RunFailed(runID string, index int, name string, err error) {
	now := time.Now().UTC()
	j.exec(`UPDATE run_steps SET status = ?, finished_at = ?, error = ? WHERE run_id = ? AND idx = ?`,
		gobake.StatusFailed, now, err.Error(), runID, index)
	j.exec(`UPDATE runs SET status = ?, finished_at = ?, error = ? WHERE run_id = ?`,
		gobake.StatusFailed, now, err.Error(), runID)
}

func (j *Journal) exec(query string, args ...interface{}) {
	if _, err := j.db.Exec(query, args...); err != nil {
		j.logger.Error("journal write failed: %v", err)
	}
}

// RunRecord is one journaled pipeline run.
type RunRecord struct {
	RunID      string
	Sequence   string
	Status     string
	Steps      int
	StartedAt  time.Time
	FinishedAt *time.Time
	Error      string
}

// StepRecord is one journaled step execution within a run.
type StepRecord struct {
	Index      int
	Name       string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
	Error      string
}

// Run returns a single run by ID.
func (j *Journal) Run(runID string) (*RunRecord, error) {
	row := j.db.QueryRow(`SELECT run_id, sequence, status, steps, started_at, finished_at, COALESCE(error, '')
		FROM runs WHERE run_id = ?`, runID)

	var rec RunRecord
	var finished sql.NullTime
	if err := row.Scan(&rec.RunID, &rec.Sequence, &rec.Status, &rec.Steps, &rec.StartedAt, &finished, &rec.Error); err != nil {
		return nil, fmt.Errorf("loading run %s: %w", runID, err)
	}
	if finished.Valid {
		rec.FinishedAt = &finished.Time
	}
	return &rec, nil
}

// Runs returns the most recent runs, newest first, up to limit.
func (j *Journal) Runs(limit int) ([]RunRecord, error) {
	rows, err := j.db.Query(`SELECT run_id, sequence, status, steps, started_at, finished_at, COALESCE(error, '')
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var finished sql.NullTime
		if err := rows.Scan(&rec.RunID, &rec.Sequence, &rec.Status, &rec.Steps, &rec.StartedAt, &finished, &rec.Error); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if finished.Valid {
			rec.FinishedAt = &finished.Time
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Steps returns a run's step records in execution order.
func (j *Journal) Steps(runID string) ([]StepRecord, error) {
	rows, err := j.db.Query(`SELECT idx, name, status, started_at, finished_at, COALESCE(error, '')
		FROM run_steps WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing steps for run %s: %w", runID, err)
	}
	defer rows.Close()

	var records []StepRecord
	for rows.Next() {
		var rec StepRecord
		var finished sql.NullTime
		if err := rows.Scan(&rec.Index, &rec.Name, &rec.Status, &rec.StartedAt, &finished, &rec.Error); err != nil {
			return nil, fmt.Errorf("scanning step: %w", err)
		}
		if finished.Valid {
			rec.FinishedAt = &finished.Time
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
