package batch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/echoflow/idgen"
)

// Job statuses. A job moves pending → running → one terminal status.
const (
	StatusPending         = "pending"
	StatusRunning         = "running"
	StatusCompleted       = "completed"
	StatusPartiallyFailed = "partially_failed"
	StatusFailed          = "failed"
	StatusCancelled       = "cancelled"
)

// Schema creates the job table. Pass to dbopen.WithSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS conversion_jobs (
	job_id        TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	output_dir    TEXT NOT NULL,
	status        TEXT NOT NULL,
	total         INTEGER NOT NULL DEFAULT 0,
	completed     INTEGER NOT NULL DEFAULT 0,
	succeeded     INTEGER NOT NULL DEFAULT 0,
	failed        INTEGER NOT NULL DEFAULT 0,
	fallback_used INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversion_jobs_created
	ON conversion_jobs(created_at);
`

// ErrJobNotFound is returned by Get for an unknown job ID.
var ErrJobNotFound = errors.New("batch: job not found")

// Job is one conversion job's persisted state.
type Job struct {
	ID           string    `json:"job_id"`
	Source       string    `json:"source"`
	OutputDir    string    `json:"output_dir"`
	Status       string    `json:"status"`
	Total        int       `json:"total"`
	Completed    int       `json:"completed"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
	FallbackUsed int       `json:"fallback_used"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store persists conversion jobs in SQLite so job status survives the
// request that started it.
type Store struct {
	db    *sql.DB
	newID idgen.Generator
}

// NewStore creates a Store. The schema must already exist (see Schema).
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, newID: idgen.Prefixed("job_", idgen.Default)}
}

// Create inserts a pending job and returns its ID.
func (s *Store) Create(ctx context.Context, source, outputDir string) (string, error) {
	id := s.newID()
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversion_jobs (job_id, source, output_dir, status, created_at, updated_at)
		VALUES (?,?,?,?,?,?)`,
		id, source, outputDir, StatusPending, now, now)
	if err != nil {
		return "", fmt.Errorf("batch: create job: %w", err)
	}
	return id, nil
}

// Start marks the job running and records the document total.
func (s *Store) Start(ctx context.Context, id string, total int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversion_jobs SET status = ?, total = ?, updated_at = ?
		WHERE job_id = ?`,
		StatusRunning, total, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("batch: start job: %w", err)
	}
	return nil
}

// Progress updates the running counters.
func (s *Store) Progress(ctx context.Context, id string, completed, succeeded, failed, fallbackUsed int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversion_jobs
		SET completed = ?, succeeded = ?, failed = ?, fallback_used = ?, updated_at = ?
		WHERE job_id = ?`,
		completed, succeeded, failed, fallbackUsed, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("batch: update progress: %w", err)
	}
	return nil
}

// Finish records the terminal status. errMsg is kept for failed jobs.
func (s *Store) Finish(ctx context.Context, id, status, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversion_jobs SET status = ?, error = ?, updated_at = ?
		WHERE job_id = ?`,
		status, errMsg, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("batch: finish job: %w", err)
	}
	return nil
}

// Get returns one job, or ErrJobNotFound.
func (s *Store) Get(ctx context.Context, id string) (Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, source, output_dir, status, total, completed,
		       succeeded, failed, fallback_used, error, created_at, updated_at
		FROM conversion_jobs WHERE job_id = ?`, id)
	return scanJob(row)
}

// Recent returns the newest jobs, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, source, output_dir, status, total, completed,
		       succeeded, failed, fallback_used, error, created_at, updated_at
		FROM conversion_jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("batch: list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var j Job
	var created, updated int64
	err := row.Scan(&j.ID, &j.Source, &j.OutputDir, &j.Status, &j.Total,
		&j.Completed, &j.Succeeded, &j.Failed, &j.FallbackUsed, &j.Error,
		&created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrJobNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("batch: scan job: %w", err)
	}
	j.CreatedAt = time.Unix(created, 0)
	j.UpdatedAt = time.Unix(updated, 0)
	return j, nil
}
