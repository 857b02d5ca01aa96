// Package telemetry records conversion attempts in SQLite for later
// inspection. Recording is best-effort: a failing telemetry store logs
// via slog and never blocks or fails a conversion.
package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/echoflow/fallback"
	"github.com/hazyhaar/echoflow/idgen"
)

// Schema creates the telemetry tables. Pass to dbopen.WithSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS conversion_attempts (
	attempt_id  TEXT PRIMARY KEY,
	doc_path    TEXT NOT NULL,
	variant     TEXT NOT NULL,
	success     INTEGER NOT NULL,
	score       REAL NOT NULL,
	accepted    INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	error_class TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversion_attempts_path
	ON conversion_attempts(doc_path);
CREATE INDEX IF NOT EXISTS idx_conversion_attempts_created
	ON conversion_attempts(created_at);
`

// Recorder persists fallback attempts. It implements fallback.Sink.
type Recorder struct {
	db    *sql.DB
	newID idgen.Generator
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithIDGenerator sets a custom ID generator for attempt IDs.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(r *Recorder) { r.newID = gen }
}

// NewRecorder creates a Recorder backed by the given database. The
// schema must already exist (see Schema).
func NewRecorder(db *sql.DB, opts ...Option) *Recorder {
	r := &Recorder{
		db:    db,
		newID: idgen.Prefixed("att_", idgen.Default),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Attempted records one variant attempt. Errors are logged, not returned.
func (r *Recorder) Attempted(ctx context.Context, docPath string, attempt fallback.Attempt) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversion_attempts (
			attempt_id, doc_path, variant, success, score,
			accepted, duration_ms, error_class, created_at
		) VALUES (?,?,?,?,?,?,?,?,?)`,
		r.newID(), docPath, attempt.Variant, attempt.Success, attempt.Score,
		attempt.Accepted, attempt.Duration.Milliseconds(), string(attempt.ErrClass),
		time.Now().Unix())
	if err != nil {
		slog.Error("telemetry attempt record failed", "error", err, "path", docPath)
	}
}

// Cleanup deletes attempts older than the given retention window.
// Zero days means no cleanup.
func Cleanup(ctx context.Context, db *sql.DB, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().Unix() - int64(retentionDays)*86400
	if _, err := db.ExecContext(ctx,
		"DELETE FROM conversion_attempts WHERE created_at < ?", cutoff); err != nil {
		return fmt.Errorf("telemetry cleanup: %w", err)
	}
	return nil
}
