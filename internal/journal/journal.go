// Package journal records status transitions and file movements in SQLite
// for auditing. The daemon registers a store observer that writes every
// committed transition, and the organizer records every move attempt. The
// read API backs the `curator queue history` command.
//
// The journal is advisory: a write failure is logged and dropped, never
// surfaced to the caller, so auditing can never break the pipeline.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"curator/internal/logging"
	"curator/internal/queue"
)

const schema = `
CREATE TABLE IF NOT EXISTS transitions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id TEXT NOT NULL,
    from_status TEXT NOT NULL,
    to_status TEXT NOT NULL,
    detail TEXT,
    at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS movements (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id TEXT NOT NULL,
    source TEXT NOT NULL,
    destination TEXT NOT NULL,
    status TEXT NOT NULL,
    error TEXT,
    at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transitions_job_id ON transitions (job_id);
CREATE INDEX IF NOT EXISTS idx_movements_job_id ON movements (job_id);
`

// Journal persists audit records in SQLite.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Transition is one recorded status change.
type Transition struct {
	JobID  string
	From   queue.Status
	To     queue.Status
	Detail string
	At     time.Time
}

// Movement is one recorded move attempt.
type Movement struct {
	JobID       string
	Source      string
	Destination string
	Status      string
	Error       string
	At          time.Time
}

// Movement status values.
const (
	MovementMoved  = "moved"
	MovementFailed = "failed"
)

// Open connects to the journal database, creating tables as needed. Sharing
// the queue database file is fine; the tables are disjoint.
func Open(dbPath string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout = 5000"} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &Journal{
		db:     db,
		logger: logging.NewComponentLogger(logger, "journal"),
	}, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Observer adapts the journal into a queue store observer. Write failures
// are logged and swallowed.
func (j *Journal) Observer() queue.Observer {
	return func(rec queue.TransitionRecord) {
		if err := j.recordTransition(context.Background(), rec); err != nil {
			j.logger.Warn("transition record dropped",
				logging.String(logging.FieldJobID, rec.JobID),
				logging.Error(err),
			)
		}
	}
}

func (j *Journal) recordTransition(ctx context.Context, rec queue.TransitionRecord) error {
	at := rec.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := j.db.ExecContext(
		ctx,
		`INSERT INTO transitions (job_id, from_status, to_status, detail, at) VALUES (?, ?, ?, ?, ?)`,
		rec.JobID,
		string(rec.From),
		string(rec.To),
		rec.Detail,
		at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// RecordMovement writes one move attempt. Failures are logged and swallowed.
func (j *Journal) RecordMovement(ctx context.Context, m Movement) {
	at := m.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := j.db.ExecContext(
		ctx,
		`INSERT INTO movements (job_id, source, destination, status, error, at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.JobID,
		m.Source,
		m.Destination,
		m.Status,
		m.Error,
		at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		j.logger.Warn("movement record dropped",
			logging.String(logging.FieldJobID, m.JobID),
			logging.Error(err),
		)
	}
}

// RecentTransitions returns the newest transitions, most recent first.
func (j *Journal) RecentTransitions(ctx context.Context, limit int) ([]Transition, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(
		ctx,
		`SELECT job_id, from_status, to_status, detail, at FROM transitions ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var (
			tr     Transition
			from   string
			to     string
			detail sql.NullString
			atRaw  string
		)
		if err := rows.Scan(&tr.JobID, &from, &to, &detail, &atRaw); err != nil {
			return nil, err
		}
		tr.From = queue.Status(from)
		tr.To = queue.Status(to)
		tr.Detail = detail.String
		if at, err := time.Parse(time.RFC3339Nano, atRaw); err == nil {
			tr.At = at
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// RecentMovements returns the newest movements, most recent first.
func (j *Journal) RecentMovements(ctx context.Context, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(
		ctx,
		`SELECT job_id, source, destination, status, error, at FROM movements ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	defer rows.Close()

	var out []Movement
	for rows.Next() {
		var (
			m      Movement
			errStr sql.NullString
			atRaw  string
		)
		if err := rows.Scan(&m.JobID, &m.Source, &m.Destination, &m.Status, &errStr, &atRaw); err != nil {
			return nil, err
		}
		m.Error = errStr.String
		if at, err := time.Parse(time.RFC3339Nano, atRaw); err == nil {
			m.At = at
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
