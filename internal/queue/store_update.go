package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Update loads the job inside a transaction, applies mutate to a snapshot
// copy, validates any status change against the transition table, and writes
// the whole snapshot back. Nothing is persisted when mutate or validation
// fails. Registered observers receive the transition record after commit.
//
// mutate must be pure: no I/O, no blocking calls, no references retained to
// the snapshot after returning.
func (s *Store) Update(ctx context.Context, id string, mutate func(*Job) error) (*Job, error) {
	ctx = ensureContext(ctx)

	var (
		updated *Job
		rec     *TransitionRecord
	)
	err := retryOnBusy(ctx, func() error {
		updated, rec = nil, nil

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin update tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
		current, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load job for update: %w", err)
		}

		snapshot := current.Clone()
		if err := mutate(snapshot); err != nil {
			return err
		}

		// Identity and creation time are immutable.
		snapshot.ID = current.ID
		snapshot.CreatedAt = current.CreatedAt

		if snapshot.Status != current.Status && !CanTransition(current.Status, snapshot.Status) {
			return invalidTransition(current.Status, snapshot.Status)
		}

		snapshot.UpdatedAt = time.Now().UTC()
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE jobs
             SET source_path = ?, original_filename = ?, status = ?, suggested_path = ?,
                 confidence = ?, error_message = ?, custom_instructions = ?, priority = ?,
                 marked_for_deletion = ?, attempt_count = ?, next_attempt_at = ?,
                 missing_since = ?, group_id = ?, group_primary = ?, updated_at = ?
             WHERE id = ?`,
			snapshot.SourcePath,
			snapshot.OriginalFilename,
			snapshot.Status,
			nullableString(snapshot.SuggestedPath),
			snapshot.Confidence,
			nullableString(snapshot.ErrorMessage),
			nullableString(snapshot.CustomInstructions),
			boolToInt(snapshot.Priority),
			boolToInt(snapshot.MarkedForDeletion),
			snapshot.AttemptCount,
			nullableTime(snapshot.NextAttemptAt),
			nullableTime(snapshot.MissingSince),
			nullableString(snapshot.GroupID),
			boolToInt(snapshot.GroupPrimary),
			snapshot.UpdatedAt.Format(time.RFC3339Nano),
			snapshot.ID,
		); err != nil {
			return fmt.Errorf("write job: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit update: %w", err)
		}

		updated = snapshot
		if snapshot.Status != current.Status {
			rec = &TransitionRecord{
				JobID:     snapshot.ID,
				From:      current.Status,
				To:        snapshot.Status,
				Timestamp: snapshot.UpdatedAt,
				Detail:    snapshot.ErrorMessage,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if rec != nil {
		s.notify(*rec)
	}
	return updated, nil
}

// ResetStuckProcessing returns jobs left in processing by an earlier daemon
// run back to queued. Called once during startup, before observers register.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, next_attempt_at = NULL, updated_at = ?
         WHERE status = ?`,
		StatusQueued,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusQueued:
			health.Queued += count
		case StatusProcessing:
			health.Processing += count
		case StatusPendingCompletion:
			health.PendingCompletion += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

// CheckHealth returns diagnostic information about the queue database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.db == nil {
		return health, errors.New("queue database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping queue database: %w", err)
	}
	health.DatabaseExists = true
	health.DatabaseReadable = true

	var tableName string
	row := s.db.QueryRowContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'jobs'")
	if err := row.Scan(&tableName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			health.TableExists = false
			return health, nil
		}
		health.Error = err.Error()
		return health, fmt.Errorf("query table info: %w", err)
	}
	health.TableExists = true

	row = s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM jobs")
	if err := row.Scan(&health.TotalJobs); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count jobs: %w", err)
	}

	row = s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = integrityResult == "ok"

	return health, nil
}
