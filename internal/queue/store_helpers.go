package queue

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, source_path, original_filename, status, suggested_path, confidence, error_message, custom_instructions, priority, marked_for_deletion, attempt_count, next_attempt_at, missing_since, group_id, group_primary, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id                 string
		sourcePath         string
		originalFilename   string
		statusStr          string
		suggestedPath      sql.NullString
		confidence         sql.NullInt64
		errorMessage       sql.NullString
		customInstructions sql.NullString
		priority           sql.NullInt64
		markedForDeletion  sql.NullInt64
		attemptCount       sql.NullInt64
		nextAttemptRaw     sql.NullString
		missingSinceRaw    sql.NullString
		groupID            sql.NullString
		groupPrimary       sql.NullInt64
		createdRaw         sql.NullString
		updatedRaw         sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourcePath,
		&originalFilename,
		&statusStr,
		&suggestedPath,
		&confidence,
		&errorMessage,
		&customInstructions,
		&priority,
		&markedForDeletion,
		&attemptCount,
		&nextAttemptRaw,
		&missingSinceRaw,
		&groupID,
		&groupPrimary,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:                 id,
		SourcePath:         sourcePath,
		OriginalFilename:   originalFilename,
		Status:             Status(statusStr),
		SuggestedPath:      suggestedPath.String,
		Confidence:         int(confidence.Int64),
		ErrorMessage:       errorMessage.String,
		CustomInstructions: customInstructions.String,
		Priority:           priority.Int64 != 0,
		MarkedForDeletion:  markedForDeletion.Int64 != 0,
		AttemptCount:       int(attemptCount.Int64),
		GroupID:            groupID.String,
		GroupPrimary:       groupPrimary.Int64 != 0,
	}

	if nextAttemptRaw.Valid {
		if at, err := parseTimeString(nextAttemptRaw.String); err == nil {
			job.NextAttemptAt = &at
		}
	}
	if missingSinceRaw.Valid {
		if at, err := parseTimeString(missingSinceRaw.String); err == nil {
			job.MissingSince = &at
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
