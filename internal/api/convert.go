package api

import (
	"time"

	"curator/internal/journal"
	"curator/internal/queue"
)

// FromJob converts an internal queue job into its DTO.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:                 job.ID,
		SourcePath:         job.SourcePath,
		OriginalFilename:   job.OriginalFilename,
		Status:             string(job.Status),
		SuggestedPath:      job.SuggestedPath,
		Confidence:         job.Confidence,
		ErrorMessage:       job.ErrorMessage,
		CustomInstructions: job.CustomInstructions,
		Priority:           job.Priority,
		AttemptCount:       job.AttemptCount,
		GroupID:            job.GroupID,
		GroupPrimary:       job.GroupPrimary,
		CreatedAt:          formatTime(job.CreatedAt),
		UpdatedAt:          formatTime(job.UpdatedAt),
	}
	if job.NextAttemptAt != nil {
		dto.NextAttemptAt = formatTime(*job.NextAttemptAt)
	}
	return dto
}

// FromJobs converts a slice of internal jobs, skipping nils.
func FromJobs(jobs []*queue.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		out = append(out, FromJob(job))
	}
	return out
}

// FromTransition converts a journal transition into its DTO.
func FromTransition(t journal.Transition) Transition {
	return Transition{
		JobID:  t.JobID,
		From:   string(t.From),
		To:     string(t.To),
		Detail: t.Detail,
		At:     formatTime(t.At),
	}
}

// FromMovement converts a journal movement into its DTO.
func FromMovement(m journal.Movement) Movement {
	return Movement{
		JobID:       m.JobID,
		Source:      m.Source,
		Destination: m.Destination,
		Status:      m.Status,
		Error:       m.Error,
		At:          formatTime(m.At),
	}
}

// FromHealth converts a queue health summary into its DTO.
func FromHealth(h queue.HealthSummary) QueueHealth {
	return QueueHealth{
		Total:             h.Total,
		Queued:            h.Queued,
		Processing:        h.Processing,
		PendingCompletion: h.PendingCompletion,
		Completed:         h.Completed,
		Failed:            h.Failed,
	}
}

// FromDatabaseHealth converts database diagnostics into their DTO.
func FromDatabaseHealth(h queue.DatabaseHealth) DatabaseHealth {
	return DatabaseHealth{
		DBPath:           h.DBPath,
		DatabaseExists:   h.DatabaseExists,
		DatabaseReadable: h.DatabaseReadable,
		TableExists:      h.TableExists,
		IntegrityCheck:   h.IntegrityCheck,
		TotalJobs:        h.TotalJobs,
		Error:            h.Error,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
