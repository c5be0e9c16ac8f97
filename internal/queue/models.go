package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a classification job.
type Status string

const (
	StatusQueued            Status = "queued"
	StatusProcessing        Status = "processing"
	StatusPendingCompletion Status = "pending_completion"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
)

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusPendingCompletion,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// allowedTransitions is the closed set of legal status changes. Same-status
// writes are always allowed and do not consult this table.
// pending_completion -> queued and failed -> queued exist for manual
// re-classification and retry; they never happen on the automatic path.
var allowedTransitions = map[Status][]Status{
	StatusQueued:            {StatusProcessing, StatusFailed},
	StatusProcessing:        {StatusPendingCompletion, StatusQueued, StatusFailed},
	StatusPendingCompletion: {StatusCompleted, StatusQueued, StatusFailed},
	StatusFailed:            {StatusQueued},
	StatusCompleted:         {},
}

// CanTransition reports whether from may legally change to to.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status ends the active lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Job represents a classification job persisted in SQLite.
type Job struct {
	ID                 string
	SourcePath         string
	OriginalFilename   string
	Status             Status
	SuggestedPath      string
	Confidence         int
	ErrorMessage       string
	CustomInstructions string
	Priority           bool
	MarkedForDeletion  bool
	AttemptCount       int
	NextAttemptAt      *time.Time
	MissingSince       *time.Time
	GroupID            string
	GroupPrimary       bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Clone returns a deep copy safe to mutate without affecting the receiver.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.NextAttemptAt != nil {
		at := *j.NextAttemptAt
		cp.NextAttemptAt = &at
	}
	if j.MissingSince != nil {
		at := *j.MissingSince
		cp.MissingSince = &at
	}
	return &cp
}

// Grouped reports whether the job belongs to a multi-file group.
func (j *Job) Grouped() bool {
	return j != nil && j.GroupID != ""
}

// ReadyAt reports whether the job's retry backoff has elapsed at now.
func (j *Job) ReadyAt(now time.Time) bool {
	if j.NextAttemptAt == nil {
		return true
	}
	return !now.Before(*j.NextAttemptAt)
}

// SetFailed marks the job failed with the given error message.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.NextAttemptAt = nil
}

// TransitionRecord describes one committed status change.
type TransitionRecord struct {
	JobID     string
	From      Status
	To        Status
	Timestamp time.Time
	Detail    string
}

// Observer receives transition records after a status change commits.
// Observers must not block; failures are the observer's problem, never the
// store's.
type Observer func(TransitionRecord)

// HealthSummary describes aggregated queue counts per lifecycle state.
type HealthSummary struct {
	Total             int
	Queued            int
	Processing        int
	PendingCompletion int
	Completed         int
	Failed            int
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}
