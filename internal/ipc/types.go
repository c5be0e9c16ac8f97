package ipc

import "curator/internal/api"

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse carries the daemon snapshot.
type StatusResponse struct {
	Status api.DaemonStatus `json:"status"`
}

// QueueListRequest filters queue listing by status names. An empty filter
// returns every job.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue entries.
type QueueListResponse struct {
	Jobs []api.Job `json:"jobs"`
}

// QueueDescribeRequest fetches a single job by id.
type QueueDescribeRequest struct {
	ID string `json:"id"`
}

// QueueDescribeResponse carries one job.
type QueueDescribeResponse struct {
	Job api.Job `json:"job"`
}

// QueueClearRequest removes jobs in bulk. Scope selects which: "all",
// "completed", or "failed".
type QueueClearRequest struct {
	Scope string `json:"scope"`
}

// QueueClearResponse reports how many jobs were removed.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// QueueResetRequest requeues jobs stuck in processing.
type QueueResetRequest struct{}

// QueueResetResponse reports how many jobs were requeued.
type QueueResetResponse struct {
	Reset int64 `json:"reset"`
}

// QueueRetryRequest requeues failed jobs. An empty ID list retries all of
// them.
type QueueRetryRequest struct {
	IDs []string `json:"ids"`
}

// QueueRetryResponse reports how many jobs were requeued.
type QueueRetryResponse struct {
	Retried int64 `json:"retried"`
}

// QueueRemoveRequest removes one job, deferring when an attempt is in flight.
type QueueRemoveRequest struct {
	ID string `json:"id"`
}

// QueueRemoveResponse reports the removal outcome.
type QueueRemoveResponse struct {
	Removed bool `json:"removed"`
	// Deferred is set when the job was flagged for removal after its current
	// classification attempt resolves.
	Deferred bool `json:"deferred"`
}

// ReclassifyRequest pushes a job back through classification with priority.
type ReclassifyRequest struct {
	ID           string `json:"id"`
	Instructions string `json:"instructions"`
}

// ReclassifyResponse carries the requeued job.
type ReclassifyResponse struct {
	Job api.Job `json:"job"`
}

// HistoryRequest fetches recent transitions and movements.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryResponse carries journal entries, newest first.
type HistoryResponse struct {
	Transitions []api.Transition `json:"transitions"`
	Movements   []api.Movement   `json:"movements"`
}

// HealthRequest fetches queue and database diagnostics.
type HealthRequest struct{}

// HealthResponse carries queue totals and database state.
type HealthResponse struct {
	Queue    api.QueueHealth    `json:"queue"`
	Database api.DatabaseHealth `json:"database"`
}

// ConfigReloadRequest re-reads the configuration file.
type ConfigReloadRequest struct{}

// ConfigReloadResponse reports the reload outcome.
type ConfigReloadResponse struct {
	Reloaded bool   `json:"reloaded"`
	Message  string `json:"message,omitempty"`
}

// TestNotificationRequest sends a test push notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the send outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message,omitempty"`
}
