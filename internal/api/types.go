package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a queue entry in a transport-friendly format.
type Job struct {
	ID                 string `json:"id"`
	SourcePath         string `json:"sourcePath"`
	OriginalFilename   string `json:"originalFilename"`
	Status             string `json:"status"`
	SuggestedPath      string `json:"suggestedPath,omitempty"`
	Confidence         int    `json:"confidence"`
	ErrorMessage       string `json:"errorMessage,omitempty"`
	CustomInstructions string `json:"customInstructions,omitempty"`
	Priority           bool   `json:"priority"`
	AttemptCount       int    `json:"attemptCount"`
	NextAttemptAt      string `json:"nextAttemptAt,omitempty"`
	GroupID            string `json:"groupId,omitempty"`
	GroupPrimary       bool   `json:"groupPrimary"`
	CreatedAt          string `json:"createdAt,omitempty"`
	UpdatedAt          string `json:"updatedAt,omitempty"`
}

// WorkerStatus summarizes queue worker execution state.
type WorkerStatus struct {
	Running    bool           `json:"running"`
	State      string         `json:"state"`
	QueueStats map[string]int `json:"queueStats"`
	LastError  string         `json:"lastError,omitempty"`
	LastJob    *Job           `json:"lastJob,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool         `json:"running"`
	PID          int          `json:"pid"`
	QueueDBPath  string       `json:"queueDbPath"`
	LockFilePath string       `json:"lockFilePath"`
	SocketPath   string       `json:"socketPath"`
	ConfigPath   string       `json:"configPath,omitempty"`
	Worker       WorkerStatus `json:"worker"`
}

// Transition mirrors one recorded status change.
type Transition struct {
	JobID  string `json:"jobId"`
	From   string `json:"from"`
	To     string `json:"to"`
	Detail string `json:"detail,omitempty"`
	At     string `json:"at"`
}

// Movement mirrors one recorded move attempt.
type Movement struct {
	JobID       string `json:"jobId"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	At          string `json:"at"`
}

// QueueHealth summarizes job counts by status.
type QueueHealth struct {
	Total             int `json:"total"`
	Queued            int `json:"queued"`
	Processing        int `json:"processing"`
	PendingCompletion int `json:"pendingCompletion"`
	Completed         int `json:"completed"`
	Failed            int `json:"failed"`
}

// DatabaseHealth reports queue database diagnostics.
type DatabaseHealth struct {
	DBPath           string `json:"dbPath"`
	DatabaseExists   bool   `json:"databaseExists"`
	DatabaseReadable bool   `json:"databaseReadable"`
	TableExists      bool   `json:"tableExists"`
	IntegrityCheck   bool   `json:"integrityCheck"`
	TotalJobs        int    `json:"totalJobs"`
	Error            string `json:"error,omitempty"`
}
