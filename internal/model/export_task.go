package model

// ExportTask is the job persisted in Redis. It must be JSON-serializable.
type ExportTask struct {
	TaskID  string `json:"task_id"`
	QueryID int64  `json:"query_id"`
	// TriggeredBy is the user who requested a manual run; nil for
	// scheduler-driven runs.
	TriggeredBy *int64 `json:"triggered_by,omitempty"`
	EnqueuedAt  int64  `json:"enqueued_at"` // Unix milliseconds
}
