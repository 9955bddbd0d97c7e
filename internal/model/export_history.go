package model

// RunStatus is the transient per-query run state kept in Redis while a
// task moves through the queue.
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusProcessing RunStatus = "processing"
	RunStatusDone       RunStatus = "done"
	RunStatusFailed     RunStatus = "failed"
)

// ExportHistory is the durable audit record for one export run.
type ExportHistory struct {
	ID        int64 `db:"id"`
	QueryID   int64 `db:"query_id"`
	Timestamp int64 `db:"timestamp"` // Unix milliseconds
	Success   bool  `db:"success"`
}

// ExportItem is one attempted user-grade pair of a history record.
// Items never outlive their record: WipeHistory deletes items first.
type ExportItem struct {
	HistoryID int64   `db:"history_id"`
	UserID    int64   `db:"user_id"`
	Grade     float64 `db:"grade"`
}
