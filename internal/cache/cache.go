package cache

import "github.com/webitel/grade-exporter/internal/model"

// Cache is the transient run-state store: the export task queue and
// the per-query run status used to keep one run per query in flight.
type Cache interface {
	PushExportTask(task model.ExportTask) error
	PopExportTask() (model.ExportTask, error)
	SetRunStatus(queryID int64, status model.RunStatus) error
	GetRunStatus(queryID int64) (model.RunStatus, error)
	ClearRunStatus(queryID int64) error

	Clear() error
}
