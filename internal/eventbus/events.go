package eventbus

import "github.com/webitel/grade-exporter/internal/model"

// Lifecycle event names published by the query service and the export
// engine.
const (
	EventQueryCreated    = "query_created"
	EventQueryUpdated    = "query_updated"
	EventQueryDeleted    = "query_deleted"
	EventPreExportGrades = "pre_export_grades"
	EventExportedGrades  = "exported_grades"
)

type QueryCreated struct {
	Query *model.Query `json:"query"`
}

type QueryUpdated struct {
	Old *model.Query `json:"old"`
	New *model.Query `json:"new"`
}

type QueryDeleted struct {
	Query *model.Query `json:"query"`
}

// PreExportGrades is published before any sink call. Listeners may
// replace Users/Grades in place; the engine re-reads both from this
// payload after publishing.
type PreExportGrades struct {
	Query  *model.Query         `json:"query"`
	Users  *model.UserSnapshot  `json:"users"`
	Grades *model.GradeSnapshot `json:"grades"`
}

// ExportedGrades carries the full per-record results of one run. This
// is the only channel where successes and errors travel together with
// the triggering user.
type ExportedGrades struct {
	Query       *model.Query         `json:"query"`
	TriggeredBy *int64               `json:"triggered_by,omitempty"`
	Results     []model.ExportResult `json:"results"`
	Errors      []model.ExportResult `json:"errors"`
}
