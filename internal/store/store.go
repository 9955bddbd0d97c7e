package store

import (
	"context"

	"github.com/webitel/grade-exporter/internal/model"
)

type Store interface {
	Query() QueryStore
	History() HistoryStore

	// ------------ Database Management ------------ //
	Open() error  // Return custom DB error
	Close() error // Return custom DB error
}

// QueryStore persists query definitions. Lookups with zero matches
// return empty results, never an error.
type QueryStore interface {
	Search(ctx context.Context, filter *model.QuerySearch) (map[int64]*model.Query, error)
	Get(ctx context.Context, filter *model.QuerySearch) (*model.Query, error)
	Insert(ctx context.Context, query *model.Query) (int64, error)
	Update(ctx context.Context, query *model.Query) error
	Delete(ctx context.Context, id int64) error
}

// HistoryStore owns the export_history/export_items rows exclusively.
type HistoryStore interface {
	// InsertExport writes one history record and its per-user items
	// atomically.
	InsertExport(ctx context.Context, queryID int64, outcome *model.ExportOutcome, success bool) (*model.ExportHistory, error)
	// GetLastExport returns the newest record by timestamp, optionally
	// restricted to successful runs. Nil when the query has no history.
	GetLastExport(ctx context.Context, queryID int64, onlySuccessful bool) (*model.ExportHistory, error)
	// WipeHistory removes every item and record of the query, items
	// first. A query with no history is a no-op.
	WipeHistory(ctx context.Context, queryID int64) error
	GetExportedItems(ctx context.Context, historyID int64) (map[int64]float64, error)
}
