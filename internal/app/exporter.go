package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/webitel/grade-exporter/internal/cache"
	"github.com/webitel/grade-exporter/internal/errors"
	"github.com/webitel/grade-exporter/internal/export"
	"github.com/webitel/grade-exporter/internal/model"
	"github.com/webitel/grade-exporter/internal/store"
)

// ExporterService drives export runs: enqueueing, processing and the
// history surface. The redis run status keeps at most one run per
// query in flight, which is the caller-level serialization the engine
// assumes.
type ExporterService struct {
	engine  *export.Engine
	queries store.QueryStore
	history store.HistoryStore
	cache   cache.Cache
	log     *slog.Logger
}

func NewExporterService(engine *export.Engine, qs store.QueryStore, hs store.HistoryStore, c cache.Cache, log *slog.Logger) (*ExporterService, error) {
	if engine == nil || qs == nil || hs == nil || c == nil {
		return nil, errors.Internal("exporter service dependencies are nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &ExporterService{engine: engine, queries: qs, history: hs, cache: c, log: log}, nil
}

// TriggerExport enqueues one run for the query. TriggeredBy is the
// requesting user for manual runs, nil for scheduled ones.
func (s *ExporterService) TriggerExport(ctx context.Context, queryID int64, triggeredBy *int64) (*model.ExportTask, error) {
	status, err := s.cache.GetRunStatus(queryID)
	if err != nil {
		return nil, errors.Internal("failed to get run status", errors.WithCause(err))
	}
	if status == model.RunStatusPending || status == model.RunStatusProcessing {
		return nil, errors.InvalidArgument(fmt.Sprintf("export already in progress for query %d", queryID))
	}

	query, err := s.queries.Get(ctx, &model.QuerySearch{ID: &queryID})
	if err != nil {
		return nil, err
	}
	if query == nil {
		return nil, errors.NotFound(fmt.Sprintf("query %d not found", queryID))
	}

	task := model.ExportTask{
		TaskID:      fmt.Sprintf("%d:%d", queryID, time.Now().UnixMilli()),
		QueryID:     queryID,
		TriggeredBy: triggeredBy,
		EnqueuedAt:  time.Now().UnixMilli(),
	}

	if err := s.cache.SetRunStatus(queryID, model.RunStatusPending); err != nil {
		return nil, errors.Internal("failed to set run status", errors.WithCause(err))
	}
	if err := s.cache.PushExportTask(task); err != nil {
		_ = s.cache.ClearRunStatus(queryID)
		return nil, errors.Internal("failed to push task to queue", errors.WithCause(err))
	}

	s.log.InfoContext(ctx, "grade_exporter.export.enqueued",
		"task_id", task.TaskID,
		"query_id", queryID)

	return &task, nil
}

// ProcessTask runs one dequeued task end to end: engine run, history
// record, run status. A run with a missing grade item writes no
// history at all.
func (s *ExporterService) ProcessTask(ctx context.Context, task model.ExportTask) error {
	_ = s.cache.SetRunStatus(task.QueryID, model.RunStatusProcessing)

	query, err := s.queries.Get(ctx, &model.QuerySearch{ID: &task.QueryID})
	if err != nil {
		_ = s.cache.SetRunStatus(task.QueryID, model.RunStatusFailed)
		return err
	}
	if query == nil {
		_ = s.cache.ClearRunStatus(task.QueryID)
		return errors.NotFound(fmt.Sprintf("query %d deleted before task %s ran", task.QueryID, task.TaskID))
	}

	outcome, err := s.engine.ExportGrades(ctx, query, task.TriggeredBy)
	if err != nil {
		_ = s.cache.SetRunStatus(task.QueryID, model.RunStatusFailed)
		return err
	}
	if outcome == nil {
		// Stale query: nothing exported, nothing recorded.
		_ = s.cache.ClearRunStatus(task.QueryID)
		return nil
	}

	// One run is "successful" when no record failed. The engine does
	// not dictate this; it is the recording policy of this service.
	record, err := s.history.InsertExport(ctx, query.ID, outcome, outcome.Clean())
	if err != nil {
		_ = s.cache.SetRunStatus(task.QueryID, model.RunStatusFailed)
		return err
	}

	_ = s.cache.SetRunStatus(task.QueryID, model.RunStatusDone)

	s.log.InfoContext(ctx, "grade_exporter.export.recorded",
		"task_id", task.TaskID,
		"query_id", query.ID,
		"history_id", record.ID,
		"success", record.Success)

	return nil
}

func (s *ExporterService) LastExport(ctx context.Context, queryID int64, onlySuccessful bool) (*model.ExportHistory, error) {
	return s.history.GetLastExport(ctx, queryID, onlySuccessful)
}

// WipeHistory is the explicit cascade used when a query is removed.
func (s *ExporterService) WipeHistory(ctx context.Context, queryID int64) error {
	return s.history.WipeHistory(ctx, queryID)
}

// ExportedItems returns the persisted per-user results of one
// historical run, joined against the query's currently-resolvable
// users. Users that no longer resolve are absent, not an error.
func (s *ExporterService) ExportedItems(ctx context.Context, query *model.Query, record *model.ExportHistory) (map[int64]float64, error) {
	items, err := s.history.GetExportedItems(ctx, record.ID)
	if err != nil {
		return nil, err
	}

	users, err := s.engine.NewRun(query).PullUsers(ctx)
	if err != nil {
		return nil, err
	}

	result := make(map[int64]float64, len(items))
	for userID, grade := range items {
		if users == nil {
			continue
		}
		if _, ok := users.Get(userID); ok {
			result[userID] = grade
		}
	}

	return result, nil
}
