package app

import (
	"context"
	"log/slog"

	"github.com/webitel/grade-exporter/internal/errors"
	"github.com/webitel/grade-exporter/internal/eventbus"
	"github.com/webitel/grade-exporter/internal/model"
	"github.com/webitel/grade-exporter/internal/source"
	"github.com/webitel/grade-exporter/internal/store"
)

// QueryService is the CRUD surface over query definitions. Persistence
// failures come back as errors and suppress the lifecycle event; the
// event never implies durability beyond what the error reports.
type QueryService struct {
	store  store.QueryStore
	source source.GradeSource
	bus    *eventbus.Bus
	log    *slog.Logger
}

func NewQueryService(qs store.QueryStore, src source.GradeSource, bus *eventbus.Bus, log *slog.Logger) (*QueryService, error) {
	if qs == nil || src == nil || bus == nil {
		return nil, errors.Internal("query service dependencies are nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &QueryService{store: qs, source: src, bus: bus, log: log}, nil
}

func (s *QueryService) Get(ctx context.Context, filter *model.QuerySearch) (*model.Query, error) {
	return s.store.Get(ctx, filter)
}

func (s *QueryService) Search(ctx context.Context, filter *model.QuerySearch) (map[int64]*model.Query, error) {
	return s.store.Search(ctx, filter)
}

// FindByCourse returns the manually-configured queries whose grade
// item belongs to the course. Queries and grade items live in
// different databases, so the join happens here: a query is included
// only when its grade item still resolves and its course matches.
// Orphaned queries are silently excluded.
func (s *QueryService) FindByCourse(ctx context.Context, courseID int64) (map[int64]*model.Query, error) {
	manual := false
	queries, err := s.store.Search(ctx, &model.QuerySearch{Automated: &manual})
	if err != nil {
		return nil, err
	}

	result := make(map[int64]*model.Query)
	for id, query := range queries {
		if query.GradeItemID == nil {
			continue
		}
		item, err := s.source.GetGradeItem(ctx, *query.GradeItemID)
		if err != nil {
			return nil, err
		}
		if item == nil || item.CourseID != courseID {
			continue
		}
		result[id] = query
	}

	return result, nil
}

// Save inserts when the query has no id, updates otherwise. Created
// reports which path was taken. The matching lifecycle event fires
// only after the write succeeded.
func (s *QueryService) Save(ctx context.Context, query *model.Query) (created bool, err error) {
	if !query.Valid() {
		return false, errors.InvalidArgument("query requires an external id and a grade item")
	}

	if query.ID == 0 {
		id, err := s.store.Insert(ctx, query)
		if err != nil {
			return true, err
		}
		query.ID = id
		s.bus.Publish(ctx, eventbus.EventQueryCreated, &eventbus.QueryCreated{Query: query})
		return true, nil
	}

	old, err := s.store.Get(ctx, &model.QuerySearch{ID: &query.ID})
	if err != nil {
		return false, err
	}
	if err := s.store.Update(ctx, query); err != nil {
		return false, err
	}
	s.bus.Publish(ctx, eventbus.EventQueryUpdated, &eventbus.QueryUpdated{Old: old, New: query})
	return false, nil
}

// Delete publishes query_deleted BEFORE attempting the delete, so the
// event fires even when the delete then fails. The ordering is
// inherited behavior listeners depend on; changing it would be an
// observable contract change.
func (s *QueryService) Delete(ctx context.Context, query *model.Query) error {
	s.bus.Publish(ctx, eventbus.EventQueryDeleted, &eventbus.QueryDeleted{Query: query})
	return s.store.Delete(ctx, query.ID)
}
