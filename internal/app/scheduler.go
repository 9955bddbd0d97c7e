package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/webitel/grade-exporter/internal/errors"
	"github.com/webitel/grade-exporter/internal/model"
	"github.com/webitel/grade-exporter/internal/store"
	"golang.org/x/sync/errgroup"
)

// Scheduler enqueues every automated query on the configured cron
// spec. Manual queries are never scheduled; they go through
// TriggerExport explicitly.
type Scheduler struct {
	cron     *cron.Cron
	queries  store.QueryStore
	exporter *ExporterService
	log      *slog.Logger
}

func NewScheduler(schedule string, qs store.QueryStore, exporter *ExporterService, log *slog.Logger) (*Scheduler, error) {
	if qs == nil || exporter == nil {
		return nil, errors.Internal("scheduler dependencies are nil")
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Scheduler{
		cron:     cron.New(),
		queries:  qs,
		exporter: exporter,
		log:      log,
	}

	if _, err := s.cron.AddFunc(schedule, func() {
		if err := s.EnqueueAutomated(context.Background()); err != nil {
			s.log.Error("grade_exporter.scheduler.tick_failed", "error", err)
		}
	}); err != nil {
		return nil, errors.Internal("invalid export schedule", errors.WithCause(err))
	}

	return s, nil
}

// EnqueueAutomated pushes one task per automated query. A query with a
// run already in flight is skipped quietly; the in-flight run covers
// this tick.
func (s *Scheduler) EnqueueAutomated(ctx context.Context) error {
	automated := true
	queries, err := s.queries.Search(ctx, &model.QuerySearch{Automated: &automated})
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, query := range queries {
		g.Go(func() error {
			if _, err := s.exporter.TriggerExport(ctx, query.ID, nil); err != nil {
				s.log.Debug("grade_exporter.scheduler.enqueue_skipped",
					"query_id", query.ID,
					"reason", err.Error())
			}
			return nil
		})
	}

	return g.Wait()
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("grade_exporter.scheduler.started")
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("grade_exporter.scheduler.stopped")
}
