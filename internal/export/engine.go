package export

import (
	"context"
	"log/slog"

	"github.com/webitel/grade-exporter/internal/eventbus"
	"github.com/webitel/grade-exporter/internal/model"
	"github.com/webitel/grade-exporter/internal/sink"
	"github.com/webitel/grade-exporter/internal/source"
)

// Engine runs the export pipeline for one query: pull, pre-export
// event, per-record import, post-export event. All collaborators are
// injected; the engine holds no connection state of its own.
type Engine struct {
	source source.GradeSource
	sink   sink.Sink
	bus    *eventbus.Bus
	roles  []int64
	log    *slog.Logger
}

func NewEngine(src source.GradeSource, snk sink.Sink, bus *eventbus.Bus, roles []int64, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{source: src, sink: snk, bus: bus, roles: roles, log: log}
}

// NewRun builds a fresh per-run context for the query. Callers that
// need the current user set outside an export (history joins) reuse
// this.
func (e *Engine) NewRun(query *model.Query) *Run {
	return NewRun(e.source, query, e.roles)
}

// ExportGrades executes one run. A nil outcome with a nil error means
// the query's grade item is gone: nothing was exported, no sink call
// was made and no history should be written.
//
// Success/failure is partitioned per user-grade pair: one rejected row
// never aborts the batch. That partial-failure contract is the reason
// this pipeline exists.
func (e *Engine) ExportGrades(ctx context.Context, query *model.Query, triggeredBy *int64) (*model.ExportOutcome, error) {
	run := e.NewRun(query)

	ok, err := run.CanPullGrades(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.log.InfoContext(ctx, "grade_exporter.export.grade_item_missing",
			"query_id", query.ID)
		return nil, nil
	}

	users, grades, err := run.PullUserGrades(ctx)
	if err != nil {
		return nil, err
	}
	if grades == nil {
		grades = model.NewGradeSnapshot()
	}

	// Listeners may swap the snapshots; honor their version, not ours.
	pre := &eventbus.PreExportGrades{Query: query, Users: users, Grades: grades}
	e.bus.Publish(ctx, eventbus.EventPreExportGrades, pre)
	users, grades = pre.Users, pre.Grades

	outcome := &model.ExportOutcome{}
	err = e.sink.WithSession(ctx, query.ExternalName(), func(session sink.Session) error {
		for _, userID := range grades.Order {
			grade := grades.Grades[userID]

			if !grade.Graded() {
				// Not gradable yet: neither success nor error.
				continue
			}

			result := model.ExportResult{UserID: grade.UserID, FinalGrade: *grade.FinalGrade}

			user, found := users.Get(grade.UserID)
			if !found {
				// The user and grade snapshots diverged mid-run. Keep
				// the record visible instead of dropping it.
				e.log.ErrorContext(ctx, "grade_exporter.export.grade_without_user",
					"query_id", query.ID,
					"user_id", grade.UserID)
				outcome.Inconsistencies++
				outcome.Errors = append(outcome.Errors, result)
				continue
			}

			if session.Import(ctx, user, grade) {
				outcome.Successes = append(outcome.Successes, result)
			} else {
				outcome.Errors = append(outcome.Errors, result)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.bus.Publish(ctx, eventbus.EventExportedGrades, &eventbus.ExportedGrades{
		Query:       query,
		TriggeredBy: triggeredBy,
		Results:     outcome.Successes,
		Errors:      outcome.Errors,
	})

	e.log.InfoContext(ctx, "grade_exporter.export.completed",
		"query_id", query.ID,
		"successes", len(outcome.Successes),
		"errors", len(outcome.Errors),
		"inconsistencies", outcome.Inconsistencies)

	return outcome, nil
}
