package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/grade-exporter/internal/model"
)

func TestSchedulerEnqueuesAutomatedOnly(t *testing.T) {
	f := newExporterFixture(t)
	ctx := context.Background()

	automated, err := f.queries.Insert(ctx, &model.Query{ExternalID: ptrS("auto-1"), GradeItemID: ptrI(42), Automated: true})
	require.NoError(t, err)
	_, err = f.queries.Insert(ctx, &model.Query{ExternalID: ptrS("auto-2"), GradeItemID: ptrI(42), Automated: true})
	require.NoError(t, err)

	scheduler, err := NewScheduler("@hourly", f.queries, f.service, nil)
	require.NoError(t, err)
	require.NoError(t, scheduler.EnqueueAutomated(ctx))

	// The fixture's manual query is left alone.
	assert.Len(t, f.cache.Tasks, 2)
	for _, task := range f.cache.Tasks {
		assert.NotEqual(t, f.queryID, task.QueryID)
	}
	status, err := f.cache.GetRunStatus(automated)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusPending, status)
}

func TestSchedulerSkipsInFlightRuns(t *testing.T) {
	f := newExporterFixture(t)
	ctx := context.Background()

	id, err := f.queries.Insert(ctx, &model.Query{ExternalID: ptrS("auto-1"), GradeItemID: ptrI(42), Automated: true})
	require.NoError(t, err)
	require.NoError(t, f.cache.SetRunStatus(id, model.RunStatusProcessing))

	require.NoError(t, scheduleOnce(t, f))
	assert.Empty(t, f.cache.Tasks, "in-flight run covers this tick")
}

func TestSchedulerRejectsInvalidSpec(t *testing.T) {
	f := newExporterFixture(t)

	_, err := NewScheduler("not a cron spec", f.queries, f.service, nil)
	require.Error(t, err)
}

func scheduleOnce(t *testing.T, f *exporterFixture) error {
	t.Helper()
	scheduler, err := NewScheduler("@hourly", f.queries, f.service, nil)
	require.NoError(t, err)
	return scheduler.EnqueueAutomated(context.Background())
}
