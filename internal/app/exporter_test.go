package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/grade-exporter/internal/eventbus"
	"github.com/webitel/grade-exporter/internal/export"
	"github.com/webitel/grade-exporter/internal/model"
	"github.com/webitel/grade-exporter/internal/testutil"
)

type exporterFixture struct {
	service *ExporterService
	queries *testutil.FakeQueryStore
	history *testutil.FakeHistoryStore
	cache   *testutil.FakeCache
	source  *testutil.FakeSource
	sink    *testutil.FakeSink
	queryID int64
}

// newExporterFixture assembles a full service over in-memory fakes
// with one ready-to-export query: item 42 in course 100, users 1 and
// 3 graded, user 2 not yet gradable.
func newExporterFixture(t *testing.T) *exporterFixture {
	t.Helper()

	src := testutil.NewFakeSource()
	src.Items[42] = &model.GradeItem{ID: 42, CourseID: 100, Name: "final exam"}
	src.UsersByCourse[100] = []*model.User{
		{ID: 1, Username: "alice", IDNumber: "a-001"},
		{ID: 2, Username: "bob", IDNumber: "b-002"},
		{ID: 3, Username: "carol", IDNumber: "c-003"},
	}
	src.GradesByItem[42] = []*model.Grade{
		{UserID: 1, FinalGrade: ptrF(85)},
		{UserID: 2, FinalGrade: nil},
		{UserID: 3, FinalGrade: ptrF(60)},
	}

	snk := testutil.NewFakeSink()
	engine := export.NewEngine(src, snk, eventbus.New(), []int64{5}, nil)

	queries := testutil.NewFakeQueryStore()
	id, err := queries.Insert(context.Background(), &model.Query{ExternalID: ptrS("ext-course"), GradeItemID: ptrI(42)})
	require.NoError(t, err)

	history := testutil.NewFakeHistoryStore()
	runCache := testutil.NewFakeCache()

	service, err := NewExporterService(engine, queries, history, runCache, nil)
	require.NoError(t, err)

	return &exporterFixture{
		service: service,
		queries: queries,
		history: history,
		cache:   runCache,
		source:  src,
		sink:    snk,
		queryID: id,
	}
}

func TestTriggerExport(t *testing.T) {
	f := newExporterFixture(t)

	task, err := f.service.TriggerExport(context.Background(), f.queryID, ptrI(12))
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, f.queryID, task.QueryID)
	assert.Equal(t, ptrI(12), task.TriggeredBy)

	require.Len(t, f.cache.Tasks, 1)
	status, err := f.cache.GetRunStatus(f.queryID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusPending, status)
}

func TestTriggerExportDeduplicates(t *testing.T) {
	f := newExporterFixture(t)

	_, err := f.service.TriggerExport(context.Background(), f.queryID, nil)
	require.NoError(t, err)

	_, err = f.service.TriggerExport(context.Background(), f.queryID, nil)
	require.Error(t, err, "second trigger while pending must be refused")
	assert.Len(t, f.cache.Tasks, 1)
}

func TestTriggerExportUnknownQuery(t *testing.T) {
	f := newExporterFixture(t)

	_, err := f.service.TriggerExport(context.Background(), 404, nil)
	require.Error(t, err)
	assert.Empty(t, f.cache.Tasks)
}

func TestProcessTaskRecordsHistory(t *testing.T) {
	f := newExporterFixture(t)
	ctx := context.Background()

	task, err := f.service.TriggerExport(ctx, f.queryID, nil)
	require.NoError(t, err)
	require.NoError(t, f.service.ProcessTask(ctx, *task))

	record, err := f.service.LastExport(ctx, f.queryID, false)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.True(t, record.Success)

	items, err := f.history.GetExportedItems(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int64]float64{1: 85, 3: 60}, items)

	status, err := f.cache.GetRunStatus(f.queryID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusDone, status)
}

func TestProcessTaskFailedRecordMarksRunUnsuccessful(t *testing.T) {
	f := newExporterFixture(t)
	f.sink.Reject[3] = true
	ctx := context.Background()

	task, err := f.service.TriggerExport(ctx, f.queryID, nil)
	require.NoError(t, err)
	require.NoError(t, f.service.ProcessTask(ctx, *task))

	record, err := f.service.LastExport(ctx, f.queryID, false)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.False(t, record.Success, "one failed record taints the run")

	// Errors are persisted alongside successes.
	items, err := f.history.GetExportedItems(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int64]float64{1: 85, 3: 60}, items)

	// The unsuccessful record is invisible through the success filter.
	successful, err := f.service.LastExport(ctx, f.queryID, true)
	require.NoError(t, err)
	assert.Nil(t, successful)
}

func TestProcessTaskStaleQueryWritesNoHistory(t *testing.T) {
	f := newExporterFixture(t)
	ctx := context.Background()

	task, err := f.service.TriggerExport(ctx, f.queryID, nil)
	require.NoError(t, err)

	// The grade item disappears between enqueue and processing.
	delete(f.source.Items, 42)
	require.NoError(t, f.service.ProcessTask(ctx, *task))

	assert.Empty(t, f.history.Records)
	status, err := f.cache.GetRunStatus(f.queryID)
	require.NoError(t, err)
	assert.Empty(t, status, "run status cleared so the query can be retriggered")
}

func TestProcessTaskDeletedQuery(t *testing.T) {
	f := newExporterFixture(t)
	ctx := context.Background()

	task, err := f.service.TriggerExport(ctx, f.queryID, nil)
	require.NoError(t, err)
	require.NoError(t, f.queries.Delete(ctx, f.queryID))

	err = f.service.ProcessTask(ctx, *task)
	require.Error(t, err)
	assert.Empty(t, f.history.Records)
	assert.Zero(t, f.sink.SessionsOpened)
}

func TestWipeHistory(t *testing.T) {
	f := newExporterFixture(t)
	ctx := context.Background()

	task, err := f.service.TriggerExport(ctx, f.queryID, nil)
	require.NoError(t, err)
	require.NoError(t, f.service.ProcessTask(ctx, *task))
	require.NotEmpty(t, f.history.Records)

	require.NoError(t, f.service.WipeHistory(ctx, f.queryID))
	record, err := f.service.LastExport(ctx, f.queryID, false)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestExportedItemsFiltersUnresolvableUsers(t *testing.T) {
	f := newExporterFixture(t)
	ctx := context.Background()

	task, err := f.service.TriggerExport(ctx, f.queryID, nil)
	require.NoError(t, err)
	require.NoError(t, f.service.ProcessTask(ctx, *task))

	record, err := f.service.LastExport(ctx, f.queryID, false)
	require.NoError(t, err)
	query, err := f.queries.Get(ctx, &model.QuerySearch{ID: &f.queryID})
	require.NoError(t, err)

	// User 3 left the course after the run was recorded.
	f.source.UsersByCourse[100] = f.source.UsersByCourse[100][:2]

	items, err := f.service.ExportedItems(ctx, query, record)
	require.NoError(t, err)
	assert.Equal(t, map[int64]float64{1: 85}, items)
}
