package test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	conf "github.com/webitel/grade-exporter/config"
	"github.com/webitel/grade-exporter/internal/model"
	"github.com/webitel/grade-exporter/internal/store/postgres"
)

const testSchema = `
	CREATE SCHEMA IF NOT EXISTS grade_exporter;
	CREATE TABLE IF NOT EXISTS grade_exporter.queries (
		id            bigserial PRIMARY KEY,
		external_id   text      NOT NULL,
		grade_item_id bigint,
		automated     boolean   NOT NULL DEFAULT false,
		UNIQUE (external_id)
	);
	CREATE TABLE IF NOT EXISTS grade_exporter.export_history (
		id        bigserial PRIMARY KEY,
		query_id  bigint    NOT NULL,
		timestamp bigint    NOT NULL,
		success   boolean   NOT NULL
	);
	CREATE TABLE IF NOT EXISTS grade_exporter.export_items (
		history_id bigint           NOT NULL,
		user_id    bigint           NOT NULL,
		grade      double precision NOT NULL
	);
	TRUNCATE grade_exporter.export_items, grade_exporter.export_history, grade_exporter.queries;
`

func getTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := os.Getenv("DATA_SOURCE")
	if dsn == "" {
		t.Skip("DATA_SOURCE not set, skipping postgres integration test")
	}

	s := postgres.New(&conf.DatabaseConfig{Url: dsn})
	if err := s.Open(); err != nil {
		t.Fatalf("Failed to connect to Postgres: %v. Ensure Postgres is running.", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	db, err := s.Database()
	require.NoError(t, err)
	if _, err := db.Exec(context.Background(), testSchema); err != nil {
		t.Fatalf("Failed to prepare test schema: %v", err)
	}
	return s
}

func ptrI(v int64) *int64   { return &v }
func ptrS(v string) *string { return &v }

func TestQueryCRUD(t *testing.T) {
	s := getTestStore(t)
	ctx := context.Background()
	qs := s.Query()

	id, err := qs.Insert(ctx, &model.Query{ExternalID: ptrS("crud-1"), GradeItemID: ptrI(42)})
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := qs.Get(ctx, &model.QuerySearch{ID: &id})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "crud-1", got.ExternalName())
	assert.Equal(t, int64(42), *got.GradeItemID)
	assert.False(t, got.Automated)

	got.Automated = true
	require.NoError(t, qs.Update(ctx, got))

	automated := true
	matches, err := qs.Search(ctx, &model.QuerySearch{Automated: &automated})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Contains(t, matches, id)

	require.NoError(t, qs.Delete(ctx, id))
	got, err = qs.Get(ctx, &model.QuerySearch{ID: &id})
	require.NoError(t, err)
	assert.Nil(t, got, "zero matches must come back as nil, not an error")
}

func TestQueryUpdateMissing(t *testing.T) {
	s := getTestStore(t)

	err := s.Query().Update(context.Background(), &model.Query{ID: 404, ExternalID: ptrS("ghost"), GradeItemID: ptrI(1)})
	require.Error(t, err)
}

func TestQueryDuplicateExternalID(t *testing.T) {
	s := getTestStore(t)
	ctx := context.Background()
	qs := s.Query()

	_, err := qs.Insert(ctx, &model.Query{ExternalID: ptrS("dup"), GradeItemID: ptrI(1)})
	require.NoError(t, err)
	_, err = qs.Insert(ctx, &model.Query{ExternalID: ptrS("dup"), GradeItemID: ptrI(2)})
	require.Error(t, err, "unique violation must surface as an error")
}

func TestHistoryRoundTrip(t *testing.T) {
	s := getTestStore(t)
	ctx := context.Background()
	hs := s.History()

	queryID, err := s.Query().Insert(ctx, &model.Query{ExternalID: ptrS("hist-1"), GradeItemID: ptrI(42)})
	require.NoError(t, err)

	none, err := hs.GetLastExport(ctx, queryID, false)
	require.NoError(t, err)
	assert.Nil(t, none, "no history yet is a normal state")

	outcome := &model.ExportOutcome{
		Successes: []model.ExportResult{{UserID: 1, FinalGrade: 85}},
		Errors:    []model.ExportResult{{UserID: 3, FinalGrade: 60}},
	}
	record, err := hs.InsertExport(ctx, queryID, outcome, outcome.Clean())
	require.NoError(t, err)
	require.NotZero(t, record.ID)
	assert.False(t, record.Success)

	items, err := hs.GetExportedItems(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int64]float64{1: 85, 3: 60}, items)

	// The failed run is invisible through the success filter.
	successful, err := hs.GetLastExport(ctx, queryID, true)
	require.NoError(t, err)
	assert.Nil(t, successful)

	clean := &model.ExportOutcome{Successes: []model.ExportResult{{UserID: 1, FinalGrade: 90}}}
	second, err := hs.InsertExport(ctx, queryID, clean, clean.Clean())
	require.NoError(t, err)

	last, err := hs.GetLastExport(ctx, queryID, true)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, second.ID, last.ID)
}

func TestHistoryEmptyOutcome(t *testing.T) {
	s := getTestStore(t)
	ctx := context.Background()
	hs := s.History()

	queryID, err := s.Query().Insert(ctx, &model.Query{ExternalID: ptrS("empty-1"), GradeItemID: ptrI(42)})
	require.NoError(t, err)

	// An empty course still records a (clean) run with zero items.
	record, err := hs.InsertExport(ctx, queryID, &model.ExportOutcome{}, true)
	require.NoError(t, err)
	assert.True(t, record.Success)

	items, err := hs.GetExportedItems(ctx, record.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestWipeHistory(t *testing.T) {
	s := getTestStore(t)
	ctx := context.Background()
	hs := s.History()

	queryID, err := s.Query().Insert(ctx, &model.Query{ExternalID: ptrS("wipe-1"), GradeItemID: ptrI(42)})
	require.NoError(t, err)

	outcome := &model.ExportOutcome{Successes: []model.ExportResult{{UserID: 1, FinalGrade: 85}}}
	record, err := hs.InsertExport(ctx, queryID, outcome, true)
	require.NoError(t, err)

	require.NoError(t, hs.WipeHistory(ctx, queryID))

	last, err := hs.GetLastExport(ctx, queryID, false)
	require.NoError(t, err)
	assert.Nil(t, last)

	items, err := hs.GetExportedItems(ctx, record.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	// Wiping a query with no history is a no-op.
	require.NoError(t, hs.WipeHistory(ctx, queryID))
}
