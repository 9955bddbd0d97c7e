package export

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/grade-exporter/internal/model"
	"github.com/webitel/grade-exporter/internal/testutil"
)

func TestRunCachesGradeItem(t *testing.T) {
	src := seedSource()
	run := NewRun(src, testQuery(), []int64{5})

	for i := 0; i < 3; i++ {
		item, err := run.GradeItem(context.Background())
		require.NoError(t, err)
		require.NotNil(t, item)
		assert.Equal(t, int64(42), item.ID)
	}
	assert.Equal(t, 1, src.GetItemCalls)
}

func TestRunCachesMissingGradeItem(t *testing.T) {
	src := testutil.NewFakeSource()
	run := NewRun(src, testQuery(), []int64{5})

	for i := 0; i < 2; i++ {
		ok, err := run.CanPullGrades(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
	}
	// Absence is cached too.
	assert.Equal(t, 1, src.GetItemCalls)
}

func TestRunNilGradeItemID(t *testing.T) {
	src := seedSource()
	query := testQuery()
	query.GradeItemID = nil
	run := NewRun(src, query, []int64{5})

	ok, err := run.CanPullGrades(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, src.GetItemCalls)
}

func TestRunCachesSnapshots(t *testing.T) {
	src := seedSource()
	run := NewRun(src, testQuery(), []int64{5})

	users1, grades1, err := run.PullUserGrades(context.Background())
	require.NoError(t, err)
	users2, grades2, err := run.PullUserGrades(context.Background())
	require.NoError(t, err)

	assert.Same(t, users1, users2)
	assert.Same(t, grades1, grades2)
	assert.Equal(t, 1, src.PullUsersCalls)
	assert.Equal(t, 1, src.FetchGradesCalls)
}

func TestRunPullUsersGoneItem(t *testing.T) {
	src := testutil.NewFakeSource()
	run := NewRun(src, testQuery(), []int64{5})

	users, err := run.PullUsers(context.Background())
	require.NoError(t, err)
	assert.Nil(t, users)
	assert.Zero(t, src.PullUsersCalls)
}

func TestRunPullGradesEmptyUserSet(t *testing.T) {
	src := seedSource()
	src.UsersByCourse[100] = nil
	run := NewRun(src, testQuery(), []int64{5})

	grades, err := run.PullGrades(context.Background())
	require.NoError(t, err)
	assert.Nil(t, grades)
	assert.Equal(t, 1, src.PullUsersCalls)
	assert.Zero(t, src.FetchGradesCalls, "no grade query for an empty course")
}

func TestRunPullGradesOrder(t *testing.T) {
	src := seedSource()
	run := NewRun(src, testQuery(), []int64{5})

	grades, err := run.PullGrades(context.Background())
	require.NoError(t, err)
	require.NotNil(t, grades)
	assert.Equal(t, []int64{1, 2, 3}, grades.Order)

	g, ok := grades.Get(2)
	require.True(t, ok)
	assert.False(t, g.Graded())
}

func TestRunStateNotSharedAcrossRuns(t *testing.T) {
	src := seedSource()
	query := testQuery()

	_, err := NewRun(src, query, []int64{5}).PullUsers(context.Background())
	require.NoError(t, err)
	_, err = NewRun(src, query, []int64{5}).PullUsers(context.Background())
	require.NoError(t, err)

	// Two runs, two fetches: the cache never outlives its run.
	assert.Equal(t, 2, src.PullUsersCalls)
}

func TestRunGradesScopedToPulledUsers(t *testing.T) {
	src := seedSource()
	// A grade for someone outside the course roster must not leak in.
	src.GradesByItem[42] = append(src.GradesByItem[42], &model.Grade{UserID: 999, FinalGrade: ptrF(50)})
	run := NewRun(src, testQuery(), []int64{5})

	grades, err := run.PullGrades(context.Background())
	require.NoError(t, err)
	_, ok := grades.Get(999)
	assert.False(t, ok)
}
