package export

import (
	"context"

	"github.com/webitel/grade-exporter/internal/model"
	"github.com/webitel/grade-exporter/internal/source"
)

// Run owns the transient state of one export run: the resolved grade
// item and the user/grade snapshots. Snapshots are fetched once and
// cached for the lifetime of the run, never across runs.
type Run struct {
	source source.GradeSource
	query  *model.Query
	roles  []int64

	item        *model.GradeItem
	itemFetched bool
	users       *model.UserSnapshot
	grades      *model.GradeSnapshot
}

func NewRun(src source.GradeSource, query *model.Query, roles []int64) *Run {
	return &Run{source: src, query: query, roles: roles}
}

// GradeItem resolves the query's grade item once per run. Nil means
// the item no longer exists on the host.
func (r *Run) GradeItem(ctx context.Context) (*model.GradeItem, error) {
	if r.itemFetched {
		return r.item, nil
	}
	if r.query.GradeItemID == nil {
		r.itemFetched = true
		return nil, nil
	}

	item, err := r.source.GetGradeItem(ctx, *r.query.GradeItemID)
	if err != nil {
		return nil, err
	}
	r.item = item
	r.itemFetched = true
	return r.item, nil
}

// CanPullGrades reports whether the referenced grade item still exists.
// False is a normal state for a stale query, not a failure.
func (r *Run) CanPullGrades(ctx context.Context) (bool, error) {
	item, err := r.GradeItem(ctx)
	if err != nil {
		return false, err
	}
	return item != nil, nil
}

// PullUsers fetches the gradable users of the item's course. Nil when
// the grade item is gone. A second call returns the cached snapshot
// without touching the source.
func (r *Run) PullUsers(ctx context.Context) (*model.UserSnapshot, error) {
	if r.users != nil {
		return r.users, nil
	}

	item, err := r.GradeItem(ctx)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	users, err := r.source.PullCourseUsers(ctx, item.CourseID, r.roles)
	if err != nil {
		return nil, err
	}
	r.users = users
	return r.users, nil
}

// PullGrades fetches grades for exactly the pulled users. Nil when the
// grade item is gone or the user set is empty. Cached per run.
func (r *Run) PullGrades(ctx context.Context) (*model.GradeSnapshot, error) {
	if r.grades != nil {
		return r.grades, nil
	}

	users, err := r.PullUsers(ctx)
	if err != nil {
		return nil, err
	}
	if users.Len() == 0 {
		return nil, nil
	}

	item, err := r.GradeItem(ctx)
	if err != nil {
		return nil, err
	}

	grades, err := r.source.FetchGrades(ctx, item.ID, users.IDs)
	if err != nil {
		return nil, err
	}
	r.grades = grades
	return r.grades, nil
}

// PullUserGrades is the convenience composition of PullUsers and
// PullGrades.
func (r *Run) PullUserGrades(ctx context.Context) (*model.UserSnapshot, *model.GradeSnapshot, error) {
	users, err := r.PullUsers(ctx)
	if err != nil {
		return nil, nil, err
	}
	grades, err := r.PullGrades(ctx)
	if err != nil {
		return nil, nil, err
	}
	return users, grades, nil
}
