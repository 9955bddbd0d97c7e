package source

import (
	"context"

	"github.com/webitel/grade-exporter/internal/model"
)

// GradeSource reads gradebook data from the learning-management host.
// It is strictly read-only and must be read-consistent within one call;
// nothing is guaranteed across calls.
type GradeSource interface {
	// GetGradeItem resolves a grade item, or returns nil when the item
	// no longer exists. A missing item is an expected state for a stale
	// query, not an error.
	GetGradeItem(ctx context.Context, id int64) (*model.GradeItem, error)
	// PullCourseUsers returns the members of the course holding any of
	// the given roles, in a stable order.
	PullCourseUsers(ctx context.Context, courseID int64, roleIDs []int64) (*model.UserSnapshot, error)
	// FetchGrades returns the current grades of exactly the given users
	// against the grade item.
	FetchGrades(ctx context.Context, itemID int64, userIDs []int64) (*model.GradeSnapshot, error)
}
