package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGradeGraded(t *testing.T) {
	final := 85.0
	assert.True(t, (&Grade{UserID: 1, FinalGrade: &final}).Graded())
	assert.False(t, (&Grade{UserID: 2}).Graded())

	var nilGrade *Grade
	assert.False(t, nilGrade.Graded())
}

func TestGradeSnapshotKeepsOrder(t *testing.T) {
	s := NewGradeSnapshot()
	for _, id := range []int64{3, 1, 2} {
		s.Add(&Grade{UserID: id})
	}
	assert.Equal(t, []int64{3, 1, 2}, s.Order)

	// Re-adding replaces the grade but keeps the original position.
	updated := 50.0
	s.Add(&Grade{UserID: 1, FinalGrade: &updated})
	assert.Equal(t, []int64{3, 1, 2}, s.Order)
	g, ok := s.Get(1)
	assert.True(t, ok)
	assert.Equal(t, &updated, g.FinalGrade)
}

func TestSnapshotNilLen(t *testing.T) {
	var users *UserSnapshot
	var grades *GradeSnapshot
	assert.Zero(t, users.Len())
	assert.Zero(t, grades.Len())
}

func TestOutcomeClean(t *testing.T) {
	clean := &ExportOutcome{Successes: []ExportResult{{UserID: 1, FinalGrade: 85}}}
	assert.True(t, clean.Clean())

	tainted := &ExportOutcome{Errors: []ExportResult{{UserID: 3, FinalGrade: 60}}}
	assert.False(t, tainted.Clean())

	// An empty run has no failures.
	assert.True(t, (&ExportOutcome{}).Clean())
}

func TestOutcomeAttempted(t *testing.T) {
	outcome := &ExportOutcome{
		Successes: []ExportResult{{UserID: 1, FinalGrade: 85}},
		Errors:    []ExportResult{{UserID: 3, FinalGrade: 60}},
	}
	assert.Equal(t, []ExportResult{{UserID: 1, FinalGrade: 85}, {UserID: 3, FinalGrade: 60}}, outcome.Attempted())
}
