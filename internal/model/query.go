package model

// Query links an external identifier to one host grade item. Automated
// queries are picked up by the scheduler; manual ones are triggered
// explicitly.
type Query struct {
	ID          int64   `db:"id"`
	ExternalID  *string `db:"external_id"`
	GradeItemID *int64  `db:"grade_item_id"`
	Automated   bool    `db:"automated"`
}

// ExternalName returns the identifier the sink knows this query by.
func (q *Query) ExternalName() string {
	if q.ExternalID == nil {
		return ""
	}
	return *q.ExternalID
}

func (q *Query) IsAutomated() bool {
	return q.Automated
}

// Valid reports whether the query can be persisted.
func (q *Query) Valid() bool {
	return q.ExternalID != nil && *q.ExternalID != "" && q.GradeItemID != nil
}

// QuerySearch is the filter accepted by QueryStore lookups. Nil fields
// are not constrained.
type QuerySearch struct {
	ID          *int64
	ExternalID  *string
	GradeItemID *int64
	Automated   *bool
}
