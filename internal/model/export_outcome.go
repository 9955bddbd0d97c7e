package model

// ExportResult is one attempted user-grade pair.
type ExportResult struct {
	UserID     int64   `json:"user_id"`
	FinalGrade float64 `json:"final_grade"`
}

// ExportOutcome aggregates one export run. Every grade with a non-nil
// final grade lands in exactly one of Successes/Errors; ungraded users
// appear in neither. Inconsistencies counts grades whose user was
// missing from the user snapshot (those are also appended to Errors so
// they stay visible to callers).
type ExportOutcome struct {
	Successes       []ExportResult `json:"successes"`
	Errors          []ExportResult `json:"errors"`
	Inconsistencies int            `json:"inconsistencies,omitempty"`
}

// Attempted returns successes and errors in one list, the shape the
// history store persists.
func (o *ExportOutcome) Attempted() []ExportResult {
	out := make([]ExportResult, 0, len(o.Successes)+len(o.Errors))
	out = append(out, o.Successes...)
	out = append(out, o.Errors...)
	return out
}

// Clean reports whether the run finished without a single failed
// record. Used as the history success flag.
func (o *ExportOutcome) Clean() bool {
	return len(o.Errors) == 0
}
