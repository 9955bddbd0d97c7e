package sink

import (
	"context"

	"github.com/webitel/grade-exporter/internal/model"
)

// Session is one scoped connection to the external datastore, bound to
// a single external identifier. Import reports per-record success; a
// false result never aborts the batch.
type Session interface {
	Import(ctx context.Context, user *model.User, grade *model.Grade) bool
}

// Sink hands out scoped sessions. The session is released on every
// exit path of fn, including panics, so a listener or iteration fault
// can never leak a connection.
type Sink interface {
	WithSession(ctx context.Context, externalID string, fn func(Session) error) error
}
