package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	conf "github.com/webitel/grade-exporter/config"
	dberr "github.com/webitel/grade-exporter/internal/errors"
	"github.com/webitel/grade-exporter/internal/model"
	"github.com/webitel/grade-exporter/internal/sink"
	otelpgx "github.com/webitel/webitel-go-kit/infra/otel/instrumentation/pgx"
)

// Sink imports grades into an external Postgres database. Each import
// is bounded by the configured timeout; a timed-out record counts as a
// per-record failure, not a pipeline abort.
type Sink struct {
	config *conf.SinkConfig
	conn   *pgxpool.Pool
}

func New(config *conf.SinkConfig) *Sink {
	return &Sink{config: config}
}

func (s *Sink) Open() error {
	config, err := pgxpool.ParseConfig(s.config.Url)
	if err != nil {
		return err
	}

	config.ConnConfig.Tracer = otelpgx.NewTracer(otelpgx.WithTrimSQLInSpanName())

	conn, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return err
	}
	s.conn = conn
	slog.Debug("grade_exporter.sink.connection_opened", slog.String("message", "postgres: sink connection opened"))
	return nil
}

func (s *Sink) Close() error {
	if s.conn != nil {
		s.conn.Close()
		slog.Debug("grade_exporter.sink.connection_closed", slog.String("message", "postgres: sink connection closed"))
		s.conn = nil
	}
	return nil
}

// WithSession acquires one connection for the whole batch and releases
// it on every exit path, including a panic inside fn.
func (s *Sink) WithSession(ctx context.Context, externalID string, fn func(sink.Session) error) error {
	if s.conn == nil {
		return dberr.New("sink connection is not opened")
	}

	conn, err := s.conn.Acquire(ctx)
	if err != nil {
		return dberr.NewDBInternalError("sink_acquire", err)
	}
	defer conn.Release()

	return fn(&session{
		conn:       conn,
		externalID: externalID,
		timeout:    s.config.Timeout,
	})
}

type session struct {
	conn       *pgxpool.Conn
	externalID string
	timeout    time.Duration
}

func (s *session) Import(ctx context.Context, user *model.User, grade *model.Grade) bool {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	_, err := s.conn.Exec(ctx, `
		INSERT INTO grade_import
			(external_id, user_idnumber, grade, exported_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (external_id, user_idnumber)
		DO UPDATE SET grade = EXCLUDED.grade, exported_at = EXCLUDED.exported_at
	`, s.externalID, user.IDNumber, *grade.FinalGrade, time.Now().UnixMilli())
	if err != nil {
		// Timeout and rejection alike: one failed record.
		slog.WarnContext(ctx, "grade_exporter.sink.import_failed",
			"external_id", s.externalID,
			"user_id", user.ID,
			"error", err)
		return false
	}

	return true
}
