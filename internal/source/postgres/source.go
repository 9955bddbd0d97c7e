package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	conf "github.com/webitel/grade-exporter/config"
	dberr "github.com/webitel/grade-exporter/internal/errors"
	"github.com/webitel/grade-exporter/internal/model"
	otelpgx "github.com/webitel/webitel-go-kit/infra/otel/instrumentation/pgx"
)

// Source reads the host gradebook database. It never writes.
type Source struct {
	config *conf.SourceConfig
	conn   *pgxpool.Pool
}

func New(config *conf.SourceConfig) *Source {
	return &Source{config: config}
}

func (s *Source) Open() error {
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
	slog.Debug("grade_exporter.source.connection_opened", slog.String("message", "postgres: gradebook connection opened"))
	return nil
}

func (s *Source) Close() error {
	if s.conn != nil {
		s.conn.Close()
		slog.Debug("grade_exporter.source.connection_closed", slog.String("message", "postgres: gradebook connection closed"))
		s.conn = nil
	}
	return nil
}

func (s *Source) database() (*pgxpool.Pool, error) {
	if s.conn == nil {
		return nil, dberr.New("gradebook connection is not opened")
	}
	return s.conn, nil
}

func (s *Source) GetGradeItem(ctx context.Context, id int64) (*model.GradeItem, error) {
	db, err := s.database()
	if err != nil {
		return nil, dberr.NewDBInternalError("get_grade_item", err)
	}

	var item model.GradeItem
	err = db.QueryRow(ctx, `
		SELECT id, course_id, item_name
		FROM grade_items
		WHERE id = $1
	`, id).Scan(&item.ID, &item.CourseID, &item.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Deleted grade item: the query referencing it is stale.
			return nil, nil
		}
		return nil, dberr.NewDBInternalError("get_grade_item", err)
	}

	return &item, nil
}

func (s *Source) PullCourseUsers(ctx context.Context, courseID int64, roleIDs []int64) (*model.UserSnapshot, error) {
	db, err := s.database()
	if err != nil {
		return nil, dberr.NewDBInternalError("pull_course_users", err)
	}

	rows, err := db.Query(ctx, `
		SELECT DISTINCT u.id, u.username, u.idnumber, u.email
		FROM users u
		JOIN role_assignments ra ON ra.user_id = u.id
		WHERE ra.course_id = $1
		  AND ra.role_id = ANY($2)
		ORDER BY u.id
	`, courseID, roleIDs)
	if err != nil {
		return nil, dberr.NewDBInternalError("pull_course_users", err)
	}
	defer rows.Close()

	snapshot := model.NewUserSnapshot()
	for rows.Next() {
		var user model.User
		if err := rows.Scan(&user.ID, &user.Username, &user.IDNumber, &user.Email); err != nil {
			return nil, dberr.NewDBInternalError("pull_course_users", err)
		}
		snapshot.Add(&user)
	}
	if err = rows.Err(); err != nil {
		return nil, dberr.NewDBInternalError("pull_course_users", err)
	}

	return snapshot, nil
}

func (s *Source) FetchGrades(ctx context.Context, itemID int64, userIDs []int64) (*model.GradeSnapshot, error) {
	db, err := s.database()
	if err != nil {
		return nil, dberr.NewDBInternalError("fetch_grades", err)
	}

	rows, err := db.Query(ctx, `
		SELECT user_id, final_grade
		FROM grade_grades
		WHERE item_id = $1
		  AND user_id = ANY($2)
		ORDER BY user_id
	`, itemID, userIDs)
	if err != nil {
		return nil, dberr.NewDBInternalError("fetch_grades", err)
	}
	defer rows.Close()

	snapshot := model.NewGradeSnapshot()
	for rows.Next() {
		var grade model.Grade
		if err := rows.Scan(&grade.UserID, &grade.FinalGrade); err != nil {
			return nil, dberr.NewDBInternalError("fetch_grades", err)
		}
		snapshot.Add(&grade)
	}
	if err = rows.Err(); err != nil {
		return nil, dberr.NewDBInternalError("fetch_grades", err)
	}

	return snapshot, nil
}
