package postgres

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	dberr "github.com/webitel/grade-exporter/internal/errors"
	"github.com/webitel/grade-exporter/internal/model"
	"github.com/webitel/grade-exporter/internal/store"
)

type Query struct {
	storage *Store
}

func (q *Query) Search(ctx context.Context, filter *model.QuerySearch) (map[int64]*model.Query, error) {
	db, err := q.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError("search_queries", err)
	}

	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	query := psql.
		Select("id", "external_id", "grade_item_id", "automated").
		From("grade_exporter.queries").
		OrderBy("id")

	if filter != nil {
		if filter.ID != nil {
			query = query.Where(sq.Eq{"id": *filter.ID})
		}
		if filter.ExternalID != nil {
			query = query.Where(sq.Eq{"external_id": *filter.ExternalID})
		}
		if filter.GradeItemID != nil {
			query = query.Where(sq.Eq{"grade_item_id": *filter.GradeItemID})
		}
		if filter.Automated != nil {
			query = query.Where(sq.Eq{"automated": *filter.Automated})
		}
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, dberr.NewDBInternalError("search_queries", err)
	}

	rows, err := db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, dberr.NewDBInternalError("search_queries", err)
	}
	defer rows.Close()

	result := make(map[int64]*model.Query)
	for rows.Next() {
		var record model.Query
		if err := rows.Scan(&record.ID, &record.ExternalID, &record.GradeItemID, &record.Automated); err != nil {
			return nil, dberr.NewDBInternalError("search_queries", err)
		}
		result[record.ID] = &record
	}
	if err = rows.Err(); err != nil {
		return nil, dberr.NewDBInternalError("search_queries", err)
	}

	return result, nil
}

// Get returns the first match of the filter, or nil when nothing
// matches. Zero matches is a normal state, not an error.
func (q *Query) Get(ctx context.Context, filter *model.QuerySearch) (*model.Query, error) {
	matches, err := q.Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, match := range matches {
		return match, nil
	}
	return nil, nil
}

func (q *Query) Insert(ctx context.Context, input *model.Query) (int64, error) {
	db, err := q.storage.Database()
	if err != nil {
		return 0, dberr.NewDBInternalError("insert_query", err)
	}

	query := `
		INSERT INTO grade_exporter.queries
			(external_id, grade_item_id, automated)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var id int64
	err = db.QueryRow(ctx, query, input.ExternalID, input.GradeItemID, input.Automated).Scan(&id)
	if err != nil {
		return 0, classifyPgError("insert_query", err)
	}

	return id, nil
}

func (q *Query) Update(ctx context.Context, input *model.Query) error {
	db, err := q.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError("update_query", err)
	}

	query := `
		UPDATE grade_exporter.queries
		SET external_id = $1,
		    grade_item_id = $2,
		    automated = $3
		WHERE id = $4
	`

	cmd, err := db.Exec(ctx, query, input.ExternalID, input.GradeItemID, input.Automated, input.ID)
	if err != nil {
		return classifyPgError("update_query", err)
	}
	if cmd.RowsAffected() == 0 {
		return dberr.NewDBNotFoundError("update_query", "no query record found")
	}

	return nil
}

func (q *Query) Delete(ctx context.Context, id int64) error {
	db, err := q.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError("delete_query", err)
	}

	cmd, err := db.Exec(ctx, `DELETE FROM grade_exporter.queries WHERE id = $1`, id)
	if err != nil {
		return dberr.NewDBInternalError("delete_query", err)
	}
	if cmd.RowsAffected() == 0 {
		return dberr.NewDBNotFoundError("delete_query", "no query record found")
	}

	return nil
}

// classifyPgError maps Postgres error codes onto the store error
// taxonomy.
func classifyPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return &dberr.DBUniqueViolationError{
				DBError: *dberr.NewDBError(op, pgErr.Message),
				Column:  pgErr.ConstraintName,
			}
		case "23503": // foreign_key_violation
			return &dberr.DBForeignKeyViolationError{
				DBError:         *dberr.NewDBError(op, pgErr.Message),
				ForeignKeyTable: pgErr.TableName,
			}
		}
	}
	return dberr.NewDBInternalError(op, err)
}

func NewQueryStore(store *Store) (store.QueryStore, error) {
	if store == nil {
		return nil, dberr.NewDBInternalError("new_store", errors.New("store is nil"))
	}
	return &Query{storage: store}, nil
}
