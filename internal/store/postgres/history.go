package postgres

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	dberr "github.com/webitel/grade-exporter/internal/errors"
	"github.com/webitel/grade-exporter/internal/model"
	"github.com/webitel/grade-exporter/internal/store"
)

type History struct {
	storage *Store
}

// InsertExport writes the history record and its items in one
// transaction so a run is either fully recorded or not at all.
func (h *History) InsertExport(ctx context.Context, queryID int64, outcome *model.ExportOutcome, success bool) (*model.ExportHistory, error) {
	db, err := h.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError("insert_export", err)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, dberr.NewDBInternalError("insert_export", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	record := &model.ExportHistory{
		QueryID:   queryID,
		Timestamp: time.Now().UnixMilli(),
		Success:   success,
	}

	query := `
		INSERT INTO grade_exporter.export_history
			(query_id, timestamp, success)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	if err := tx.QueryRow(ctx, query, record.QueryID, record.Timestamp, record.Success).Scan(&record.ID); err != nil {
		return nil, classifyPgError("insert_export", err)
	}

	attempted := outcome.Attempted()
	if len(attempted) > 0 {
		rows := make([][]any, len(attempted))
		for i, item := range attempted {
			rows[i] = []any{record.ID, item.UserID, item.FinalGrade}
		}
		_, err = tx.CopyFrom(
			ctx,
			pgx.Identifier{"grade_exporter", "export_items"},
			[]string{"history_id", "user_id", "grade"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return nil, dberr.NewDBInternalError("insert_export", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, dberr.NewDBInternalError("insert_export", err)
	}

	return record, nil
}

func (h *History) GetLastExport(ctx context.Context, queryID int64, onlySuccessful bool) (*model.ExportHistory, error) {
	db, err := h.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError("get_last_export", err)
	}

	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	query := psql.
		Select("id", "query_id", "timestamp", "success").
		From("grade_exporter.export_history").
		Where(sq.Eq{"query_id": queryID}).
		OrderBy("timestamp DESC").
		Limit(1)

	if onlySuccessful {
		query = query.Where(sq.Eq{"success": true})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, dberr.NewDBInternalError("get_last_export", err)
	}

	var record model.ExportHistory
	err = db.QueryRow(ctx, sqlStr, args...).Scan(&record.ID, &record.QueryID, &record.Timestamp, &record.Success)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No history yet is a normal state.
			return nil, nil
		}
		return nil, dberr.NewDBInternalError("get_last_export", err)
	}

	return &record, nil
}

// WipeHistory deletes items before records: export_items has no
// cascading foreign key, so ordering is what keeps references intact.
func (h *History) WipeHistory(ctx context.Context, queryID int64) error {
	db, err := h.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError("wipe_history", err)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return dberr.NewDBInternalError("wipe_history", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		DELETE FROM grade_exporter.export_items
		WHERE history_id IN (
			SELECT id FROM grade_exporter.export_history WHERE query_id = $1
		)
	`, queryID)
	if err != nil {
		return dberr.NewDBInternalError("wipe_history", err)
	}

	_, err = tx.Exec(ctx, `DELETE FROM grade_exporter.export_history WHERE query_id = $1`, queryID)
	if err != nil {
		return dberr.NewDBInternalError("wipe_history", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return dberr.NewDBInternalError("wipe_history", err)
	}

	return nil
}

func (h *History) GetExportedItems(ctx context.Context, historyID int64) (map[int64]float64, error) {
	db, err := h.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError("get_exported_items", err)
	}

	rows, err := db.Query(ctx, `
		SELECT user_id, grade
		FROM grade_exporter.export_items
		WHERE history_id = $1
	`, historyID)
	if err != nil {
		return nil, dberr.NewDBInternalError("get_exported_items", err)
	}
	defer rows.Close()

	items := make(map[int64]float64)
	for rows.Next() {
		var userID int64
		var grade float64
		if err := rows.Scan(&userID, &grade); err != nil {
			return nil, dberr.NewDBInternalError("get_exported_items", err)
		}
		items[userID] = grade
	}
	if err = rows.Err(); err != nil {
		return nil, dberr.NewDBInternalError("get_exported_items", err)
	}

	return items, nil
}

func NewHistoryStore(store *Store) (store.HistoryStore, error) {
	if store == nil {
		return nil, dberr.NewDBInternalError("new_store", errors.New("store is nil"))
	}
	return &History{storage: store}, nil
}
