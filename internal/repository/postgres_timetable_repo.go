package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/gakuen/internal/model"
)

// PostgresTimetableRepo はPostgreSQLを使用した時間割リポジトリ。
type PostgresTimetableRepo struct {
	db *sql.DB
}

// NewPostgresTimetableRepo はPostgresTimetableRepoを生成する。
func NewPostgresTimetableRepo(db *sql.DB) *PostgresTimetableRepo {
	return &PostgresTimetableRepo{db: db}
}

// ListByClassID は指定クラスの時間割を曜日・時限順で取得する。
func (r *PostgresTimetableRepo) ListByClassID(ctx context.Context, classID string) ([]*model.TimetableEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, class_id, day_of_week, period, subject, teacher_id, created_at, updated_at
		 FROM timetable_entries
		 WHERE class_id = $1
		 ORDER BY day_of_week, period`,
		classID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list timetable entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.TimetableEntry
	for rows.Next() {
		entry := &model.TimetableEntry{}
		var teacherID sql.NullString
		if err := rows.Scan(
			&entry.ID, &entry.ClassID, &entry.DayOfWeek, &entry.Period,
			&entry.Subject, &teacherID, &entry.CreatedAt, &entry.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan timetable entry: %w", err)
		}
		entry.TeacherID = teacherID.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate timetable entries: %w", err)
	}
	return entries, nil
}

// ReplaceForClass は指定クラスの時間割を同一トランザクションで全置換する。
func (r *PostgresTimetableRepo) ReplaceForClass(ctx context.Context, classID string, entries []*model.TimetableEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM timetable_entries WHERE class_id = $1`, classID,
	); err != nil {
		return fmt.Errorf("failed to clear timetable: %w", err)
	}

	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO timetable_entries (id, class_id, day_of_week, period, subject, teacher_id, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			entry.ID, classID, entry.DayOfWeek, entry.Period,
			entry.Subject, nullable(entry.TeacherID), entry.CreatedAt, entry.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert timetable entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// compile-time interface check
var _ TimetableRepository = (*PostgresTimetableRepo)(nil)
