package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/gakuen/internal/model"
)

// PostgresClassRepo はPostgreSQLを使用したクラスリポジトリ。
type PostgresClassRepo struct {
	db *sql.DB
}

// NewPostgresClassRepo はPostgresClassRepoを生成する。
func NewPostgresClassRepo(db *sql.DB) *PostgresClassRepo {
	return &PostgresClassRepo{db: db}
}

const classColumns = `id, name, grade, homeroom_teacher_id, created_at, updated_at`

func scanClass(scan func(dest ...any) error) (*model.Class, error) {
	class := &model.Class{}
	var teacherID sql.NullString
	err := scan(
		&class.ID, &class.Name, &class.Grade, &teacherID,
		&class.CreatedAt, &class.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	class.HomeroomTeacherID = teacherID.String
	return class, nil
}

// FindByID は指定IDのクラスを取得する。見つからない場合はnilを返す。
func (r *PostgresClassRepo) FindByID(ctx context.Context, id string) (*model.Class, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+classColumns+` FROM classes WHERE id = $1`, id,
	)
	class, err := scanClass(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find class: %w", err)
	}
	return class, nil
}

// List は全クラスを学年・名前順で取得する。
func (r *PostgresClassRepo) List(ctx context.Context) ([]*model.Class, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+classColumns+` FROM classes ORDER BY grade, name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	defer rows.Close()

	return collectClasses(rows)
}

// ListByTeacherID は指定教員が担任のクラス一覧を取得する。
func (r *PostgresClassRepo) ListByTeacherID(ctx context.Context, teacherID string) ([]*model.Class, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+classColumns+` FROM classes WHERE homeroom_teacher_id = $1 ORDER BY grade, name`,
		teacherID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes by teacher: %w", err)
	}
	defer rows.Close()

	return collectClasses(rows)
}

func collectClasses(rows *sql.Rows) ([]*model.Class, error) {
	var classes []*model.Class
	for rows.Next() {
		class, err := scanClass(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}
		classes = append(classes, class)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate classes: %w", err)
	}
	return classes, nil
}

// Create はクラスを作成する。名前重複時はErrDuplicateClassNameを返す。
func (r *PostgresClassRepo) Create(ctx context.Context, class *model.Class) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO classes (id, name, grade, homeroom_teacher_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		class.ID, class.Name, class.Grade, nullable(class.HomeroomTeacherID),
		class.CreatedAt, class.UpdatedAt,
	)
	if err != nil {
		if uniqueViolation(err) {
			return ErrDuplicateClassName
		}
		return fmt.Errorf("failed to insert class: %w", err)
	}
	return nil
}

// Update はクラス情報を更新する。
func (r *PostgresClassRepo) Update(ctx context.Context, class *model.Class) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE classes
		 SET name = $1, grade = $2, homeroom_teacher_id = $3, updated_at = $4
		 WHERE id = $5`,
		class.Name, class.Grade, nullable(class.HomeroomTeacherID), time.Now(), class.ID,
	)
	if err != nil {
		if uniqueViolation(err) {
			return ErrDuplicateClassName
		}
		return fmt.Errorf("failed to update class: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("class not found: %s", class.ID)
	}
	return nil
}

// Delete は指定IDのクラスを削除する。
func (r *PostgresClassRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete class: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("class not found: %s", id)
	}
	return nil
}

// Count は全クラス数を返す。
func (r *PostgresClassRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM classes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count classes: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ ClassRepository = (*PostgresClassRepo)(nil)
