package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/gakuen/internal/model"
)

// PostgresStudentRepo はPostgreSQLを使用した生徒リポジトリ。
type PostgresStudentRepo struct {
	db *sql.DB
}

// NewPostgresStudentRepo はPostgresStudentRepoを生成する。
func NewPostgresStudentRepo(db *sql.DB) *PostgresStudentRepo {
	return &PostgresStudentRepo{db: db}
}

const studentColumns = `id, user_id, student_number, name, class_id, enrolled_at, created_at, updated_at`

// nullable は空文字列をNULLに変換する。user_id・class_idの未割り当て表現用。
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func scanStudent(scan func(dest ...any) error) (*model.Student, error) {
	student := &model.Student{}
	var userID, classID sql.NullString
	err := scan(
		&student.ID, &userID, &student.StudentNumber, &student.Name,
		&classID, &student.EnrolledAt, &student.CreatedAt, &student.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	student.UserID = userID.String
	student.ClassID = classID.String
	return student, nil
}

// FindByID は指定IDの生徒を取得する。見つからない場合はnilを返す。
func (r *PostgresStudentRepo) FindByID(ctx context.Context, id string) (*model.Student, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE id = $1`, id,
	)
	student, err := scanStudent(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find student: %w", err)
	}
	return student, nil
}

// FindByUserID はログインユーザーに紐づく生徒レコードを取得する。
// 紐づけがない場合はnilを返す。
func (r *PostgresStudentRepo) FindByUserID(ctx context.Context, userID string) (*model.Student, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE user_id = $1`, userID,
	)
	student, err := scanStudent(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find student by user id: %w", err)
	}
	return student, nil
}

// List は生徒一覧を学籍番号順で取得する。
func (r *PostgresStudentRepo) List(ctx context.Context, limit, offset int) ([]*model.Student, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+studentColumns+` FROM students ORDER BY student_number LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	return collectStudents(rows)
}

// ListByClassID は指定クラスの生徒一覧を学籍番号順で取得する。
func (r *PostgresStudentRepo) ListByClassID(ctx context.Context, classID string) ([]*model.Student, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE class_id = $1 ORDER BY student_number`,
		classID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list students by class: %w", err)
	}
	defer rows.Close()

	return collectStudents(rows)
}

func collectStudents(rows *sql.Rows) ([]*model.Student, error) {
	var students []*model.Student
	for rows.Next() {
		student, err := scanStudent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, student)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate students: %w", err)
	}
	return students, nil
}

// Create は生徒を作成する。学籍番号重複時はErrDuplicateStudentNumberを返す。
func (r *PostgresStudentRepo) Create(ctx context.Context, student *model.Student) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO students (id, user_id, student_number, name, class_id, enrolled_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		student.ID, nullable(student.UserID), student.StudentNumber, student.Name,
		nullable(student.ClassID), student.EnrolledAt, student.CreatedAt, student.UpdatedAt,
	)
	if err != nil {
		if uniqueViolation(err) {
			return ErrDuplicateStudentNumber
		}
		return fmt.Errorf("failed to insert student: %w", err)
	}
	return nil
}

// Update は生徒情報を更新する。
func (r *PostgresStudentRepo) Update(ctx context.Context, student *model.Student) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE students
		 SET user_id = $1, student_number = $2, name = $3, class_id = $4, updated_at = $5
		 WHERE id = $6`,
		nullable(student.UserID), student.StudentNumber, student.Name,
		nullable(student.ClassID), time.Now(), student.ID,
	)
	if err != nil {
		if uniqueViolation(err) {
			return ErrDuplicateStudentNumber
		}
		return fmt.Errorf("failed to update student: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("student not found: %s", student.ID)
	}
	return nil
}

// Delete は指定IDの生徒レコードを削除する。
func (r *PostgresStudentRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("student not found: %s", id)
	}
	return nil
}

// CountByClassID は指定クラスの在籍生徒数を返す。
func (r *PostgresStudentRepo) CountByClassID(ctx context.Context, classID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM students WHERE class_id = $1`, classID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count students by class: %w", err)
	}
	return count, nil
}

// Count は全生徒数を返す。
func (r *PostgresStudentRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM students`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ StudentRepository = (*PostgresStudentRepo)(nil)
