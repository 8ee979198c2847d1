// Package student は生徒管理のビジネスロジックを提供する。
package student

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/gakuen/internal/model"
	"github.com/hitoshi/gakuen/internal/repository"
)

// AuditRecorder は監査ログ記録に必要なインターフェース。
// audit.Recorderの部分集合として定義する。
type AuditRecorder interface {
	Record(userID, action, entity, entityID string, metadata map[string]string)
}

// ClassFinder はクラスの存在確認に必要なインターフェース。
// repository.ClassRepositoryの部分集合として定義する。
type ClassFinder interface {
	FindByID(ctx context.Context, id string) (*model.Class, error)
}

// CreateInput は生徒作成の入力。
type CreateInput struct {
	StudentNumber string
	Name          string
	ClassID       string
	EnrolledAt    time.Time
}

// UpdateInput は生徒更新の入力。
type UpdateInput struct {
	StudentNumber string
	Name          string
	ClassID       string
	UserID        string
}

// Service は生徒管理のビジネスロジックを提供する。
type Service struct {
	students repository.StudentRepository
	classes  ClassFinder
	recorder AuditRecorder

	now func() time.Time
}

// NewService はServiceを生成する。
func NewService(students repository.StudentRepository, classes ClassFinder, recorder AuditRecorder) *Service {
	return &Service{
		students: students,
		classes:  classes,
		recorder: recorder,
		now:      time.Now,
	}
}

// Get は指定IDの生徒を取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		slog.Error("failed to find student", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	if student == nil {
		return nil, model.NewNotFoundError("生徒")
	}
	return student, nil
}

// List は生徒一覧を取得する。
func (s *Service) List(ctx context.Context, limit, offset int) ([]*model.Student, error) {
	limit = normalizeLimit(limit)
	students, err := s.students.List(ctx, limit, offset)
	if err != nil {
		slog.Error("failed to list students", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	return students, nil
}

// ListByClassID は指定クラスの生徒一覧を取得する。
func (s *Service) ListByClassID(ctx context.Context, classID string) ([]*model.Student, error) {
	students, err := s.students.ListByClassID(ctx, classID)
	if err != nil {
		slog.Error("failed to list students by class", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	return students, nil
}

// Create は生徒を作成する。actorIDは操作を実行した管理者・教員のユーザーID。
func (s *Service) Create(ctx context.Context, actorID string, input CreateInput) (*model.Student, error) {
	input.StudentNumber = strings.TrimSpace(input.StudentNumber)
	input.Name = strings.TrimSpace(input.Name)

	if input.StudentNumber == "" {
		return nil, model.NewValidationError("学籍番号を入力してください")
	}
	if input.Name == "" {
		return nil, model.NewValidationError("名前を入力してください")
	}
	if err := s.validateClassID(ctx, input.ClassID); err != nil {
		return nil, err
	}

	now := s.now()
	enrolledAt := input.EnrolledAt
	if enrolledAt.IsZero() {
		enrolledAt = now
	}

	student := &model.Student{
		ID:            uuid.New().String(),
		StudentNumber: input.StudentNumber,
		Name:          input.Name,
		ClassID:       input.ClassID,
		EnrolledAt:    enrolledAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.students.Create(ctx, student); err != nil {
		if err == repository.ErrDuplicateStudentNumber {
			return nil, model.NewConflictError("この学籍番号は既に登録されています。")
		}
		slog.Error("failed to create student", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	s.recorder.Record(actorID, model.AuditActionStudentCreate, "student", student.ID,
		map[string]string{"student_number": student.StudentNumber})

	return student, nil
}

// Update は生徒情報を更新する。
func (s *Service) Update(ctx context.Context, actorID, id string, input UpdateInput) (*model.Student, error) {
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	input.StudentNumber = strings.TrimSpace(input.StudentNumber)
	input.Name = strings.TrimSpace(input.Name)

	if input.StudentNumber == "" {
		return nil, model.NewValidationError("学籍番号を入力してください")
	}
	if input.Name == "" {
		return nil, model.NewValidationError("名前を入力してください")
	}
	if err := s.validateClassID(ctx, input.ClassID); err != nil {
		return nil, err
	}

	student.StudentNumber = input.StudentNumber
	student.Name = input.Name
	student.ClassID = input.ClassID
	student.UserID = input.UserID
	student.UpdatedAt = s.now()

	if err := s.students.Update(ctx, student); err != nil {
		if err == repository.ErrDuplicateStudentNumber {
			return nil, model.NewConflictError("この学籍番号は既に登録されています。")
		}
		slog.Error("failed to update student", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	s.recorder.Record(actorID, model.AuditActionStudentUpdate, "student", student.ID, nil)

	return student, nil
}

// Delete は指定IDの生徒レコードを削除する。
func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	if err := s.students.Delete(ctx, id); err != nil {
		slog.Error("failed to delete student", slog.String("error", err.Error()))
		return model.NewInternalError()
	}

	s.recorder.Record(actorID, model.AuditActionStudentDelete, "student", id, nil)

	return nil
}

// validateClassID はクラスIDが指定されている場合、その存在を検証する。
func (s *Service) validateClassID(ctx context.Context, classID string) error {
	if classID == "" {
		return nil
	}
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		slog.Error("failed to find class", slog.String("error", err.Error()))
		return model.NewInternalError()
	}
	if class == nil {
		return model.NewValidationError("指定されたクラスが存在しません")
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 50
	}
	return limit
}
