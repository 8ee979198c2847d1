// Package class はクラス（学級）管理のビジネスロジックを提供する。
package class

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

// UserFinder は担任教員の検証に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// StudentCounter はクラス削除時の在籍確認に必要なインターフェース。
// repository.StudentRepositoryの部分集合として定義する。
type StudentCounter interface {
	CountByClassID(ctx context.Context, classID string) (int, error)
}

// Input はクラス作成・更新の入力。
type Input struct {
	Name              string
	Grade             int
	HomeroomTeacherID string
}

// Service はクラス管理のビジネスロジックを提供する。
type Service struct {
	classes  repository.ClassRepository
	users    UserFinder
	students StudentCounter
	recorder AuditRecorder

	now func() time.Time
}

// NewService はServiceを生成する。
func NewService(classes repository.ClassRepository, users UserFinder, students StudentCounter, recorder AuditRecorder) *Service {
	return &Service{
		classes:  classes,
		users:    users,
		students: students,
		recorder: recorder,
		now:      time.Now,
	}
}

// Get は指定IDのクラスを取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Class, error) {
	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		slog.Error("failed to find class", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	if class == nil {
		return nil, model.NewNotFoundError("クラス")
	}
	return class, nil
}

// List は全クラスを取得する。
func (s *Service) List(ctx context.Context) ([]*model.Class, error) {
	classes, err := s.classes.List(ctx)
	if err != nil {
		slog.Error("failed to list classes", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	return classes, nil
}

// ListByTeacherID は指定教員が担任のクラス一覧を取得する。
func (s *Service) ListByTeacherID(ctx context.Context, teacherID string) ([]*model.Class, error) {
	classes, err := s.classes.ListByTeacherID(ctx, teacherID)
	if err != nil {
		slog.Error("failed to list classes by teacher", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	return classes, nil
}

// Create はクラスを作成する。
func (s *Service) Create(ctx context.Context, actorID string, input Input) (*model.Class, error) {
	if err := s.validate(ctx, &input); err != nil {
		return nil, err
	}

	now := s.now()
	class := &model.Class{
		ID:                uuid.New().String(),
		Name:              input.Name,
		Grade:             input.Grade,
		HomeroomTeacherID: input.HomeroomTeacherID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.classes.Create(ctx, class); err != nil {
		if err == repository.ErrDuplicateClassName {
			return nil, model.NewConflictError("このクラス名は既に使用されています。")
		}
		slog.Error("failed to create class", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	s.recorder.Record(actorID, model.AuditActionClassCreate, "class", class.ID,
		map[string]string{"name": class.Name})

	return class, nil
}

// Update はクラス情報を更新する。
func (s *Service) Update(ctx context.Context, actorID, id string, input Input) (*model.Class, error) {
	class, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.validate(ctx, &input); err != nil {
		return nil, err
	}

	class.Name = input.Name
	class.Grade = input.Grade
	class.HomeroomTeacherID = input.HomeroomTeacherID
	class.UpdatedAt = s.now()

	if err := s.classes.Update(ctx, class); err != nil {
		if err == repository.ErrDuplicateClassName {
			return nil, model.NewConflictError("このクラス名は既に使用されています。")
		}
		slog.Error("failed to update class", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	s.recorder.Record(actorID, model.AuditActionClassUpdate, "class", class.ID, nil)

	return class, nil
}

// Delete は指定IDのクラスを削除する。
// 在籍中の生徒がいるクラスは削除できない。
func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	count, err := s.students.CountByClassID(ctx, id)
	if err != nil {
		slog.Error("failed to count students", slog.String("error", err.Error()))
		return model.NewInternalError()
	}
	if count > 0 {
		return model.NewConflictError("在籍中の生徒がいるクラスは削除できません。")
	}

	if err := s.classes.Delete(ctx, id); err != nil {
		slog.Error("failed to delete class", slog.String("error", err.Error()))
		return model.NewInternalError()
	}

	s.recorder.Record(actorID, model.AuditActionClassDelete, "class", id, nil)

	return nil
}

// validate は入力を検証する。担任が指定されている場合は教員ロールであることを確認する。
func (s *Service) validate(ctx context.Context, input *Input) error {
	input.Name = strings.TrimSpace(input.Name)

	if input.Name == "" {
		return model.NewValidationError("クラス名を入力してください")
	}
	if input.Grade < 1 || input.Grade > 12 {
		return model.NewValidationError("学年は1〜12の範囲で指定してください")
	}

	if input.HomeroomTeacherID != "" {
		user, err := s.users.FindByID(ctx, input.HomeroomTeacherID)
		if err != nil {
			slog.Error("failed to find homeroom teacher", slog.String("error", err.Error()))
			return model.NewInternalError()
		}
		if user == nil || user.Role != model.RoleTeacher {
			return model.NewValidationError("担任には教員ロールのユーザーを指定してください")
		}
	}

	return nil
}
