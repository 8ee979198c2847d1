// Package timetable は時間割管理のビジネスロジックを提供する。
package timetable

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/gakuen/internal/model"
	"github.com/hitoshi/gakuen/internal/repository"
)

// 時間割の1コマが取りうる範囲。
const (
	minDayOfWeek = 0 // 日曜
	maxDayOfWeek = 6 // 土曜
	minPeriod    = 1
	maxPeriod    = 8
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

// EntryInput は時間割の1コマの入力。
type EntryInput struct {
	DayOfWeek int
	Period    int
	Subject   string
	TeacherID string
}

// Service は時間割管理のビジネスロジックを提供する。
type Service struct {
	timetables repository.TimetableRepository
	classes    ClassFinder
	recorder   AuditRecorder

	now func() time.Time
}

// NewService はServiceを生成する。
func NewService(timetables repository.TimetableRepository, classes ClassFinder, recorder AuditRecorder) *Service {
	return &Service{
		timetables: timetables,
		classes:    classes,
		recorder:   recorder,
		now:        time.Now,
	}
}

// Get は指定クラスの時間割を取得する。
func (s *Service) Get(ctx context.Context, classID string) ([]*model.TimetableEntry, error) {
	if err := s.ensureClassExists(ctx, classID); err != nil {
		return nil, err
	}

	entries, err := s.timetables.ListByClassID(ctx, classID)
	if err != nil {
		slog.Error("failed to list timetable", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	return entries, nil
}

// Replace は指定クラスの時間割を全置換する。
// 入力全体が検証を通過した場合のみ反映され、部分的な更新は発生しない。
func (s *Service) Replace(ctx context.Context, actorID, classID string, inputs []EntryInput) ([]*model.TimetableEntry, error) {
	if err := s.ensureClassExists(ctx, classID); err != nil {
		return nil, err
	}

	now := s.now()
	entries := make([]*model.TimetableEntry, len(inputs))
	seen := make(map[[2]int]struct{}, len(inputs))

	for i, input := range inputs {
		input.Subject = strings.TrimSpace(input.Subject)

		if input.DayOfWeek < minDayOfWeek || input.DayOfWeek > maxDayOfWeek {
			return nil, model.NewValidationError(fmt.Sprintf("曜日は%d〜%dの範囲で指定してください", minDayOfWeek, maxDayOfWeek))
		}
		if input.Period < minPeriod || input.Period > maxPeriod {
			return nil, model.NewValidationError(fmt.Sprintf("時限は%d〜%dの範囲で指定してください", minPeriod, maxPeriod))
		}
		if input.Subject == "" {
			return nil, model.NewValidationError("科目名を入力してください")
		}

		slot := [2]int{input.DayOfWeek, input.Period}
		if _, dup := seen[slot]; dup {
			return nil, model.NewValidationError(fmt.Sprintf("曜日%d・%d時限のコマが重複しています", input.DayOfWeek, input.Period))
		}
		seen[slot] = struct{}{}

		entries[i] = &model.TimetableEntry{
			ID:        uuid.New().String(),
			ClassID:   classID,
			DayOfWeek: input.DayOfWeek,
			Period:    input.Period,
			Subject:   input.Subject,
			TeacherID: input.TeacherID,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	if err := s.timetables.ReplaceForClass(ctx, classID, entries); err != nil {
		slog.Error("failed to replace timetable", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	s.recorder.Record(actorID, model.AuditActionTimetableReplace, "timetable", classID,
		map[string]string{"entries": fmt.Sprintf("%d", len(entries))})

	return entries, nil
}

func (s *Service) ensureClassExists(ctx context.Context, classID string) error {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		slog.Error("failed to find class", slog.String("error", err.Error()))
		return model.NewInternalError()
	}
	if class == nil {
		return model.NewNotFoundError("クラス")
	}
	return nil
}
