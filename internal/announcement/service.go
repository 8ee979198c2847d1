// Package announcement はお知らせ管理のビジネスロジックを提供する。
package announcement

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/gakuen/internal/model"
	"github.com/hitoshi/gakuen/internal/repository"
)

// AuditRecorder は監査ログ記録に必要なインターフェース。
// audit.Recorderの部分集合として定義する。
type AuditRecorder interface {
	Record(userID, action, entity, entityID string, metadata map[string]string)
}

// Input はお知らせ作成・更新の入力。
type Input struct {
	Title    string
	Body     string
	Audience model.Audience
}

// Service はお知らせ管理のビジネスロジックを提供する。
// Bodyは保存前にbluemondayのUGCポリシーでサニタイズされる。
type Service struct {
	announcements repository.AnnouncementRepository
	recorder      AuditRecorder
	sanitizer     *bluemonday.Policy

	now func() time.Time
}

// NewService はServiceを生成する。
func NewService(announcements repository.AnnouncementRepository, recorder AuditRecorder) *Service {
	return &Service{
		announcements: announcements,
		recorder:      recorder,
		sanitizer:     bluemonday.UGCPolicy(),
		now:           time.Now,
	}
}

// audiencesForRole はロールごとに閲覧可能な配信対象を返す。
func audiencesForRole(role model.Role) []model.Audience {
	switch role {
	case model.RoleAdmin:
		return []model.Audience{model.AudienceAll, model.AudienceTeachers, model.AudienceStudents}
	case model.RoleTeacher:
		return []model.Audience{model.AudienceAll, model.AudienceTeachers}
	case model.RoleStudent:
		return []model.Audience{model.AudienceAll, model.AudienceStudents}
	default:
		return nil
	}
}

// ListFor は指定ロールが閲覧可能なお知らせを新しい順で取得する。
func (s *Service) ListFor(ctx context.Context, role model.Role, limit, offset int) ([]*model.Announcement, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	announcements, err := s.announcements.ListForAudience(ctx, audiencesForRole(role), limit, offset)
	if err != nil {
		slog.Error("failed to list announcements", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	return announcements, nil
}

// Get は指定IDのお知らせを取得する。
// 配信対象外のロールからのアクセスは存在しないものとして扱う。
func (s *Service) Get(ctx context.Context, role model.Role, id string) (*model.Announcement, error) {
	a, err := s.announcements.FindByID(ctx, id)
	if err != nil {
		slog.Error("failed to find announcement", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	if a == nil || !a.Audience.VisibleTo(role) {
		return nil, model.NewNotFoundError("お知らせ")
	}
	return a, nil
}

// Create はお知らせを作成する。
func (s *Service) Create(ctx context.Context, authorID string, input Input) (*model.Announcement, error) {
	if err := s.validate(&input); err != nil {
		return nil, err
	}

	now := s.now()
	a := &model.Announcement{
		ID:        uuid.New().String(),
		AuthorID:  authorID,
		Title:     input.Title,
		Body:      s.sanitizer.Sanitize(input.Body),
		Audience:  input.Audience,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.announcements.Create(ctx, a); err != nil {
		slog.Error("failed to create announcement", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	s.recorder.Record(authorID, model.AuditActionAnnounceCreate, "announcement", a.ID,
		map[string]string{"audience": string(a.Audience)})

	return a, nil
}

// Update はお知らせを更新する。作成者本人または管理者のみ許可される。
func (s *Service) Update(ctx context.Context, identity *model.Identity, id string, input Input) (*model.Announcement, error) {
	a, err := s.findEditable(ctx, identity, id)
	if err != nil {
		return nil, err
	}

	if err := s.validate(&input); err != nil {
		return nil, err
	}

	a.Title = input.Title
	a.Body = s.sanitizer.Sanitize(input.Body)
	a.Audience = input.Audience
	a.UpdatedAt = s.now()

	if err := s.announcements.Update(ctx, a); err != nil {
		slog.Error("failed to update announcement", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	s.recorder.Record(identity.UserID, model.AuditActionAnnounceUpdate, "announcement", a.ID, nil)

	return a, nil
}

// Delete はお知らせを削除する。作成者本人または管理者のみ許可される。
func (s *Service) Delete(ctx context.Context, identity *model.Identity, id string) error {
	if _, err := s.findEditable(ctx, identity, id); err != nil {
		return err
	}

	if err := s.announcements.Delete(ctx, id); err != nil {
		slog.Error("failed to delete announcement", slog.String("error", err.Error()))
		return model.NewInternalError()
	}

	s.recorder.Record(identity.UserID, model.AuditActionAnnounceDelete, "announcement", id, nil)

	return nil
}

// findEditable はお知らせを取得し、編集権限を検証する。
func (s *Service) findEditable(ctx context.Context, identity *model.Identity, id string) (*model.Announcement, error) {
	a, err := s.announcements.FindByID(ctx, id)
	if err != nil {
		slog.Error("failed to find announcement", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	if a == nil {
		return nil, model.NewNotFoundError("お知らせ")
	}
	if identity.Role != model.RoleAdmin && a.AuthorID != identity.UserID {
		return nil, model.NewForbiddenError()
	}
	return a, nil
}

func (s *Service) validate(input *Input) error {
	input.Title = strings.TrimSpace(input.Title)

	if input.Title == "" {
		return model.NewValidationError("タイトルを入力してください")
	}
	if strings.TrimSpace(input.Body) == "" {
		return model.NewValidationError("本文を入力してください")
	}
	if !input.Audience.IsValid() {
		return model.NewValidationError("配信対象はALL・TEACHERS・STUDENTSのいずれかを指定してください")
	}
	return nil
}
