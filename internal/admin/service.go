// Package admin は管理者専用のユーザー管理・監査ログ閲覧を提供する。
package admin

import (
	"context"
	"log/slog"

	"github.com/hitoshi/gakuen/internal/model"
	"github.com/hitoshi/gakuen/internal/repository"
)

// AuditRecorder は監査ログ記録に必要なインターフェース。
// audit.Recorderの部分集合として定義する。
type AuditRecorder interface {
	Record(userID, action, entity, entityID string, metadata map[string]string)
}

// Service は管理者操作のビジネスロジックを提供する。
type Service struct {
	users         repository.UserRepository
	refreshTokens repository.RefreshTokenRepository
	auditLog      repository.AuditLogRepository
	recorder      AuditRecorder
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	refreshTokens repository.RefreshTokenRepository,
	auditLog repository.AuditLogRepository,
	recorder AuditRecorder,
) *Service {
	return &Service{
		users:         users,
		refreshTokens: refreshTokens,
		auditLog:      auditLog,
		recorder:      recorder,
	}
}

// ChangeRole は指定ユーザーのロールを変更する。
// 自分自身のロールは変更できない（管理者権限の喪失防止）。
func (s *Service) ChangeRole(ctx context.Context, actorID, targetID string, role model.Role) error {
	if !role.IsValid() {
		return model.NewValidationError("ロールはADMIN・TEACHER・STUDENTのいずれかを指定してください")
	}
	if actorID == targetID {
		return model.NewValidationError("自分自身のロールは変更できません")
	}

	target, err := s.users.FindByID(ctx, targetID)
	if err != nil {
		slog.Error("failed to find user", slog.String("error", err.Error()))
		return model.NewInternalError()
	}
	if target == nil {
		return model.NewNotFoundError("ユーザー")
	}

	oldRole := target.Role
	if oldRole == role {
		return nil
	}

	if err := s.users.UpdateRole(ctx, targetID, role); err != nil {
		slog.Error("failed to update role", slog.String("error", err.Error()))
		return model.NewInternalError()
	}

	s.recorder.Record(actorID, model.AuditActionRoleChange, "user", targetID,
		map[string]string{"old": string(oldRole), "new": string(role)})

	return nil
}

// ChangeStatus は指定ユーザーのアカウント状態を変更する。
// 自分自身は停止できない（締め出し防止）。
// 停止時はリフレッシュトークンを全失効させる。発行済みアクセストークンは
// 期限まで有効だが、最長でもアクセストークンTTLで失効する。
func (s *Service) ChangeStatus(ctx context.Context, actorID, targetID string, status model.Status) error {
	if status != model.StatusActive && status != model.StatusSuspended {
		return model.NewValidationError("状態はACTIVE・SUSPENDEDのいずれかを指定してください")
	}
	if actorID == targetID {
		return model.NewValidationError("自分自身のアカウント状態は変更できません")
	}

	target, err := s.users.FindByID(ctx, targetID)
	if err != nil {
		slog.Error("failed to find user", slog.String("error", err.Error()))
		return model.NewInternalError()
	}
	if target == nil {
		return model.NewNotFoundError("ユーザー")
	}

	oldStatus := target.Status
	if oldStatus == status {
		return nil
	}

	if err := s.users.UpdateStatus(ctx, targetID, status); err != nil {
		slog.Error("failed to update status", slog.String("error", err.Error()))
		return model.NewInternalError()
	}

	if status == model.StatusSuspended {
		if err := s.refreshTokens.DeleteByUserID(ctx, targetID); err != nil {
			slog.Error("failed to revoke refresh tokens", slog.String("error", err.Error()))
			return model.NewInternalError()
		}
	}

	s.recorder.Record(actorID, model.AuditActionStatusChange, "user", targetID,
		map[string]string{"old": string(oldStatus), "new": string(status)})

	return nil
}

// ListAuditLogs は監査ログを新しい順で取得する。
func (s *Service) ListAuditLogs(ctx context.Context, limit, offset int) ([]*model.AuditLogEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	entries, err := s.auditLog.ListRecent(ctx, limit, offset)
	if err != nil {
		slog.Error("failed to list audit logs", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	return entries, nil
}

// ListAuditLogsByUser は指定ユーザーの監査ログを新しい順で取得する。
func (s *Service) ListAuditLogsByUser(ctx context.Context, userID string, limit, offset int) ([]*model.AuditLogEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	entries, err := s.auditLog.ListByUserID(ctx, userID, limit, offset)
	if err != nil {
		slog.Error("failed to list audit logs by user", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	return entries, nil
}
