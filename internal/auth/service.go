// Package auth は登録・ログイン・トークン更新・パスワードリセットの認証フローを提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/gakuen/internal/mail"
	"github.com/hitoshi/gakuen/internal/metrics"
	"github.com/hitoshi/gakuen/internal/model"
	"github.com/hitoshi/gakuen/internal/password"
	"github.com/hitoshi/gakuen/internal/repository"
	"github.com/hitoshi/gakuen/internal/token"
)

// AuditRecorder は監査ログ記録に必要なインターフェース。
// audit.Recorderの部分集合として定義する。
type AuditRecorder interface {
	Record(userID, action, entity, entityID string, metadata map[string]string)
}

// TwoFactorVerifier はログイン時の二要素認証検証に必要なインターフェース。
// twofactor.Serviceの部分集合として定義する。
type TwoFactorVerifier interface {
	// Enabled は指定ユーザーの二要素認証が有効かどうかを返す。
	Enabled(ctx context.Context, userID string) (bool, error)

	// VerifyLogin はワンタイムコードまたはバックアップコードを検証する。
	VerifyLogin(ctx context.Context, userID, code string) (bool, error)
}

// LoginResult はログイン・リフレッシュ成功時の発行物。
type LoginResult struct {
	User         *model.User
	AccessToken  string
	RefreshToken string // 生値。Cookieに設定後は保持しない
}

// Service は認証フローのビジネスロジックを提供する。
type Service struct {
	users         repository.UserRepository
	refreshTokens repository.RefreshTokenRepository
	resetTokens   repository.PasswordResetTokenRepository
	tokens        *token.Manager
	twoFactor     TwoFactorVerifier
	mailer        mail.Mailer
	recorder      AuditRecorder
	collector     metrics.MetricsCollector

	refreshTTL time.Duration
	resetTTL   time.Duration
	baseURL    string

	now func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	refreshTokens repository.RefreshTokenRepository,
	resetTokens repository.PasswordResetTokenRepository,
	tokens *token.Manager,
	twoFactor TwoFactorVerifier,
	mailer mail.Mailer,
	recorder AuditRecorder,
	collector metrics.MetricsCollector,
	refreshTTL, resetTTL time.Duration,
	baseURL string,
) *Service {
	return &Service{
		users:         users,
		refreshTokens: refreshTokens,
		resetTokens:   resetTokens,
		tokens:        tokens,
		twoFactor:     twoFactor,
		mailer:        mailer,
		recorder:      recorder,
		collector:     collector,
		refreshTTL:    refreshTTL,
		resetTTL:      resetTTL,
		baseURL:       baseURL,
		now:           time.Now,
	}
}

// Register は新規ユーザーを登録する。ロールは常にSTUDENTで作成され、
// 昇格は管理者のロール変更操作でのみ行われる。
func (s *Service) Register(ctx context.Context, email, name, rawPassword string) (*model.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	name = strings.TrimSpace(name)

	if email == "" || !strings.Contains(email, "@") {
		return nil, model.NewValidationError("メールアドレスの形式が正しくありません")
	}
	if name == "" {
		return nil, model.NewValidationError("名前を入力してください")
	}

	hash, err := password.Hash(rawPassword)
	if err != nil {
		if err == password.ErrPasswordTooShort {
			return nil, model.NewValidationError(fmt.Sprintf("パスワードは%d文字以上で設定してください", password.MinPasswordLength))
		}
		slog.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         model.RoleStudent,
		Status:       model.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if err == repository.ErrDuplicateEmail {
			return nil, model.NewConflictError("このメールアドレスは既に登録されています。")
		}
		slog.Error("failed to create user", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	s.recorder.Record(user.ID, model.AuditActionRegister, "user", user.ID, nil)

	return user, nil
}

// Login はメールアドレスとパスワードで認証し、トークンを発行する。
// 二要素認証が有効なユーザーはワンタイムコード（またはバックアップコード）が必須。
// 認証情報の不一致はメールアドレス・パスワードのどちらが誤りかを区別せず、
// 同一のエラーを返す。
func (s *Service) Login(ctx context.Context, email, rawPassword, totpCode string) (*LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		slog.Error("failed to find user by email", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	if user == nil {
		s.recordLoginFailure("", "unknown_email")
		return nil, model.NewInvalidCredentialsError()
	}

	ok, err := password.Verify(rawPassword, user.PasswordHash)
	if err != nil {
		slog.Error("failed to verify password", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	if !ok {
		s.recordLoginFailure(user.ID, "wrong_password")
		return nil, model.NewInvalidCredentialsError()
	}

	if user.Status == model.StatusSuspended {
		s.recordLoginFailure(user.ID, "suspended")
		return nil, model.NewSuspendedError()
	}

	// 二要素認証の検証
	enabled, err := s.twoFactor.Enabled(ctx, user.ID)
	if err != nil {
		slog.Error("failed to check two factor state", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	if enabled {
		if totpCode == "" {
			return nil, model.NewTwoFactorRequiredError()
		}
		verified, err := s.twoFactor.VerifyLogin(ctx, user.ID, totpCode)
		if err != nil {
			slog.Error("failed to verify two factor code", slog.String("error", err.Error()))
			return nil, model.NewInternalError()
		}
		if !verified {
			s.recordLoginFailure(user.ID, "wrong_totp_code")
			return nil, model.NewInvalidCredentialsError()
		}
	}

	result, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.recorder.Record(user.ID, model.AuditActionLogin, "user", user.ID, nil)

	return result, nil
}

// Refresh はリフレッシュトークンを償還し、新しいトークンペアを発行する。
// 償還されたトークンはローテーションにより失効する。
// ユーザーの最新のロール・ステータスはこのタイミングでトークンに反映される。
func (s *Service) Refresh(ctx context.Context, rawRefreshToken string) (*LoginResult, error) {
	record, err := s.refreshTokens.Consume(ctx, token.HashToken(rawRefreshToken))
	if err != nil {
		slog.Error("failed to consume refresh token", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	if record == nil {
		return nil, model.NewInvalidOrExpiredTokenError()
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		slog.Error("failed to find user", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	if user == nil {
		return nil, model.NewInvalidOrExpiredTokenError()
	}
	if user.Status == model.StatusSuspended {
		return nil, model.NewSuspendedError()
	}

	return s.issueTokens(ctx, user)
}

// Logout は提示されたリフレッシュトークンを失効させる。
// トークンが既に無効な場合も成功として扱う（冪等）。
func (s *Service) Logout(ctx context.Context, userID, rawRefreshToken string) error {
	if rawRefreshToken != "" {
		if _, err := s.refreshTokens.Consume(ctx, token.HashToken(rawRefreshToken)); err != nil {
			slog.Error("failed to consume refresh token on logout", slog.String("error", err.Error()))
		}
	}

	s.recorder.Record(userID, model.AuditActionLogout, "user", userID, nil)
	return nil
}

// ForgotPassword はパスワードリセットトークンを発行し、メールで送付する。
// メールアドレスが未登録でもエラーを返さない（列挙攻撃対策）。
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		slog.Error("failed to find user by email", slog.String("error", err.Error()))
		return model.NewInternalError()
	}
	if user == nil {
		// 未登録でも成功レスポンスを返す
		return nil
	}

	raw, err := token.NewRefreshToken()
	if err != nil {
		slog.Error("failed to generate reset token", slog.String("error", err.Error()))
		return model.NewInternalError()
	}

	now := s.now()
	record := &model.PasswordResetToken{
		TokenHash: token.HashToken(raw),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.resetTTL),
		CreatedAt: now,
	}
	// 保存失敗はログのみ。この分岐も登録済みアドレスでしか到達しないため、
	// エラーを返すと登録有無の判別材料になってしまう
	if err := s.resetTokens.Create(ctx, record); err != nil {
		slog.Error("failed to create reset token", slog.String("error", err.Error()))
		return nil
	}

	// 送信失敗もエラーにしない。メールアドレスが登録済みの場合だけ到達する
	// 分岐のため、ここでエラーを返すと未登録時とのレスポンス差分が生まれる
	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, raw)
	if err := s.mailer.SendPasswordReset(ctx, user.Email, resetURL); err != nil {
		slog.Error("failed to send reset mail", slog.String("error", err.Error()))
	}

	return nil
}

// ResetPassword はリセットトークンを償還し、パスワードを更新する。
// トークンはワンタイムであり、成功・失敗にかかわらず償還後は再利用できない。
// 成功時は既存の全リフレッシュトークンを失効させる。
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	hash, err := password.Hash(newPassword)
	if err != nil {
		if err == password.ErrPasswordTooShort {
			return model.NewValidationError(fmt.Sprintf("パスワードは%d文字以上で設定してください", password.MinPasswordLength))
		}
		slog.Error("failed to hash password", slog.String("error", err.Error()))
		return model.NewInternalError()
	}

	record, err := s.resetTokens.Consume(ctx, token.HashToken(rawToken))
	if err != nil {
		slog.Error("failed to consume reset token", slog.String("error", err.Error()))
		return model.NewInternalError()
	}
	if record == nil {
		return model.NewInvalidOrExpiredTokenError()
	}

	if err := s.users.UpdatePasswordHash(ctx, record.UserID, hash); err != nil {
		slog.Error("failed to update password hash", slog.String("error", err.Error()))
		return model.NewInternalError()
	}

	// パスワード変更後は全セッションを失効させる
	if err := s.refreshTokens.DeleteByUserID(ctx, record.UserID); err != nil {
		slog.Error("failed to revoke refresh tokens", slog.String("error", err.Error()))
	}

	s.recorder.Record(record.UserID, model.AuditActionPasswordReset, "user", record.UserID, nil)

	return nil
}

// ChangePassword は現在のパスワードを検証した上で新しいパスワードに更新する。
// 成功時は既存の全リフレッシュトークンを失効させる。
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		slog.Error("failed to find user", slog.String("error", err.Error()))
		return model.NewInternalError()
	}
	if user == nil {
		return model.NewUnauthorizedError()
	}

	ok, err := password.Verify(currentPassword, user.PasswordHash)
	if err != nil {
		slog.Error("failed to verify password", slog.String("error", err.Error()))
		return model.NewInternalError()
	}
	if !ok {
		return model.NewInvalidCredentialsError()
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		if err == password.ErrPasswordTooShort {
			return model.NewValidationError(fmt.Sprintf("パスワードは%d文字以上で設定してください", password.MinPasswordLength))
		}
		slog.Error("failed to hash password", slog.String("error", err.Error()))
		return model.NewInternalError()
	}

	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		slog.Error("failed to update password hash", slog.String("error", err.Error()))
		return model.NewInternalError()
	}

	if err := s.refreshTokens.DeleteByUserID(ctx, userID); err != nil {
		slog.Error("failed to revoke refresh tokens", slog.String("error", err.Error()))
	}

	s.recorder.Record(userID, model.AuditActionPasswordChange, "user", userID, nil)

	return nil
}

// issueTokens はアクセストークンとリフレッシュトークンのペアを発行する。
func (s *Service) issueTokens(ctx context.Context, user *model.User) (*LoginResult, error) {
	accessToken, err := s.tokens.Issue(user)
	if err != nil {
		slog.Error("failed to issue access token", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	raw, err := token.NewRefreshToken()
	if err != nil {
		slog.Error("failed to generate refresh token", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	now := s.now()
	record := &model.RefreshToken{
		TokenHash: token.HashToken(raw),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}
	if err := s.refreshTokens.Create(ctx, record); err != nil {
		slog.Error("failed to store refresh token", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	return &LoginResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: raw,
	}, nil
}

func (s *Service) recordLoginFailure(userID, reason string) {
	if s.collector != nil {
		s.collector.RecordAuthFailure(reason)
	}
	if userID != "" {
		s.recorder.Record(userID, model.AuditActionLoginFailed, "user", userID,
			map[string]string{"reason": reason})
	}
}
