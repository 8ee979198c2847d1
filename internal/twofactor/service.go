// Package twofactor はTOTPによる二要素認証の設定・検証フローを提供する。
package twofactor

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/gakuen/internal/model"
	"github.com/hitoshi/gakuen/internal/repository"
	"github.com/hitoshi/gakuen/internal/token"
	"github.com/hitoshi/gakuen/internal/totp"
)

// backupCodeCount は有効化時に発行するバックアップコードの数。
const backupCodeCount = 8

// AuditRecorder は監査ログ記録に必要なインターフェース。
// audit.Recorderの部分集合として定義する。
type AuditRecorder interface {
	Record(userID, action, entity, entityID string, metadata map[string]string)
}

// SetupResult は二要素認証セットアップ開始時の発行物。
type SetupResult struct {
	Secret       string // base32。認証アプリへの手動入力用
	ProvisionURI string // otpauth:// 形式。QRコード表示用
}

// Service は二要素認証のビジネスロジックを提供する。
type Service struct {
	repo     repository.TwoFactorRepository
	recorder AuditRecorder
	issuer   string

	now func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.TwoFactorRepository, recorder AuditRecorder, issuer string) *Service {
	return &Service{
		repo:     repo,
		recorder: recorder,
		issuer:   issuer,
		now:      time.Now,
	}
}

// Setup は新しい共有秘密を発行し、確認待ちとして保存する。
// 有効化済みの秘密には影響しない。Confirmで有効なコードが検証されるまで、
// ログイン時の二要素認証の挙動は変わらない。
func (s *Service) Setup(ctx context.Context, userID, email string) (*SetupResult, error) {
	secret, err := totp.GenerateSecret()
	if err != nil {
		slog.Error("failed to generate totp secret", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	if err := s.repo.StagePending(ctx, userID, secret); err != nil {
		slog.Error("failed to stage pending secret", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	return &SetupResult{
		Secret:       secret,
		ProvisionURI: totp.ProvisionURI(s.issuer, email, secret),
	}, nil
}

// Confirm は確認待ちの秘密に対してワンタイムコードを検証し、二要素認証を有効化する。
// 成功時にバックアップコードの生値を返す。生値はこのレスポンス以外で参照できない。
func (s *Service) Confirm(ctx context.Context, userID, code string) ([]string, error) {
	record, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		slog.Error("failed to find two factor record", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	if record == nil || record.PendingSecret == "" {
		return nil, model.NewValidationError("二要素認証のセットアップが開始されていません")
	}

	ok, err := totp.Verify(record.PendingSecret, code, s.now())
	if err != nil {
		slog.Error("failed to verify totp code", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	if !ok {
		return nil, model.NewValidationError("ワンタイムコードが正しくありません")
	}

	rawCodes, hashes, err := generateBackupCodes()
	if err != nil {
		slog.Error("failed to generate backup codes", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	if err := s.repo.Activate(ctx, userID, hashes); err != nil {
		slog.Error("failed to activate two factor", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	s.recorder.Record(userID, model.AuditActionTwoFactorEnable, "user", userID, nil)

	return rawCodes, nil
}

// Disable は二要素認証を無効化し、秘密とバックアップコードを全消去する。
func (s *Service) Disable(ctx context.Context, userID string) error {
	if err := s.repo.Disable(ctx, userID); err != nil {
		slog.Error("failed to disable two factor", slog.String("error", err.Error()))
		return model.NewInternalError()
	}

	s.recorder.Record(userID, model.AuditActionTwoFactorDisable, "user", userID, nil)

	return nil
}

// Enabled は指定ユーザーの二要素認証が有効かどうかを返す。
func (s *Service) Enabled(ctx context.Context, userID string) (bool, error) {
	record, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to find two factor record: %w", err)
	}
	return record != nil && record.Enabled, nil
}

// VerifyLogin はログイン時に提示されたコードを検証する。
// まずTOTPコードとして検証し、一致しない場合はバックアップコードとして照合する。
// バックアップコードはワンタイムであり、一致した時点で失効する。
func (s *Service) VerifyLogin(ctx context.Context, userID, code string) (bool, error) {
	record, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to find two factor record: %w", err)
	}
	if record == nil || !record.Enabled {
		return false, nil
	}

	ok, err := totp.Verify(record.Secret, code, s.now())
	if err != nil {
		return false, fmt.Errorf("failed to verify totp code: %w", err)
	}
	if ok {
		return true, nil
	}

	// バックアップコードとして照合
	consumed, err := s.repo.ConsumeBackupCode(ctx, userID, token.HashToken(code))
	if err != nil {
		return false, fmt.Errorf("failed to consume backup code: %w", err)
	}
	return consumed, nil
}

// generateBackupCodes はバックアップコードの生値とSHA-256ハッシュを生成する。
func generateBackupCodes() (raw []string, hashes []string, err error) {
	raw = make([]string, backupCodeCount)
	hashes = make([]string, backupCodeCount)
	for i := 0; i < backupCodeCount; i++ {
		buf := make([]byte, 5)
		if _, err := rand.Read(buf); err != nil {
			return nil, nil, err
		}
		code := hex.EncodeToString(buf) // 10文字
		raw[i] = code
		hashes[i] = token.HashToken(code)
	}
	return raw, hashes, nil
}
