package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/gakuen/internal/model"
)

// PostgresTwoFactorRepo はPostgreSQLを使用した二要素認証設定リポジトリ。
type PostgresTwoFactorRepo struct {
	db *sql.DB
}

// NewPostgresTwoFactorRepo はPostgresTwoFactorRepoを生成する。
func NewPostgresTwoFactorRepo(db *sql.DB) *PostgresTwoFactorRepo {
	return &PostgresTwoFactorRepo{db: db}
}

// FindByUserID は指定ユーザーの二要素認証設定を取得する。未設定の場合はnilを返す。
func (r *PostgresTwoFactorRepo) FindByUserID(ctx context.Context, userID string) (*model.TwoFactorSecret, error) {
	secret := &model.TwoFactorSecret{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, secret, pending_secret, enabled, backup_code_hashes, updated_at
		 FROM two_factor_secrets WHERE user_id = $1`,
		userID,
	).Scan(
		&secret.UserID, &secret.Secret, &secret.PendingSecret,
		&secret.Enabled, pq.Array(&secret.BackupCodeHashes), &secret.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find two-factor secret: %w", err)
	}

	return secret, nil
}

// StagePending は確認待ちの共有秘密をUPSERTする。
// 有効化済みのsecret・enabled・バックアップコードには触れない。
func (r *PostgresTwoFactorRepo) StagePending(ctx context.Context, userID, pendingSecret string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO two_factor_secrets (user_id, pending_secret, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id)
		 DO UPDATE SET pending_secret = EXCLUDED.pending_secret, updated_at = EXCLUDED.updated_at`,
		userID, pendingSecret, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to stage pending two-factor secret: %w", err)
	}
	return nil
}

// Activate は確認済みの秘密を有効化する。
// pending_secretをsecretに昇格し、enabledを立て、バックアップコードを設定する。
// 確認待ちの秘密が存在しない場合はエラーを返す。
func (r *PostgresTwoFactorRepo) Activate(ctx context.Context, userID string, backupCodeHashes []string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE two_factor_secrets
		 SET secret = pending_secret,
		     pending_secret = '',
		     enabled = TRUE,
		     backup_code_hashes = $1,
		     updated_at = $2
		 WHERE user_id = $3 AND pending_secret <> ''`,
		pq.Array(backupCodeHashes), time.Now(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to activate two-factor secret: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no pending two-factor secret for user: %s", userID)
	}
	return nil
}

// Disable は秘密・確認待ち秘密・バックアップコードを単一のUPDATEで全消去する。
func (r *PostgresTwoFactorRepo) Disable(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE two_factor_secrets
		 SET secret = '', pending_secret = '', enabled = FALSE,
		     backup_code_hashes = '{}', updated_at = $1
		 WHERE user_id = $2`,
		time.Now(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to disable two-factor: %w", err)
	}
	return nil
}

// ConsumeBackupCode は一致するバックアップコードハッシュを配列から除去する。
// 除去できた場合はtrueを返す。array_removeを含む単一UPDATEのため、
// 並行する消費が同じコードを二重に使用することはない。
func (r *PostgresTwoFactorRepo) ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE two_factor_secrets
		 SET backup_code_hashes = array_remove(backup_code_hashes, $1), updated_at = $2
		 WHERE user_id = $3 AND $1 = ANY(backup_code_hashes)`,
		codeHash, time.Now(), userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to consume backup code: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ TwoFactorRepository = (*PostgresTwoFactorRepo)(nil)
