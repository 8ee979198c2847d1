package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/gakuen/internal/model"
)

// PostgresRefreshTokenRepo はPostgreSQLを使用したリフレッシュトークンリポジトリ。
type PostgresRefreshTokenRepo struct {
	db *sql.DB
}

// NewPostgresRefreshTokenRepo はPostgresRefreshTokenRepoを生成する。
func NewPostgresRefreshTokenRepo(db *sql.DB) *PostgresRefreshTokenRepo {
	return &PostgresRefreshTokenRepo{db: db}
}

// Create はトークンハッシュレコードを作成する。
func (r *PostgresRefreshTokenRepo) Create(ctx context.Context, token *model.RefreshToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token_hash, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		token.TokenHash, token.UserID, token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create refresh token: %w", err)
	}
	return nil
}

// Consume はハッシュが一致する未失効レコードを取得し、同時に削除する。
// 見つからない・期限切れの場合はnilを返す。
// DELETE ... RETURNING 1文で実行されるため、並行する償還が同じトークンを
// 二重に使用することはない。
func (r *PostgresRefreshTokenRepo) Consume(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	token := &model.RefreshToken{}
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM refresh_tokens
		 WHERE token_hash = $1 AND expires_at > now()
		 RETURNING token_hash, user_id, expires_at, created_at`,
		tokenHash,
	).Scan(&token.TokenHash, &token.UserID, &token.ExpiresAt, &token.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume refresh token: %w", err)
	}

	return token, nil
}

// DeleteByUserID は指定ユーザーの全リフレッシュトークンを削除する。
func (r *PostgresRefreshTokenRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = $1`, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete refresh tokens: %w", err)
	}
	return nil
}

// PostgresPasswordResetTokenRepo はPostgreSQLを使用したパスワードリセットトークンリポジトリ。
type PostgresPasswordResetTokenRepo struct {
	db *sql.DB
}

// NewPostgresPasswordResetTokenRepo はPostgresPasswordResetTokenRepoを生成する。
func NewPostgresPasswordResetTokenRepo(db *sql.DB) *PostgresPasswordResetTokenRepo {
	return &PostgresPasswordResetTokenRepo{db: db}
}

// Create はトークンハッシュレコードを作成する。
func (r *PostgresPasswordResetTokenRepo) Create(ctx context.Context, token *model.PasswordResetToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO password_reset_tokens (token_hash, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		token.TokenHash, token.UserID, token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create password reset token: %w", err)
	}
	return nil
}

// Consume はハッシュが一致する未失効レコードを取得し、同時に削除する。
// 見つからない・期限切れの場合はnilを返す。
func (r *PostgresPasswordResetTokenRepo) Consume(ctx context.Context, tokenHash string) (*model.PasswordResetToken, error) {
	token := &model.PasswordResetToken{}
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM password_reset_tokens
		 WHERE token_hash = $1 AND expires_at > now()
		 RETURNING token_hash, user_id, expires_at, created_at`,
		tokenHash,
	).Scan(&token.TokenHash, &token.UserID, &token.ExpiresAt, &token.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume password reset token: %w", err)
	}

	return token, nil
}

// compile-time interface checks
var (
	_ RefreshTokenRepository       = (*PostgresRefreshTokenRepo)(nil)
	_ PasswordResetTokenRepository = (*PostgresPasswordResetTokenRepo)(nil)
)
