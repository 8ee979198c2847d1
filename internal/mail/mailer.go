// Package mail はメール送信のインターフェースを提供する。
package mail

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
)

// Mailer はメール送信のインターフェース。
type Mailer interface {
	// SendPasswordReset はパスワードリセット用のリンクを送信する。
	SendPasswordReset(ctx context.Context, to, resetURL string) error
}

// LogMailer は実際の送信を行わず、ログに出力するだけの実装。
// 開発環境およびSMTP未設定の環境で使用する。
type LogMailer struct{}

// NewLogMailer はLogMailerを生成する。
func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

// SendPasswordReset は送信内容をログに出力する。
// resetURLにはワンタイムトークンが平文で含まれるため、URL自体は出力せず
// 宛先とトークンハッシュの先頭のみを残す。
func (m *LogMailer) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	digest := sha256.Sum256([]byte(resetURL))
	slog.Info("password reset mail (log only)",
		"to", to, "url_digest", hex.EncodeToString(digest[:8]))
	return nil
}

var _ Mailer = (*LogMailer)(nil)
