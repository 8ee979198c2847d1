// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの役割を表す閉じた列挙型。
type Role string

const (
	// RoleAdmin は管理者。全操作が許可される。
	RoleAdmin Role = "ADMIN"
	// RoleTeacher は教員。生徒・時間割・お知らせの管理が許可される。
	RoleTeacher Role = "TEACHER"
	// RoleStudent は生徒。閲覧系の操作のみ許可される。
	RoleStudent Role = "STUDENT"
)

// IsValid はRoleが定義済みの値かどうかを判定する。
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	default:
		return false
	}
}

// Status はユーザーアカウントの状態を表す。
type Status string

const (
	// StatusActive は有効なアカウント。
	StatusActive Status = "ACTIVE"
	// StatusSuspended は停止されたアカウント。ログイン・リフレッシュ・全API操作が拒否される。
	StatusSuspended Status = "SUSPENDED"
)

// User はポータル利用者を表す。
// 物理削除は行わず、無効化はstatusをSUSPENDEDに変更することで表現する。
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string // argon2id PHC形式
	Role         Role
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity は認証済みリクエストの主体を表す。
// アクセストークン発行時点のUserのスナップショットであり、
// 次回リフレッシュまでDB上の最新状態と乖離しうる。
type Identity struct {
	UserID string
	Email  string
	Role   Role
	Status Status
}

// RefreshToken はリフレッシュトークンのハッシュレコードを表す。
// 生トークンは保存せず、SHA-256ハッシュのみ保持する。
type RefreshToken struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// PasswordResetToken はパスワードリセットトークンのハッシュレコードを表す。
// 発行後、1回の償還または期限切れで消滅するワンタイムレコード。
type PasswordResetToken struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// TwoFactorSecret はユーザーに1:1で紐づく二要素認証の設定を表す。
// Setupで発行された共有秘密はPendingSecretに保持され、
// Confirmで有効なワンタイムコードが検証されて初めてSecretに昇格する。
// 有効化済みの秘密がSetupのやり直しで上書きされることはない。
type TwoFactorSecret struct {
	UserID           string
	Secret           string // base32。有効化済みの共有秘密
	PendingSecret    string // base32。確認待ちの共有秘密
	Enabled          bool
	BackupCodeHashes []string // SHA-256ハッシュ。使用済みコードは配列から除去される
	UpdatedAt        time.Time
}
