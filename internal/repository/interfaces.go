// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/gakuen/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレス重複時はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdatePasswordHash はパスワードハッシュを更新する。
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error

	// UpdateRole はロールを更新する。
	UpdateRole(ctx context.Context, id string, role model.Role) error

	// UpdateStatus はアカウント状態を更新する。
	UpdateStatus(ctx context.Context, id string, status model.Status) error

	// Count は全ユーザー数を返す。
	Count(ctx context.Context) (int, error)
}

// RefreshTokenRepository はリフレッシュトークンの永続化インターフェース。
type RefreshTokenRepository interface {
	// Create はトークンハッシュレコードを作成する。
	Create(ctx context.Context, token *model.RefreshToken) error

	// Consume はハッシュが一致する未失効レコードを取得し、同時に削除する。
	// 見つからない・期限切れの場合はnilを返す（ローテーションの原子的実装）。
	Consume(ctx context.Context, tokenHash string) (*model.RefreshToken, error)

	// DeleteByUserID は指定ユーザーの全リフレッシュトークンを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// PasswordResetTokenRepository はパスワードリセットトークンの永続化インターフェース。
type PasswordResetTokenRepository interface {
	// Create はトークンハッシュレコードを作成する。
	Create(ctx context.Context, token *model.PasswordResetToken) error

	// Consume はハッシュが一致する未失効レコードを取得し、同時に削除する。
	// 単一のDELETE ... RETURNING文で実行されるため、並行する償還が
	// 同じトークンを二重に使用することはない。
	// 見つからない・期限切れの場合はnilを返す。
	Consume(ctx context.Context, tokenHash string) (*model.PasswordResetToken, error)
}

// TwoFactorRepository は二要素認証設定の永続化インターフェース。
type TwoFactorRepository interface {
	// FindByUserID は指定ユーザーの二要素認証設定を取得する。未設定の場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.TwoFactorSecret, error)

	// StagePending は確認待ちの共有秘密をUPSERTする。
	// 有効化済みのsecret・enabled・バックアップコードには触れない。
	StagePending(ctx context.Context, userID, pendingSecret string) error

	// Activate は確認済みの秘密を有効化する。
	// pending_secretをsecretに昇格し、enabledを立て、バックアップコードを設定する。
	Activate(ctx context.Context, userID string, backupCodeHashes []string) error

	// Disable は秘密・確認待ち秘密・バックアップコードを単一のUPDATEで全消去する。
	Disable(ctx context.Context, userID string) error

	// ConsumeBackupCode は一致するバックアップコードハッシュを配列から除去する。
	// 除去できた場合はtrueを返す（ワンタイム性の保証）。
	ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error)
}

// AuditLogRepository は監査ログの永続化インターフェース。
// 追記専用であり、更新・削除のメソッドは定義しない。
type AuditLogRepository interface {
	// Insert は監査ログレコードを追記する。
	Insert(ctx context.Context, entry *model.AuditLogEntry) error

	// ListRecent は作成日時の降順で監査ログを取得する。
	ListRecent(ctx context.Context, limit, offset int) ([]*model.AuditLogEntry, error)

	// ListByUserID は指定ユーザーの監査ログを作成日時の降順で取得する。
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*model.AuditLogEntry, error)
}

// StudentRepository は生徒データの永続化インターフェース。
type StudentRepository interface {
	// FindByID は指定IDの生徒を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Student, error)

	// FindByUserID はログインユーザーに紐づく生徒レコードを取得する。
	// 紐づけがない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Student, error)

	// List は生徒一覧を学籍番号順で取得する。
	List(ctx context.Context, limit, offset int) ([]*model.Student, error)

	// ListByClassID は指定クラスの生徒一覧を取得する。
	ListByClassID(ctx context.Context, classID string) ([]*model.Student, error)

	// Create は生徒を作成する。学籍番号重複時はErrDuplicateStudentNumberを返す。
	Create(ctx context.Context, student *model.Student) error

	// Update は生徒情報を更新する。
	Update(ctx context.Context, student *model.Student) error

	// Delete は指定IDの生徒レコードを削除する。
	Delete(ctx context.Context, id string) error

	// CountByClassID は指定クラスの在籍生徒数を返す。
	CountByClassID(ctx context.Context, classID string) (int, error)

	// Count は全生徒数を返す。
	Count(ctx context.Context) (int, error)
}

// ClassRepository はクラスデータの永続化インターフェース。
type ClassRepository interface {
	// FindByID は指定IDのクラスを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Class, error)

	// List は全クラスを学年・名前順で取得する。
	List(ctx context.Context) ([]*model.Class, error)

	// ListByTeacherID は指定教員が担任のクラス一覧を取得する。
	ListByTeacherID(ctx context.Context, teacherID string) ([]*model.Class, error)

	// Create はクラスを作成する。名前重複時はErrDuplicateClassNameを返す。
	Create(ctx context.Context, class *model.Class) error

	// Update はクラス情報を更新する。
	Update(ctx context.Context, class *model.Class) error

	// Delete は指定IDのクラスを削除する。
	Delete(ctx context.Context, id string) error

	// Count は全クラス数を返す。
	Count(ctx context.Context) (int, error)
}

// TimetableRepository は時間割データの永続化インターフェース。
type TimetableRepository interface {
	// ListByClassID は指定クラスの時間割を曜日・時限順で取得する。
	ListByClassID(ctx context.Context, classID string) ([]*model.TimetableEntry, error)

	// ReplaceForClass は指定クラスの時間割を同一トランザクションで全置換する。
	ReplaceForClass(ctx context.Context, classID string, entries []*model.TimetableEntry) error
}

// AnnouncementRepository はお知らせデータの永続化インターフェース。
type AnnouncementRepository interface {
	// FindByID は指定IDのお知らせを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Announcement, error)

	// ListForAudience は指定の配信対象群に合致するお知らせを作成日時の降順で取得する。
	ListForAudience(ctx context.Context, audiences []model.Audience, limit, offset int) ([]*model.Announcement, error)

	// Create はお知らせを作成する。
	Create(ctx context.Context, a *model.Announcement) error

	// Update はお知らせを更新する。
	Update(ctx context.Context, a *model.Announcement) error

	// Delete は指定IDのお知らせを削除する。
	Delete(ctx context.Context, id string) error
}
