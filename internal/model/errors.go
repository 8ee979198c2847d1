// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, school, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeSuspended         = "SUSPENDED"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeTooManyRequests   = "TOO_MANY_REQUESTS"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeInvalidOrExpired  = "INVALID_OR_EXPIRED"
	ErrCodeInvalidCredential = "INVALID_CREDENTIALS"
	ErrCodeTwoFactorRequired = "TWO_FACTOR_REQUIRED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を実行する権限がありません。",
		Category: "auth",
		Action:   "必要な権限を持つアカウントでログインしてください。",
	}
}

// NewSuspendedError はアカウント停止エラーを生成する。
func NewSuspendedError() *APIError {
	return &APIError{
		Code:     ErrCodeSuspended,
		Message:  "このアカウントは停止されています。",
		Category: "auth",
		Action:   "管理者にお問い合わせください。",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewTooManyRequestsError はレート制限超過エラーを生成する。
func NewTooManyRequestsError() *APIError {
	return &APIError{
		Code:     ErrCodeTooManyRequests,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewNotFoundError は対象未検出エラーを生成する。
func NewNotFoundError(entity string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("指定された%sが見つかりません。", entity),
		Category: "school",
		Action:   "IDを確認してください。",
	}
}

// NewConflictError は重複・競合エラーを生成する。
func NewConflictError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  reason,
		Category: "validation",
		Action:   "既存のデータを確認してください。",
	}
}

// NewInvalidOrExpiredTokenError は無効または期限切れトークンのエラーを生成する。
// 列挙攻撃対策のため、「存在しない」と「期限切れ」を区別しない。
func NewInvalidOrExpiredTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidOrExpired,
		Message:  "トークンが無効か、有効期限が切れています。",
		Category: "auth",
		Action:   "最初からやり直してください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// 列挙攻撃対策のため、メールアドレスとパスワードのどちらが誤りかは区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredential,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewTwoFactorRequiredError は二要素認証コード未提出エラーを生成する。
func NewTwoFactorRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTwoFactorRequired,
		Message:  "二要素認証コードが必要です。",
		Category: "auth",
		Action:   "認証アプリのコードを入力して再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
