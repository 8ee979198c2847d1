package middleware

import (
	"net/http"

	"github.com/hitoshi/gakuen/internal/model"
)

// accessTokenCookieName はアクセストークンを保持するHTTP Only Cookieの名前。
const accessTokenCookieName = "token"

// TokenParser はアクセストークンの検証に必要なインターフェース。
// token.Managerの部分集合として定義する。
type TokenParser interface {
	Parse(tokenString string) (*model.Identity, error)
}

// NewAuthMiddleware はHTTP Only Cookieからアクセストークンを読み取り、
// 検証するミドルウェアを返す。
// 検証済みのIdentityをリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
// トークンはステートレスに検証されるため、DBアクセスは発生しない。
func NewAuthMiddleware(parser TokenParser) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Cookieからアクセストークンを取得
			cookie, err := r.Cookie(accessTokenCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 2. トークンの署名と有効期限を検証
			identity, err := parser.Parse(cookie.Value)
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 3. 検証済みIdentityをコンテキストに注入
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}
