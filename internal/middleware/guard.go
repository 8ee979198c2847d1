package middleware

import (
	"net/http"

	"github.com/hitoshi/gakuen/internal/model"
)

// RequireRoles は指定ロールのいずれかを持つ認証済みユーザーのみ通過させる
// ミドルウェアを返す。認証ミドルウェアの後に配置する。
// 停止中アカウントはロールにかかわらず403を返す（ロール判定より先に評価）。
func RequireRoles(roles ...model.Role) func(next http.Handler) http.Handler {
	allowed := make(map[model.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := IdentityFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			if identity.Status == model.StatusSuspended {
				WriteErrorResponse(w, http.StatusForbidden, model.NewSuspendedError())
				return
			}

			if _, ok := allowed[identity.Role]; !ok {
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
