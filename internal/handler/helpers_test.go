package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/gakuen/internal/middleware"
	"github.com/hitoshi/gakuen/internal/model"
)

// --- テストヘルパー ---

// withIdentity はテスト用にリクエストコンテキストに認証情報を注入するヘルパー。
func withIdentity(r *http.Request, identity *model.Identity) *http.Request {
	ctx := middleware.ContextWithIdentity(r.Context(), identity)
	return r.WithContext(ctx)
}

// adminIdentity はテスト用の管理者認証情報を返す。
func adminIdentity() *model.Identity {
	return &model.Identity{
		UserID: "admin-1",
		Email:  "admin@example.com",
		Role:   model.RoleAdmin,
		Status: model.StatusActive,
	}
}

// teacherIdentity はテスト用の教員認証情報を返す。
func teacherIdentity() *model.Identity {
	return &model.Identity{
		UserID: "teacher-1",
		Email:  "teacher@example.com",
		Role:   model.RoleTeacher,
		Status: model.StatusActive,
	}
}

// studentIdentity はテスト用の生徒認証情報を返す。
func studentIdentity() *model.Identity {
	return &model.Identity{
		UserID: "student-1",
		Email:  "student@example.com",
		Role:   model.RoleStudent,
		Status: model.StatusActive,
	}
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// decodeJSONBody はレスポンスボディを任意の型にデコードするヘルパー。
func decodeJSONBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

// assertErrorResponse はステータスコードとエラーコードを検証するヘルパー。
func assertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	if w.Code != wantStatus {
		t.Errorf("status = %d, want %d", w.Code, wantStatus)
	}
	var res apiErrorResponse
	decodeJSONBody(t, w, &res)
	if res.Code != wantCode {
		t.Errorf("error code = %q, want %q", res.Code, wantCode)
	}
}

// findCookie はレスポンスから指定名のCookieを探すヘルパー。
func findCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
