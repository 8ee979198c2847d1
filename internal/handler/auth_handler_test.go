package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/gakuen/internal/auth"
	"github.com/hitoshi/gakuen/internal/model"
)

// --- モック定義 ---

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	registerFn       func(ctx context.Context, email, name, rawPassword string) (*model.User, error)
	loginFn          func(ctx context.Context, email, rawPassword, totpCode string) (*auth.LoginResult, error)
	refreshFn        func(ctx context.Context, rawRefreshToken string) (*auth.LoginResult, error)
	logoutFn         func(ctx context.Context, userID, rawRefreshToken string) error
	forgotPasswordFn func(ctx context.Context, email string) error
	resetPasswordFn  func(ctx context.Context, rawToken, newPassword string) error
	changePasswordFn func(ctx context.Context, userID, currentPassword, newPassword string) error
}

func (m *mockAuthService) Register(ctx context.Context, email, name, rawPassword string) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, email, name, rawPassword)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, rawPassword, totpCode string) (*auth.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, rawPassword, totpCode)
	}
	return nil, nil
}

func (m *mockAuthService) Refresh(ctx context.Context, rawRefreshToken string) (*auth.LoginResult, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, rawRefreshToken)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, userID, rawRefreshToken string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, userID, rawRefreshToken)
	}
	return nil
}

func (m *mockAuthService) ForgotPassword(ctx context.Context, email string) error {
	if m.forgotPasswordFn != nil {
		return m.forgotPasswordFn(ctx, email)
	}
	return nil
}

func (m *mockAuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if m.resetPasswordFn != nil {
		return m.resetPasswordFn(ctx, rawToken, newPassword)
	}
	return nil
}

func (m *mockAuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if m.changePasswordFn != nil {
		return m.changePasswordFn(ctx, userID, currentPassword, newPassword)
	}
	return nil
}

func testAuthHandler(svc AuthServiceInterface) *AuthHandler {
	return NewAuthHandler(svc, AuthHandlerConfig{
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 14 * 24 * time.Hour,
		CookieSecure:    true,
	})
}

func testUser() *model.User {
	return &model.User{
		ID:     "user-1",
		Email:  "taro@example.com",
		Name:   "山田太郎",
		Role:   model.RoleStudent,
		Status: model.StatusActive,
	}
}

func testLoginResult() *auth.LoginResult {
	return &auth.LoginResult{
		User:         testUser(),
		AccessToken:  "access-token-value",
		RefreshToken: "refresh-token-value",
	}
}

// --- POST /auth/register ---

func TestAuthHandler_Register_Success(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, email, name, rawPassword string) (*model.User, error) {
			if email != "taro@example.com" {
				t.Errorf("email = %q, want %q", email, "taro@example.com")
			}
			return testUser(), nil
		},
	}
	h := testAuthHandler(svc)

	body := `{"email": "taro@example.com", "name": "山田太郎", "password": "secret-pass-123"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	var res userResponse
	decodeJSONBody(t, w, &res)
	if res.ID != "user-1" || res.Role != "STUDENT" {
		t.Errorf("unexpected response: %+v", res)
	}
}

func TestAuthHandler_Register_InvalidBody(t *testing.T) {
	h := testAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString("{invalid"))
	w := httptest.NewRecorder()

	h.Register(w, req)

	assertErrorResponse(t, w, http.StatusBadRequest, model.ErrCodeValidation)
}

// --- POST /auth/login ---

func TestAuthHandler_Login_SetsCookies(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, rawPassword, totpCode string) (*auth.LoginResult, error) {
			return testLoginResult(), nil
		},
	}
	h := testAuthHandler(svc)

	body := `{"email": "taro@example.com", "password": "secret-pass-123"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	access := findCookie(t, w, "token")
	if access == nil {
		t.Fatal("access token cookie not set")
	}
	if access.Value != "access-token-value" {
		t.Errorf("access cookie value = %q", access.Value)
	}
	if !access.HttpOnly || !access.Secure {
		t.Error("access cookie must be HttpOnly and Secure")
	}
	if access.Path != "/" {
		t.Errorf("access cookie path = %q, want %q", access.Path, "/")
	}

	refresh := findCookie(t, w, "refreshToken")
	if refresh == nil {
		t.Fatal("refresh token cookie not set")
	}
	if refresh.Path != "/auth" {
		t.Errorf("refresh cookie path = %q, want %q", refresh.Path, "/auth")
	}
	if !refresh.HttpOnly {
		t.Error("refresh cookie must be HttpOnly")
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, rawPassword, totpCode string) (*auth.LoginResult, error) {
			return nil, model.NewInvalidCredentialsError()
		},
	}
	h := testAuthHandler(svc)

	body := `{"email": "taro@example.com", "password": "wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	assertErrorResponse(t, w, http.StatusUnauthorized, model.ErrCodeInvalidCredential)
	if findCookie(t, w, "token") != nil {
		t.Error("cookie must not be set on failed login")
	}
}

func TestAuthHandler_Login_TwoFactorRequired(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, rawPassword, totpCode string) (*auth.LoginResult, error) {
			return nil, model.NewTwoFactorRequiredError()
		},
	}
	h := testAuthHandler(svc)

	body := `{"email": "taro@example.com", "password": "secret-pass-123"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	assertErrorResponse(t, w, http.StatusUnauthorized, model.ErrCodeTwoFactorRequired)
}

func TestAuthHandler_Login_PassesTOTPCode(t *testing.T) {
	var gotCode string
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, rawPassword, totpCode string) (*auth.LoginResult, error) {
			gotCode = totpCode
			return testLoginResult(), nil
		},
	}
	h := testAuthHandler(svc)

	body := `{"email": "taro@example.com", "password": "secret-pass-123", "totp_code": "287082"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if gotCode != "287082" {
		t.Errorf("totpCode = %q, want %q", gotCode, "287082")
	}
}

// --- POST /auth/refresh ---

func TestAuthHandler_Refresh_RotatesTokens(t *testing.T) {
	svc := &mockAuthService{
		refreshFn: func(ctx context.Context, rawRefreshToken string) (*auth.LoginResult, error) {
			if rawRefreshToken != "old-refresh" {
				t.Errorf("rawRefreshToken = %q, want %q", rawRefreshToken, "old-refresh")
			}
			result := testLoginResult()
			result.AccessToken = "new-access"
			result.RefreshToken = "new-refresh"
			return result, nil
		},
	}
	h := testAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "old-refresh"})
	w := httptest.NewRecorder()

	h.Refresh(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	refresh := findCookie(t, w, "refreshToken")
	if refresh == nil || refresh.Value != "new-refresh" {
		t.Errorf("refresh cookie not rotated: %+v", refresh)
	}
}

func TestAuthHandler_Refresh_MissingCookie(t *testing.T) {
	h := testAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	w := httptest.NewRecorder()

	h.Refresh(w, req)

	assertErrorResponse(t, w, http.StatusUnauthorized, model.ErrCodeUnauthorized)
}

func TestAuthHandler_Refresh_ExpiredTokenClearsCookies(t *testing.T) {
	svc := &mockAuthService{
		refreshFn: func(ctx context.Context, rawRefreshToken string) (*auth.LoginResult, error) {
			return nil, model.NewInvalidOrExpiredTokenError()
		},
	}
	h := testAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "stale"})
	w := httptest.NewRecorder()

	h.Refresh(w, req)

	assertErrorResponse(t, w, http.StatusBadRequest, model.ErrCodeInvalidOrExpired)

	access := findCookie(t, w, "token")
	if access == nil || access.MaxAge != -1 {
		t.Error("access cookie must be cleared on refresh failure")
	}
}

// --- POST /auth/logout ---

func TestAuthHandler_Logout_ClearsCookies(t *testing.T) {
	var gotToken string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, userID, rawRefreshToken string) error {
			gotToken = rawRefreshToken
			return nil
		},
	}
	h := testAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "current-refresh"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if gotToken != "current-refresh" {
		t.Errorf("rawRefreshToken = %q, want %q", gotToken, "current-refresh")
	}
	for _, name := range []string{"token", "refreshToken"} {
		c := findCookie(t, w, name)
		if c == nil || c.MaxAge != -1 {
			t.Errorf("cookie %q must be cleared", name)
		}
	}
}

// --- GET /api/me ---

func TestAuthHandler_Me(t *testing.T) {
	h := testAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req = withIdentity(req, teacherIdentity())
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var res map[string]string
	decodeJSONBody(t, w, &res)
	if res["id"] != "teacher-1" || res["role"] != "TEACHER" {
		t.Errorf("unexpected response: %+v", res)
	}
}

func TestAuthHandler_Me_Unauthenticated(t *testing.T) {
	h := testAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	w := httptest.NewRecorder()

	h.Me(w, req)

	assertErrorResponse(t, w, http.StatusUnauthorized, model.ErrCodeUnauthorized)
}

// --- POST /auth/forgot-password ---

func TestAuthHandler_ForgotPassword_UniformResponse(t *testing.T) {
	// 未登録のメールアドレスでも同一のレスポンスを返す
	svc := &mockAuthService{
		forgotPasswordFn: func(ctx context.Context, email string) error {
			return nil
		},
	}
	h := testAuthHandler(svc)

	for _, email := range []string{"known@example.com", "unknown@example.com"} {
		body := `{"email": "` + email + `"}`
		req := httptest.NewRequest(http.MethodPost, "/auth/forgot-password", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		h.ForgotPassword(w, req)

		if w.Code != http.StatusAccepted {
			t.Errorf("email %q: status = %d, want %d", email, w.Code, http.StatusAccepted)
		}
	}
}

// --- POST /auth/reset-password ---

func TestAuthHandler_ResetPassword_InvalidToken(t *testing.T) {
	svc := &mockAuthService{
		resetPasswordFn: func(ctx context.Context, rawToken, newPassword string) error {
			return model.NewInvalidOrExpiredTokenError()
		},
	}
	h := testAuthHandler(svc)

	body := `{"token": "stale-token", "new_password": "new-secret-123"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/reset-password", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.ResetPassword(w, req)

	assertErrorResponse(t, w, http.StatusBadRequest, model.ErrCodeInvalidOrExpired)
}

// --- POST /api/auth/change-password ---

func TestAuthHandler_ChangePassword_ClearsCookies(t *testing.T) {
	svc := &mockAuthService{
		changePasswordFn: func(ctx context.Context, userID, currentPassword, newPassword string) error {
			if userID != "student-1" {
				t.Errorf("userID = %q, want %q", userID, "student-1")
			}
			return nil
		},
	}
	h := testAuthHandler(svc)

	body := `{"current_password": "old-secret-123", "new_password": "new-secret-123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/change-password", bytes.NewBufferString(body))
	req = withIdentity(req, studentIdentity())
	w := httptest.NewRecorder()

	h.ChangePassword(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	access := findCookie(t, w, "token")
	if access == nil || access.MaxAge != -1 {
		t.Error("access cookie must be cleared after password change")
	}
}
