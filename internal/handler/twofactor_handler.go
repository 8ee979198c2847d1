package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/gakuen/internal/middleware"
	"github.com/hitoshi/gakuen/internal/model"
	"github.com/hitoshi/gakuen/internal/twofactor"
)

// TwoFactorServiceInterface は二要素認証ハンドラーが必要とするサービスインターフェース。
type TwoFactorServiceInterface interface {
	Setup(ctx context.Context, userID, email string) (*twofactor.SetupResult, error)
	Confirm(ctx context.Context, userID, code string) ([]string, error)
	Disable(ctx context.Context, userID string) error
	Enabled(ctx context.Context, userID string) (bool, error)
}

// TwoFactorHandler は二要素認証設定のHTTPハンドラー。
type TwoFactorHandler struct {
	service TwoFactorServiceInterface
}

// NewTwoFactorHandler はTwoFactorHandlerを生成する。
func NewTwoFactorHandler(service TwoFactorServiceInterface) *TwoFactorHandler {
	return &TwoFactorHandler{service: service}
}

type confirmTwoFactorRequest struct {
	Code string `json:"code"`
}

// Status は二要素認証の有効状態を返す。
// GET /api/2fa
func (h *TwoFactorHandler) Status(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	enabled, err := h.service.Enabled(r.Context(), identity.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

// Setup は二要素認証のセットアップを開始する。
// 共有秘密とQRコード用のotpauth URIを返す。
// POST /api/2fa/setup
func (h *TwoFactorHandler) Setup(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	result, err := h.service.Setup(r.Context(), identity.UserID, identity.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"secret":        result.Secret,
		"provision_uri": result.ProvisionURI,
	})
}

// Confirm はワンタイムコードを検証して二要素認証を有効化する。
// バックアップコードの生値はこのレスポンスでのみ返される。
// POST /api/2fa/confirm
func (h *TwoFactorHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req confirmTwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	backupCodes, err := h.service.Confirm(r.Context(), identity.UserID, req.Code)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":      true,
		"backup_codes": backupCodes,
	})
}

// Disable は二要素認証を無効化する。
// POST /api/2fa/disable
func (h *TwoFactorHandler) Disable(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Disable(r.Context(), identity.UserID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"enabled": false})
}
