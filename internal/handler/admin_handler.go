package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/gakuen/internal/middleware"
	"github.com/hitoshi/gakuen/internal/model"
)

// AdminServiceInterface は管理者ハンドラーが必要とするサービスインターフェース。
type AdminServiceInterface interface {
	ChangeRole(ctx context.Context, actorID, targetID string, role model.Role) error
	ChangeStatus(ctx context.Context, actorID, targetID string, status model.Status) error
	ListAuditLogs(ctx context.Context, limit, offset int) ([]*model.AuditLogEntry, error)
	ListAuditLogsByUser(ctx context.Context, userID string, limit, offset int) ([]*model.AuditLogEntry, error)
}

// AdminHandler は管理者専用操作のHTTPハンドラー。
type AdminHandler struct {
	service AdminServiceInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(service AdminServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

type auditLogResponse struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Action    string            `json:"action"`
	Entity    string            `json:"entity"`
	EntityID  string            `json:"entity_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt string            `json:"created_at"`
}

func toAuditLogResponses(entries []*model.AuditLogEntry) []auditLogResponse {
	res := make([]auditLogResponse, len(entries))
	for i, e := range entries {
		res[i] = auditLogResponse{
			ID:        e.ID,
			UserID:    e.UserID,
			Action:    e.Action,
			Entity:    e.Entity,
			EntityID:  e.EntityID,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		}
	}
	return res
}

// ChangeRole は指定ユーザーのロール変更を処理する。
// PUT /api/admin/users/:id/role
func (h *AdminHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req changeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if err := h.service.ChangeRole(r.Context(), identity.UserID, chi.URLParam(r, "id"), model.Role(req.Role)); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"role": req.Role})
}

// ChangeStatus は指定ユーザーのアカウント状態変更を処理する。
// PUT /api/admin/users/:id/status
func (h *AdminHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if err := h.service.ChangeStatus(r.Context(), identity.UserID, chi.URLParam(r, "id"), model.Status(req.Status)); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

// ListAuditLogs は監査ログを新しい順で返す。
// user_idクエリパラメータで特定ユーザーの操作に絞り込める。
// GET /api/admin/audit-logs
func (h *AdminHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r)

	var (
		entries []*model.AuditLogEntry
		err     error
	)
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		entries, err = h.service.ListAuditLogsByUser(r.Context(), userID, limit, offset)
	} else {
		entries, err = h.service.ListAuditLogs(r.Context(), limit, offset)
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAuditLogResponses(entries))
}
