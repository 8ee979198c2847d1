package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/gakuen/internal/announcement"
	"github.com/hitoshi/gakuen/internal/middleware"
	"github.com/hitoshi/gakuen/internal/model"
)

// AnnouncementServiceInterface はお知らせハンドラーが必要とするサービスインターフェース。
type AnnouncementServiceInterface interface {
	ListFor(ctx context.Context, role model.Role, limit, offset int) ([]*model.Announcement, error)
	Get(ctx context.Context, role model.Role, id string) (*model.Announcement, error)
	Create(ctx context.Context, authorID string, input announcement.Input) (*model.Announcement, error)
	Update(ctx context.Context, identity *model.Identity, id string, input announcement.Input) (*model.Announcement, error)
	Delete(ctx context.Context, identity *model.Identity, id string) error
}

// AnnouncementHandler はお知らせのHTTPハンドラー。
type AnnouncementHandler struct {
	service AnnouncementServiceInterface
}

// NewAnnouncementHandler はAnnouncementHandlerを生成する。
func NewAnnouncementHandler(service AnnouncementServiceInterface) *AnnouncementHandler {
	return &AnnouncementHandler{service: service}
}

type announcementRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Audience string `json:"audience"`
}

type announcementResponse struct {
	ID        string `json:"id"`
	AuthorID  string `json:"author_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Audience  string `json:"audience"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toAnnouncementResponse(a *model.Announcement) announcementResponse {
	return announcementResponse{
		ID:        a.ID,
		AuthorID:  a.AuthorID,
		Title:     a.Title,
		Body:      a.Body,
		Audience:  string(a.Audience),
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
		UpdatedAt: a.UpdatedAt.Format(time.RFC3339),
	}
}

// List は閲覧可能なお知らせを新しい順で返す。配信対象はロールで絞り込まれる。
// GET /api/announcements
func (h *AnnouncementHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	limit, offset := parseLimitOffset(r)

	announcements, err := h.service.ListFor(r.Context(), identity.Role, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	res := make([]announcementResponse, len(announcements))
	for i, a := range announcements {
		res[i] = toAnnouncementResponse(a)
	}
	writeJSON(w, http.StatusOK, res)
}

// Get はお知らせ詳細を返す。配信対象外のロールには404を返す。
// GET /api/announcements/:id
func (h *AnnouncementHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	a, err := h.service.Get(r.Context(), identity.Role, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAnnouncementResponse(a))
}

// Create はお知らせ作成を処理する。
// POST /api/announcements
func (h *AnnouncementHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req announcementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	a, err := h.service.Create(r.Context(), identity.UserID, announcement.Input{
		Title:    req.Title,
		Body:     req.Body,
		Audience: model.Audience(req.Audience),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAnnouncementResponse(a))
}

// Update はお知らせ更新を処理する。作成者本人か管理者のみが更新できる。
// PUT /api/announcements/:id
func (h *AnnouncementHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req announcementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	a, err := h.service.Update(r.Context(), identity, chi.URLParam(r, "id"), announcement.Input{
		Title:    req.Title,
		Body:     req.Body,
		Audience: model.Audience(req.Audience),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAnnouncementResponse(a))
}

// Delete はお知らせ削除を処理する。作成者本人か管理者のみが削除できる。
// DELETE /api/announcements/:id
func (h *AnnouncementHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Delete(r.Context(), identity, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
