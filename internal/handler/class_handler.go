package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/gakuen/internal/class"
	"github.com/hitoshi/gakuen/internal/middleware"
	"github.com/hitoshi/gakuen/internal/model"
)

// ClassServiceInterface はクラスハンドラーが必要とするサービスインターフェース。
type ClassServiceInterface interface {
	Get(ctx context.Context, id string) (*model.Class, error)
	List(ctx context.Context) ([]*model.Class, error)
	Create(ctx context.Context, actorID string, input class.Input) (*model.Class, error)
	Update(ctx context.Context, actorID, id string, input class.Input) (*model.Class, error)
	Delete(ctx context.Context, actorID, id string) error
}

// ClassHandler はクラス管理のHTTPハンドラー。
type ClassHandler struct {
	service  ClassServiceInterface
	students StudentServiceInterface
}

// NewClassHandler はClassHandlerを生成する。
func NewClassHandler(service ClassServiceInterface, students StudentServiceInterface) *ClassHandler {
	return &ClassHandler{service: service, students: students}
}

type classRequest struct {
	Name              string `json:"name"`
	Grade             int    `json:"grade"`
	HomeroomTeacherID string `json:"homeroom_teacher_id"`
}

type classResponse struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Grade             int    `json:"grade"`
	HomeroomTeacherID string `json:"homeroom_teacher_id,omitempty"`
}

func toClassResponse(c *model.Class) classResponse {
	return classResponse{
		ID:                c.ID,
		Name:              c.Name,
		Grade:             c.Grade,
		HomeroomTeacherID: c.HomeroomTeacherID,
	}
}

// List は全クラスを返す。
// GET /api/classes
func (h *ClassHandler) List(w http.ResponseWriter, r *http.Request) {
	classes, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	res := make([]classResponse, len(classes))
	for i, c := range classes {
		res[i] = toClassResponse(c)
	}
	writeJSON(w, http.StatusOK, res)
}

// Get はクラス詳細を返す。
// GET /api/classes/:id
func (h *ClassHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toClassResponse(c))
}

// ListStudents はクラス在籍の生徒一覧を返す。
// GET /api/classes/:id/students
func (h *ClassHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "id")

	// クラスの存在確認を先に行う
	if _, err := h.service.Get(r.Context(), classID); err != nil {
		handleServiceError(w, err)
		return
	}

	students, err := h.students.ListByClassID(r.Context(), classID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStudentResponses(students))
}

// Create はクラス作成を処理する。
// POST /api/classes
func (h *ClassHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req classRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	c, err := h.service.Create(r.Context(), identity.UserID, class.Input{
		Name:              req.Name,
		Grade:             req.Grade,
		HomeroomTeacherID: req.HomeroomTeacherID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toClassResponse(c))
}

// Update はクラス更新を処理する。
// PUT /api/classes/:id
func (h *ClassHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req classRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	c, err := h.service.Update(r.Context(), identity.UserID, chi.URLParam(r, "id"), class.Input{
		Name:              req.Name,
		Grade:             req.Grade,
		HomeroomTeacherID: req.HomeroomTeacherID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toClassResponse(c))
}

// Delete はクラス削除を処理する。在籍生徒がいる場合は409となる。
// DELETE /api/classes/:id
func (h *ClassHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Delete(r.Context(), identity.UserID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
