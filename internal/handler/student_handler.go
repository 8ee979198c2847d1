package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/gakuen/internal/middleware"
	"github.com/hitoshi/gakuen/internal/model"
	"github.com/hitoshi/gakuen/internal/student"
)

// StudentServiceInterface は生徒ハンドラーが必要とするサービスインターフェース。
type StudentServiceInterface interface {
	Get(ctx context.Context, id string) (*model.Student, error)
	List(ctx context.Context, limit, offset int) ([]*model.Student, error)
	ListByClassID(ctx context.Context, classID string) ([]*model.Student, error)
	Create(ctx context.Context, actorID string, input student.CreateInput) (*model.Student, error)
	Update(ctx context.Context, actorID, id string, input student.UpdateInput) (*model.Student, error)
	Delete(ctx context.Context, actorID, id string) error
}

// StudentHandler は生徒管理のHTTPハンドラー。
type StudentHandler struct {
	service StudentServiceInterface
}

// NewStudentHandler はStudentHandlerを生成する。
func NewStudentHandler(service StudentServiceInterface) *StudentHandler {
	return &StudentHandler{service: service}
}

type studentRequest struct {
	StudentNumber string `json:"student_number"`
	Name          string `json:"name"`
	ClassID       string `json:"class_id"`
	UserID        string `json:"user_id"`
	EnrolledAt    string `json:"enrolled_at"` // YYYY-MM-DD
}

type studentResponse struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id,omitempty"`
	StudentNumber string `json:"student_number"`
	Name          string `json:"name"`
	ClassID       string `json:"class_id,omitempty"`
	EnrolledAt    string `json:"enrolled_at"`
}

func toStudentResponse(s *model.Student) studentResponse {
	return studentResponse{
		ID:            s.ID,
		UserID:        s.UserID,
		StudentNumber: s.StudentNumber,
		Name:          s.Name,
		ClassID:       s.ClassID,
		EnrolledAt:    s.EnrolledAt.Format("2006-01-02"),
	}
}

func toStudentResponses(students []*model.Student) []studentResponse {
	res := make([]studentResponse, len(students))
	for i, s := range students {
		res[i] = toStudentResponse(s)
	}
	return res
}

// parseLimitOffset はクエリパラメータからlimit/offsetを読み取る。
func parseLimitOffset(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// List は生徒一覧を返す。
// GET /api/students
func (h *StudentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r)

	students, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStudentResponses(students))
}

// Get は生徒詳細を返す。
// GET /api/students/:id
func (h *StudentHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStudentResponse(s))
}

// Create は生徒登録を処理する。
// POST /api/students
func (h *StudentHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req studentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	input := student.CreateInput{
		StudentNumber: req.StudentNumber,
		Name:          req.Name,
		ClassID:       req.ClassID,
	}
	if req.EnrolledAt != "" {
		enrolledAt, err := time.Parse("2006-01-02", req.EnrolledAt)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewValidationError("入学日はYYYY-MM-DD形式で指定してください"))
			return
		}
		input.EnrolledAt = enrolledAt
	}

	s, err := h.service.Create(r.Context(), identity.UserID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toStudentResponse(s))
}

// Update は生徒情報の更新を処理する。
// PUT /api/students/:id
func (h *StudentHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req studentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	s, err := h.service.Update(r.Context(), identity.UserID, chi.URLParam(r, "id"), student.UpdateInput{
		StudentNumber: req.StudentNumber,
		Name:          req.Name,
		ClassID:       req.ClassID,
		UserID:        req.UserID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStudentResponse(s))
}

// Delete は生徒レコードの削除を処理する。
// DELETE /api/students/:id
func (h *StudentHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
