package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/gakuen/internal/middleware"
	"github.com/hitoshi/gakuen/internal/model"
	"github.com/hitoshi/gakuen/internal/timetable"
)

// TimetableServiceInterface は時間割ハンドラーが必要とするサービスインターフェース。
type TimetableServiceInterface interface {
	Get(ctx context.Context, classID string) ([]*model.TimetableEntry, error)
	Replace(ctx context.Context, actorID, classID string, inputs []timetable.EntryInput) ([]*model.TimetableEntry, error)
}

// TimetableHandler は時間割管理のHTTPハンドラー。
type TimetableHandler struct {
	service TimetableServiceInterface
}

// NewTimetableHandler はTimetableHandlerを生成する。
func NewTimetableHandler(service TimetableServiceInterface) *TimetableHandler {
	return &TimetableHandler{service: service}
}

type timetableEntryRequest struct {
	DayOfWeek int    `json:"day_of_week"`
	Period    int    `json:"period"`
	Subject   string `json:"subject"`
	TeacherID string `json:"teacher_id"`
}

type replaceTimetableRequest struct {
	Entries []timetableEntryRequest `json:"entries"`
}

type timetableEntryResponse struct {
	ID        string `json:"id"`
	DayOfWeek int    `json:"day_of_week"`
	Period    int    `json:"period"`
	Subject   string `json:"subject"`
	TeacherID string `json:"teacher_id,omitempty"`
}

func toTimetableResponses(entries []*model.TimetableEntry) []timetableEntryResponse {
	res := make([]timetableEntryResponse, len(entries))
	for i, e := range entries {
		res[i] = timetableEntryResponse{
			ID:        e.ID,
			DayOfWeek: e.DayOfWeek,
			Period:    e.Period,
			Subject:   e.Subject,
			TeacherID: e.TeacherID,
		}
	}
	return res
}

// Get はクラスの時間割を返す。
// GET /api/classes/:id/timetable
func (h *TimetableHandler) Get(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTimetableResponses(entries))
}

// Replace はクラスの時間割を全置換する。
// PUT /api/classes/:id/timetable
func (h *TimetableHandler) Replace(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req replaceTimetableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	inputs := make([]timetable.EntryInput, len(req.Entries))
	for i, e := range req.Entries {
		inputs[i] = timetable.EntryInput{
			DayOfWeek: e.DayOfWeek,
			Period:    e.Period,
			Subject:   e.Subject,
			TeacherID: e.TeacherID,
		}
	}

	entries, err := h.service.Replace(r.Context(), identity.UserID, chi.URLParam(r, "id"), inputs)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTimetableResponses(entries))
}
